package modal

import (
	"fmt"

	"github.com/pointage-admin/pointage-admin/internal/entity"
)

// View is the template model of a dialog.
type View struct {
	Open       bool
	Phase      string
	Slug       string
	Operation  entity.Operation
	RecordID   string
	Title      string
	Template   string
	Values     map[string]string
	Errors     entity.ValidationErrors
	Banner     string
	Prompt     string
	Fallback   string
	Submitting bool
	// Options carries select choices, e.g. departments, keyed by field name.
	Options map[string][]Option
}

// Option is one choice of a select field.
type Option struct {
	Value string
	Label string
}

// IsDelete reports whether the dialog is a delete confirmation.
func (v View) IsDelete() bool { return v.Operation == entity.OpDelete }

// View snapshots the dialog for rendering.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := View{
		Open:       c.phase == PhaseOpen,
		Phase:      c.phase.String(),
		Slug:       c.req.Tag.Slug(),
		Operation:  c.req.Op,
		RecordID:   c.req.RecordID,
		Banner:     c.banner,
		Submitting: c.submitting,
	}
	if !v.Open {
		return v
	}
	if c.fallback {
		v.Title = "Unavailable"
		v.Fallback = fmt.Sprintf("No form is available for %q.", c.req.Tag.String())
		return v
	}
	switch c.req.Op {
	case entity.OpDelete:
		v.Title = "Delete " + c.desc.DisplayName
		v.Prompt = c.desc.DeletePrompt(c.req.RecordID)
	case entity.OpUpdate:
		v.Title = "Update " + c.desc.DisplayName
	default:
		v.Title = "Create " + c.desc.DisplayName
	}
	v.Template = c.desc.Template
	if c.form != nil {
		v.Values = c.form.Values()
	}
	if len(c.errors) > 0 {
		v.Errors = make(entity.ValidationErrors, len(c.errors))
		for k, msg := range c.errors {
			v.Errors[k] = msg
		}
	}
	return v
}
