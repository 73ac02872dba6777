package modal

import (
	"strings"

	"github.com/pointage-admin/pointage-admin/internal/entity"
)

// CloseReason names how a dialog was dismissed.
type CloseReason string

const (
	ReasonSubmitted CloseReason = "submitted"
	ReasonCancel    CloseReason = "cancel"
	ReasonEscape    CloseReason = "escape"
	ReasonBackdrop  CloseReason = "backdrop"
)

// ParseCloseReason maps a form value to a reason. Unknown values mean cancel.
func ParseCloseReason(raw string) CloseReason {
	switch reason := CloseReason(strings.ToLower(strings.TrimSpace(raw))); reason {
	case ReasonEscape, ReasonBackdrop:
		return reason
	}
	return ReasonCancel
}

// Result is the outcome of a closed dialog.
type Result interface {
	// Refetch reports whether the list behind the dialog changed.
	Refetch() bool
	result()
}

// Submitted is returned after a successful create or update.
type Submitted struct {
	Tag      entity.Tag
	Op       entity.Operation
	RecordID string
}

func (Submitted) Refetch() bool { return true }
func (Submitted) result()       {}

// Cancelled is returned when the dialog closed without a change.
type Cancelled struct {
	Reason CloseReason
}

func (Cancelled) Refetch() bool { return false }
func (Cancelled) result()       {}

// DeleteConfirmed is returned after a successful delete.
type DeleteConfirmed struct {
	Tag entity.Tag
	ID  string
}

func (DeleteConfirmed) Refetch() bool { return true }
func (DeleteConfirmed) result()       {}
