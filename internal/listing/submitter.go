package listing

import (
	"context"

	"github.com/pointage-admin/pointage-admin/internal/entity"
)

// API is the part of the backend client used by list pages.
type API interface {
	List(ctx context.Context, token string, d entity.Descriptor) ([]entity.Record, error)
	Create(ctx context.Context, token string, d entity.Descriptor, payload any) error
	Update(ctx context.Context, token string, d entity.Descriptor, id string, payload any) error
	Delete(ctx context.Context, token string, d entity.Descriptor, id string) error
}

// tokenSubmitter binds the session token to the API for one dialog.
type tokenSubmitter struct {
	api   API
	token string
}

func (s tokenSubmitter) Create(ctx context.Context, d entity.Descriptor, payload any) error {
	return s.api.Create(ctx, s.token, d, payload)
}

func (s tokenSubmitter) Update(ctx context.Context, d entity.Descriptor, id string, payload any) error {
	return s.api.Update(ctx, s.token, d, id, payload)
}

func (s tokenSubmitter) Delete(ctx context.Context, d entity.Descriptor, id string) error {
	return s.api.Delete(ctx, s.token, d, id)
}
