package clinic

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists clinic accounts.
type Repository interface {
	// Create inserts a new account; a duplicate email yields shared.ErrAlreadyExists.
	Create(ctx context.Context, c *Clinic) error
	Update(ctx context.Context, c *Clinic) error
	FindByID(ctx context.Context, id uuid.UUID) (*Clinic, error)
	FindByEmail(ctx context.Context, email string) (*Clinic, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}
