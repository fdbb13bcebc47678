package users

import (
	"context"

	"github.com/dmitrijs2005/userkeeper/internal/server/models"
)

// Repository is the identity store. The store itself enforces email
// uniqueness; Create reports a lost race as common.ErrorUniqueViolation.
type Repository interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
}
