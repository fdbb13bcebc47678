// Package profiles stores profile pictures in a blob store that is separate
// from the identity database. Put is an upsert keyed by user ID, so repeating
// it with the same ID replaces the previous picture.
package profiles

import (
	"context"

	"github.com/dmitrijs2005/userkeeper/internal/server/models"
)

type Repository interface {
	Put(ctx context.Context, picture *models.ProfilePicture) error
	Get(ctx context.Context, userID string) (*models.ProfilePicture, error)
}
