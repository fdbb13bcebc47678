package services

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/userkeeper/internal/common"
	"github.com/dmitrijs2005/userkeeper/internal/logging"
	"github.com/dmitrijs2005/userkeeper/internal/server/models"
	"github.com/dmitrijs2005/userkeeper/internal/server/repositories/profiles"
	"github.com/dmitrijs2005/userkeeper/internal/server/repositories/users"
)

// LookupService resolves user IDs. GetByID reads the identity store only.
type LookupService struct {
	users        users.Repository
	pictures     profiles.Repository
	storeTimeout time.Duration
	logger       logging.Logger
}

func NewLookupService(u users.Repository, p profiles.Repository, storeTimeout time.Duration, l logging.Logger) *LookupService {
	return &LookupService{
		users:        u,
		pictures:     p,
		storeTimeout: storeTimeout,
		logger:       l.With("module", "lookup"),
	}
}

// GetByID returns the public projection of the user, or common.ErrorNotFound.
func (s *LookupService) GetByID(ctx context.Context, id string) (*models.PublicUser, error) {
	id, ok := canonicalID(id)
	if !ok {
		return nil, common.ErrorNotFound
	}

	sctx, cancel := boundedContext(ctx, s.storeTimeout)
	defer cancel()

	user, err := s.users.GetByID(sctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		s.logger.Error(ctx, "identity lookup failed", "user_id", id, "error", err)
		return nil, storeUnavailable(err)
	}

	return user.Public(), nil
}

// GetProfilePicture returns the stored picture of the user, or
// common.ErrorNotFound when there is none.
func (s *LookupService) GetProfilePicture(ctx context.Context, id string) (*models.ProfilePicture, error) {
	id, ok := canonicalID(id)
	if !ok {
		return nil, common.ErrorNotFound
	}

	sctx, cancel := boundedContext(ctx, s.storeTimeout)
	defer cancel()

	pic, err := s.pictures.Get(sctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		s.logger.Error(ctx, "profile picture lookup failed", "user_id", id, "error", err)
		return nil, storeUnavailable(err)
	}

	return pic, nil
}
