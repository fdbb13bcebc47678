// Package services contains server-side business logic: the registration
// coordinator, which writes a user to the identity store and its picture to
// the blob store, and the read-only lookup service.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/userkeeper/internal/common"
	"github.com/dmitrijs2005/userkeeper/internal/cryptox"
	"github.com/dmitrijs2005/userkeeper/internal/logging"
	"github.com/dmitrijs2005/userkeeper/internal/server/models"
	"github.com/dmitrijs2005/userkeeper/internal/server/repositories/profiles"
	"github.com/dmitrijs2005/userkeeper/internal/server/repositories/users"
	"github.com/google/uuid"
)

// RegisterInput carries an already validated registration request.
type RegisterInput struct {
	FirstName   string
	Email       string
	Password    string
	Phone       string
	Picture     []byte
	ContentType string
}

// RegistrationService creates users across two independent stores. There is
// no cross-store transaction: the identity row is written first and is never
// rolled back; a failed picture write is reported as *ProfileStorageError.
type RegistrationService struct {
	users        users.Repository
	pictures     profiles.Repository
	hasher       cryptox.Hasher
	storeTimeout time.Duration
	logger       logging.Logger
	newID        func() string
}

func NewRegistrationService(u users.Repository, p profiles.Repository, h cryptox.Hasher,
	storeTimeout time.Duration, l logging.Logger) *RegistrationService {
	return &RegistrationService{
		users:        u,
		pictures:     p,
		hasher:       h,
		storeTimeout: storeTimeout,
		logger:       l.With("module", "registration"),
		newID:        uuid.NewString,
	}
}

// Register creates the identity and stores its picture.
//
// Outcomes:
//   - success: the public projection, nil error;
//   - common.ErrorEmailAlreadyRegistered: nothing written;
//   - common.ErrorHashingUnavailable, common.ErrorRegistrationFailed: nothing written;
//   - *ProfileStorageError: identity committed, picture missing. The public
//     projection is returned alongside the error.
func (s *RegistrationService) Register(ctx context.Context, in RegisterInput) (*models.PublicUser, error) {
	email := normalizeEmail(in.Email)

	// Fast path only; the unique index decides below.
	if err := s.ensureEmailFree(ctx, email); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		s.logger.Error(ctx, "hashing failed", "error", err)
		return nil, fmt.Errorf("%w: %w", common.ErrorHashingUnavailable, err)
	}
	if hash == "" || hash == in.Password {
		s.logger.Error(ctx, "hasher returned an unusable verifier")
		return nil, common.ErrorHashingUnavailable
	}

	user := &models.User{
		ID:           s.newID(),
		FirstName:    in.FirstName,
		Email:        email,
		PasswordHash: hash,
		Phone:        in.Phone,
	}

	if err := s.createUser(ctx, user); err != nil {
		return nil, err
	}

	public := user.Public()

	if err := s.putPicture(ctx, user.ID, in.Picture, in.ContentType); err != nil {
		return public, err
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID)
	return public, nil
}

// RetryProfilePicture stores the picture of an already registered user. It
// is the remediation for a *ProfileStorageError and is safe to repeat.
func (s *RegistrationService) RetryProfilePicture(ctx context.Context, userID string, picture []byte, contentType string) error {
	userID, ok := canonicalID(userID)
	if !ok {
		return common.ErrorNotFound
	}

	sctx, cancel := boundedContext(ctx, s.storeTimeout)
	_, err := s.users.GetByID(sctx, userID)
	cancel()
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		s.logger.Error(ctx, "identity lookup failed", "user_id", userID, "error", err)
		return storeUnavailable(err)
	}

	if err := s.putPicture(ctx, userID, picture, contentType); err != nil {
		return err
	}

	s.logger.Info(ctx, "profile picture stored", "user_id", userID)
	return nil
}

func (s *RegistrationService) ensureEmailFree(ctx context.Context, email string) error {
	sctx, cancel := boundedContext(ctx, s.storeTimeout)
	defer cancel()

	_, err := s.users.GetByEmail(sctx, email)
	switch {
	case err == nil:
		s.logger.Info(ctx, "email already registered")
		return common.ErrorEmailAlreadyRegistered
	case errors.Is(err, common.ErrorNotFound):
		return nil
	default:
		s.logger.Error(ctx, "email pre-check failed", "error", err)
		return fmt.Errorf("%w: %w", common.ErrorRegistrationFailed, storeUnavailable(err))
	}
}

func (s *RegistrationService) createUser(ctx context.Context, user *models.User) error {
	sctx, cancel := boundedContext(ctx, s.storeTimeout)
	defer cancel()

	err := s.users.Create(sctx, user)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, common.ErrorUniqueViolation):
		s.logger.Info(ctx, "email taken by a concurrent registration")
		return common.ErrorEmailAlreadyRegistered
	default:
		// the store is the source of truth; a failed or timed out insert counts as not written
		s.logger.Error(ctx, "identity insert failed", "user_id", user.ID, "error", err)
		return fmt.Errorf("%w: %w", common.ErrorRegistrationFailed, storeUnavailable(err))
	}
}

func (s *RegistrationService) putPicture(ctx context.Context, userID string, data []byte, contentType string) error {
	sctx, cancel := boundedContext(ctx, s.storeTimeout)
	defer cancel()

	pic := &models.ProfilePicture{UserID: userID, Data: data, ContentType: contentType}
	if err := s.pictures.Put(sctx, pic); err != nil {
		s.logger.Error(ctx, "profile picture write failed, identity kept", "user_id", userID, "error", err)
		return &ProfileStorageError{UserID: userID, Err: storeUnavailable(err)}
	}
	return nil
}
