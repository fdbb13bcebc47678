package services

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/userkeeper/internal/common"
)

// ProfileStorageError reports a registration that is only partially done:
// the identity with UserID is committed and retrievable, its profile picture
// is not stored. It matches common.ErrorProfileStorageFailed under errors.Is.
type ProfileStorageError struct {
	UserID string
	Err    error
}

func (e *ProfileStorageError) Error() string {
	return fmt.Sprintf("user %s created, profile picture not stored: %v", e.UserID, e.Err)
}

func (e *ProfileStorageError) Unwrap() []error {
	return []error{common.ErrorProfileStorageFailed, e.Err}
}

// storeUnavailable makes sure err is recognised as common.ErrorStoreUnavailable.
// Repositories already do this; timeouts raised by fakes or by the context
// itself may not.
func storeUnavailable(err error) error {
	if errors.Is(err, common.ErrorStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", common.ErrorStoreUnavailable, err)
}
