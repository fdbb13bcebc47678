package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/userkeeper/internal/common"
	"github.com/dmitrijs2005/userkeeper/internal/cryptox"
	"github.com/dmitrijs2005/userkeeper/internal/logging"
	"github.com/dmitrijs2005/userkeeper/internal/server/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n....")

type harness struct {
	users    *fakeUsers
	pictures *fakePictures
	hasher   cryptox.Hasher
	reg      *RegistrationService
	lookup   *LookupService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		users:    newFakeUsers(),
		pictures: newFakePictures(),
		hasher:   cryptox.NewBcryptHasher(bcrypt.MinCost),
	}
	h.reg = NewRegistrationService(h.users, h.pictures, h.hasher, time.Second, logging.Nop())
	h.lookup = NewLookupService(h.users, h.pictures, time.Second, logging.Nop())
	return h
}

func anaInput() RegisterInput {
	return RegisterInput{
		FirstName:   "Ana",
		Email:       "ana@example.com",
		Password:    "secret1",
		Phone:       "555-0100",
		Picture:     pngBytes,
		ContentType: "image/png",
	}
}

func TestRegister_SuccessThenLookup(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	got, err := h.reg.Register(ctx, anaInput())
	require.NoError(t, err)

	_, parseErr := uuid.Parse(got.ID)
	require.NoError(t, parseErr, "id must be a uuid")
	assert.Equal(t, &models.PublicUser{ID: got.ID, FirstName: "Ana", Email: "ana@example.com", Phone: "555-0100"}, got)

	found, err := h.lookup.GetByID(ctx, got.ID)
	require.NoError(t, err)
	assert.Equal(t, got, found)

	stored, err := h.users.GetByID(ctx, got.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", stored.PasswordHash)
	assert.True(t, h.hasher.Verify("secret1", stored.PasswordHash))

	pic, err := h.pictures.Get(ctx, got.ID)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, pic.Data)
	assert.Equal(t, "image/png", pic.ContentType)
}

func TestRegister_SameIDUsedForBothStores(t *testing.T) {
	h := newHarness(t)
	h.reg.newID = func() string { return "11111111-2222-3333-4444-555555555555" }

	got, err := h.reg.Register(context.Background(), anaInput())
	require.NoError(t, err)

	assert.Equal(t, "11111111-2222-3333-4444-555555555555", got.ID)
	assert.Contains(t, h.users.byID, got.ID)
	assert.Contains(t, h.pictures.pictures, got.ID)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.reg.Register(ctx, anaInput())
	require.NoError(t, err)

	again := anaInput()
	again.Email = "  ana@Example.COM "
	_, err = h.reg.Register(ctx, again)
	require.ErrorIs(t, err, common.ErrorEmailAlreadyRegistered)

	assert.Equal(t, 1, h.users.countByEmail("ana@example.com"))
	assert.Equal(t, 1, h.pictures.puts, "no blob write for a rejected registration")
}

func TestRegister_LocalPartCaseIsKept(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first := anaInput()
	first.Email = " Ana.Smith@Example.com "
	got, err := h.reg.Register(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, "Ana.Smith@example.com", got.Email)

	second := anaInput()
	second.Email = "ana.smith@example.com"
	got2, err := h.reg.Register(ctx, second)
	require.NoError(t, err, "an address differing in local-part case is a different address")
	assert.Equal(t, "ana.smith@example.com", got2.Email)
	assert.NotEqual(t, got.ID, got2.ID)

	stored, err := h.users.GetByID(ctx, got.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana.Smith@example.com", stored.Email)

	stored2, err := h.users.GetByID(ctx, got2.ID)
	require.NoError(t, err)
	assert.Equal(t, "ana.smith@example.com", stored2.Email)
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "ana@example.com", want: "ana@example.com"},
		{in: "  Ana.Smith@EXAMPLE.Com\t", want: "Ana.Smith@example.com"},
		{in: "\"a@b\"@Example.ORG", want: "\"a@b\"@example.org"},
		{in: "no-at-sign", want: "no-at-sign"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeEmail(tt.in), tt.in)
	}
}

func TestRegister_UniqueViolationAfterPreCheck(t *testing.T) {
	h := newHarness(t)
	h.users.stalePreCheck = true
	ctx := context.Background()

	_, err := h.reg.Register(ctx, anaInput())
	require.NoError(t, err)

	_, err = h.reg.Register(ctx, anaInput())
	require.ErrorIs(t, err, common.ErrorEmailAlreadyRegistered)
	assert.Equal(t, 1, h.users.countByEmail("ana@example.com"))
	assert.Equal(t, 1, h.pictures.puts)
}

func TestRegister_ConcurrentSameEmail(t *testing.T) {
	for _, stale := range []bool{false, true} {
		h := newHarness(t)
		h.users.stalePreCheck = stale

		const n = 8
		var wg sync.WaitGroup
		start := make(chan struct{})
		errs := make([]error, n)

		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				_, errs[i] = h.reg.Register(context.Background(), anaInput())
			}(i)
		}
		close(start)
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, common.ErrorEmailAlreadyRegistered)
		}
		assert.Equal(t, 1, succeeded, "stale pre-check=%v", stale)
		assert.Equal(t, 1, h.users.countByEmail("ana@example.com"))
	}
}

func TestRegister_PreCheckStoreFailure(t *testing.T) {
	h := newHarness(t)
	h.users.getByEmailErr = errors.New("connection reset")

	_, err := h.reg.Register(context.Background(), anaInput())
	require.ErrorIs(t, err, common.ErrorRegistrationFailed)
	assert.ErrorIs(t, err, common.ErrorStoreUnavailable)
	assert.Zero(t, h.users.creates)
	assert.Zero(t, h.pictures.puts)
}

func TestRegister_HashingUnavailable(t *testing.T) {
	h := newHarness(t)
	h.reg.hasher = fakeHasher{err: errors.New("no bcrypt today")}

	_, err := h.reg.Register(context.Background(), anaInput())
	require.ErrorIs(t, err, common.ErrorHashingUnavailable)
	assert.Zero(t, h.users.creates)
	assert.Zero(t, h.pictures.puts)
}

func TestRegister_RejectsUnusableVerifier(t *testing.T) {
	for _, out := range []string{"", "secret1"} {
		h := newHarness(t)
		h.reg.hasher = fakeHasher{out: out}

		_, err := h.reg.Register(context.Background(), anaInput())
		require.ErrorIs(t, err, common.ErrorHashingUnavailable)
		assert.Zero(t, h.users.creates)
	}
}

func TestRegister_IdentityStoreUnavailable(t *testing.T) {
	h := newHarness(t)
	h.users.createErr = common.ErrorStoreUnavailable

	_, err := h.reg.Register(context.Background(), anaInput())
	require.ErrorIs(t, err, common.ErrorRegistrationFailed)
	assert.ErrorIs(t, err, common.ErrorStoreUnavailable)
	assert.Zero(t, h.pictures.puts, "no blob write after a failed insert")
}

func TestRegister_IdentityInsertTimeout(t *testing.T) {
	h := newHarness(t)
	h.users.blockCreate = true
	h.reg.storeTimeout = 20 * time.Millisecond

	_, err := h.reg.Register(context.Background(), anaInput())
	require.ErrorIs(t, err, common.ErrorRegistrationFailed)
	assert.ErrorIs(t, err, common.ErrorStoreUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, h.pictures.puts)
}

func TestRegister_ProfileStorageFailedKeepsIdentity(t *testing.T) {
	h := newHarness(t)
	h.pictures.putErr = errors.New("mongo down")
	ctx := context.Background()

	got, err := h.reg.Register(ctx, anaInput())
	require.ErrorIs(t, err, common.ErrorProfileStorageFailed)
	require.NotNil(t, got)

	var pse *ProfileStorageError
	require.ErrorAs(t, err, &pse)
	assert.Equal(t, got.ID, pse.UserID)
	assert.ErrorIs(t, err, common.ErrorStoreUnavailable)
	assert.NotErrorIs(t, err, common.ErrorRegistrationFailed)

	found, err := h.lookup.GetByID(ctx, got.ID)
	require.NoError(t, err, "identity must stay committed")
	assert.Equal(t, "ana@example.com", found.Email)

	_, err = h.pictures.Get(ctx, got.ID)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestRegister_ProfileWriteTimeout(t *testing.T) {
	h := newHarness(t)
	h.pictures.blockPut = true
	h.reg.storeTimeout = 20 * time.Millisecond

	got, err := h.reg.Register(context.Background(), anaInput())
	require.ErrorIs(t, err, common.ErrorProfileStorageFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	require.NotNil(t, got)
	assert.Equal(t, 1, h.users.countByEmail("ana@example.com"))
}

func TestRetryProfilePicture(t *testing.T) {
	h := newHarness(t)
	h.pictures.putErr = errors.New("mongo down")
	ctx := context.Background()

	got, err := h.reg.Register(ctx, anaInput())
	require.ErrorIs(t, err, common.ErrorProfileStorageFailed)

	h.pictures.putErr = nil
	require.NoError(t, h.reg.RetryProfilePicture(ctx, got.ID, []byte("new"), "image/jpeg"))
	require.NoError(t, h.reg.RetryProfilePicture(ctx, got.ID, []byte("newer"), "image/jpeg"))

	pic, err := h.lookup.GetProfilePicture(ctx, got.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("newer"), pic.Data)
	assert.Len(t, h.pictures.pictures, 1)
}

func TestRetryProfilePicture_UnknownUser(t *testing.T) {
	h := newHarness(t)

	err := h.reg.RetryProfilePicture(context.Background(), uuid.NewString(), pngBytes, "image/png")
	require.ErrorIs(t, err, common.ErrorNotFound)

	err = h.reg.RetryProfilePicture(context.Background(), "not-a-uuid", pngBytes, "image/png")
	require.ErrorIs(t, err, common.ErrorNotFound)
	assert.Zero(t, h.pictures.puts)
}

func TestRetryProfilePicture_NonCanonicalID(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	got, err := h.reg.Register(ctx, anaInput())
	require.NoError(t, err)

	require.NoError(t, h.reg.RetryProfilePicture(ctx, "urn:uuid:"+got.ID, []byte("v2"), "image/png"))

	pic, err := h.pictures.Get(ctx, got.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), pic.Data)
	assert.Len(t, h.pictures.pictures, 1)
}

func TestRetryProfilePicture_Failures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	got, err := h.reg.Register(ctx, anaInput())
	require.NoError(t, err)

	h.pictures.putErr = errors.New("s3 down")
	err = h.reg.RetryProfilePicture(ctx, got.ID, pngBytes, "image/png")
	require.ErrorIs(t, err, common.ErrorProfileStorageFailed)

	h.users.getByIDErr = errors.New("pg down")
	err = h.reg.RetryProfilePicture(ctx, got.ID, pngBytes, "image/png")
	require.ErrorIs(t, err, common.ErrorStoreUnavailable)
	assert.NotErrorIs(t, err, common.ErrorProfileStorageFailed)
}
