package services

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/userkeeper/internal/common"
	"github.com/dmitrijs2005/userkeeper/internal/server/models"
)

// fakeUsers behaves like the identity table: Create enforces email
// uniqueness atomically, independent of any earlier GetByEmail.
type fakeUsers struct {
	mu      sync.Mutex
	byID    map[string]*models.User
	byEmail map[string]string

	// stalePreCheck makes GetByEmail always miss, so only Create guards uniqueness.
	stalePreCheck bool

	getByEmailErr error
	createErr     error
	getByIDErr    error

	// blockCreate, when set, makes Create wait for ctx to end.
	blockCreate bool

	creates int
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: map[string]*models.User{}, byEmail: map[string]string{}}
}

func (f *fakeUsers) Create(ctx context.Context, u *models.User) error {
	if f.blockCreate {
		<-ctx.Done()
		return ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if _, taken := f.byEmail[u.Email]; taken {
		return common.ErrorUniqueViolation
	}
	cp := *u
	f.byID[u.ID] = &cp
	f.byEmail[u.Email] = u.ID
	f.creates++
	return nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getByEmailErr != nil {
		return nil, f.getByEmailErr
	}
	if f.stalePreCheck {
		return nil, common.ErrorNotFound
	}
	id, ok := f.byEmail[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *f.byID[id]
	return &cp, nil
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getByIDErr != nil {
		return nil, f.getByIDErr
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) countByEmail(email string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, u := range f.byID {
		if u.Email == email {
			n++
		}
	}
	return n
}

type fakePictures struct {
	mu       sync.Mutex
	pictures map[string]*models.ProfilePicture
	putErr   error
	getErr   error
	puts     int

	blockPut bool
}

func newFakePictures() *fakePictures {
	return &fakePictures{pictures: map[string]*models.ProfilePicture{}}
}

func (f *fakePictures) Put(ctx context.Context, p *models.ProfilePicture) error {
	if f.blockPut {
		<-ctx.Done()
		return ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	if f.putErr != nil {
		return f.putErr
	}
	cp := *p
	f.pictures[p.UserID] = &cp
	return nil
}

func (f *fakePictures) Get(_ context.Context, userID string) (*models.ProfilePicture, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	p, ok := f.pictures[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *p
	return &cp, nil
}

type fakeHasher struct {
	out string
	err error
}

func (f fakeHasher) Hash(string) (string, error) { return f.out, f.err }
func (f fakeHasher) Verify(string, string) bool  { return false }
