package fakeuserrepo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/servicedesk/users"
)

var _ users.Repo = (*FakeUserRepo)(nil)

// FakeUserRepo is an in-memory profile store with the same uniqueness rules as Postgres
type FakeUserRepo struct {
	users    map[string]*users.User
	emailIds map[string]string // email to user id
	lock     sync.RWMutex
	now      func() time.Time
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:    make(map[string]*users.User),
		emailIds: make(map[string]string),
		now:      time.Now,
	}
}

func duplicateEmail(email string) error {
	return &users.StoreError{
		Code:    users.CodeDuplicateKey,
		Message: fmt.Sprintf(`duplicate key value violates unique constraint "users_email_key": (email)=(%s)`, email),
	}
}

func (ur *FakeUserRepo) Insert(_ context.Context, user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if _, ok := ur.users[user.ID]; ok {
		return &users.StoreError{Code: users.CodeDuplicateKey, Message: `duplicate key value violates unique constraint "users_pkey"`}
	}
	if _, ok := ur.emailIds[user.Email]; ok {
		return duplicateEmail(user.Email)
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = ur.now()
	}
	ur.users[user.ID] = user.Clone()
	ur.emailIds[user.Email] = user.ID
	return nil
}

func (ur *FakeUserRepo) Update(_ context.Context, user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	existing, ok := ur.users[user.ID]
	if !ok {
		return users.ErrNotFound
	}
	if owner, ok := ur.emailIds[user.Email]; ok && owner != user.ID {
		return duplicateEmail(user.Email)
	}
	delete(ur.emailIds, existing.Email)

	updated := user.Clone()
	updated.CreatedAt = existing.CreatedAt
	ur.users[user.ID] = updated
	ur.emailIds[user.Email] = user.ID
	return nil
}

func (ur *FakeUserRepo) Delete(_ context.Context, id string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	user, ok := ur.users[id]
	if !ok {
		return users.ErrNotFound
	}
	delete(ur.emailIds, user.Email)
	delete(ur.users, id)
	return nil
}

func (ur *FakeUserRepo) GetByID(_ context.Context, id string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	user, ok := ur.users[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	return user.Clone(), nil
}

// List returns every profile, newest first
func (ur *FakeUserRepo) List(_ context.Context) ([]*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	userList := make([]*users.User, 0, len(ur.users))
	for _, v := range ur.users {
		userList = append(userList, v.Clone())
	}

	sort.Slice(userList, func(i, j int) bool {
		if userList[i].CreatedAt.Equal(userList[j].CreatedAt) {
			return userList[i].ID < userList[j].ID
		}
		return userList[i].CreatedAt.After(userList[j].CreatedAt)
	})
	return userList, nil
}
