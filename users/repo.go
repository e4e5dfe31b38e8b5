package users

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when no profile exists for the requested id
var ErrNotFound = errors.New("user not found")

// CodeDuplicateKey is the store code for a uniqueness violation (Postgres unique_violation)
const CodeDuplicateKey = "23505"

// StoreError is a failure reported by a profile store
type StoreError struct {
	Code    string
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("store error %s: %s", e.Code, e.Message)
	}
	return "store error: " + e.Message
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsDuplicateKey reports whether err is a uniqueness violation from a store
func IsDuplicateKey(err error) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Code == CodeDuplicateKey
}

type Repo interface {
	GetByID(ctx context.Context, id string) (*User, error)
	Insert(ctx context.Context, user *User) error
	List(ctx context.Context) ([]*User, error)
	Update(ctx context.Context, user *User) error
	Delete(ctx context.Context, id string) error
}
