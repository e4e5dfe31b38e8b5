// Package admin is the user management surface available to admin profiles.
package admin

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	apperrors "github.com/jrsteele09/servicedesk/internal/errors"
	"github.com/jrsteele09/servicedesk/internal/validate"
	"github.com/jrsteele09/servicedesk/session"
	"github.com/jrsteele09/servicedesk/users"
)

// ErrForbidden is returned when the signed in profile is not an admin, including
// when nobody is signed in.
var ErrForbidden = apperrors.ErrForbidden

// UserInput is the editable part of a profile
type UserInput struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required"`
}

// UserManager lists and edits profiles on behalf of the signed in admin
type UserManager struct {
	repo      users.Repo
	cache     *session.Cache
	validator *validate.Validator
	newID     func() string
	logger    zerolog.Logger
}

type UserManagerOption func(*UserManager)

func WithLogger(logger zerolog.Logger) UserManagerOption {
	return func(m *UserManager) {
		m.logger = logger
	}
}

// WithIDGenerator sets how new profile ids are made (primarily for testing)
func WithIDGenerator(newID func() string) UserManagerOption {
	return func(m *UserManager) {
		m.newID = newID
	}
}

func NewUserManager(repo users.Repo, cache *session.Cache, opts ...UserManagerOption) *UserManager {
	m := &UserManager{
		repo:      repo,
		cache:     cache,
		validator: validate.New(),
		newID:     func() string { return uuid.New().String() },
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With().Str("component", "user_manager").Logger()
	return m
}

// List returns every profile, newest first
func (m *UserManager) List(ctx context.Context) ([]*users.User, error) {
	if err := m.authorize("List"); err != nil {
		return nil, err
	}
	list, err := m.repo.List(ctx)
	if err != nil {
		m.logger.Error().Err(err).Msg("error fetching users")
		return nil, errors.Wrap(err, "Failed to load users")
	}
	return list, nil
}

func (m *UserManager) Get(ctx context.Context, id string) (*users.User, error) {
	if err := m.authorize("Get"); err != nil {
		return nil, err
	}
	user, err := m.repo.GetByID(ctx, id)
	if err != nil {
		m.logger.Error().Err(err).Str("user_id", id).Msg("error fetching user")
		return nil, errors.Wrap(err, "Failed to load user details")
	}
	return user, nil
}

// Create adds a profile under a fresh id. The account at the identity provider is
// not created here.
func (m *UserManager) Create(ctx context.Context, in UserInput) (*users.User, error) {
	if err := m.authorize("Create"); err != nil {
		return nil, err
	}
	role, err := m.check(in)
	if err != nil {
		return nil, err
	}

	user := &users.User{
		ID:    m.newID(),
		Name:  strings.TrimSpace(in.Name),
		Email: strings.TrimSpace(in.Email),
		Role:  role,
	}
	if err := m.repo.Insert(ctx, user); err != nil {
		m.logger.Error().Err(err).Msg("error creating user")
		return nil, errors.Wrap(err, "Failed to save user")
	}
	m.logger.Info().Str("user_id", user.ID).Str("role", string(role)).Msg("user created")
	return user, nil
}

// Update replaces name, email and role of an existing profile
func (m *UserManager) Update(ctx context.Context, id string, in UserInput) (*users.User, error) {
	if err := m.authorize("Update"); err != nil {
		return nil, err
	}
	role, err := m.check(in)
	if err != nil {
		return nil, err
	}

	user := &users.User{
		ID:    id,
		Name:  strings.TrimSpace(in.Name),
		Email: strings.TrimSpace(in.Email),
		Role:  role,
	}
	if err := m.repo.Update(ctx, user); err != nil {
		m.logger.Error().Err(err).Str("user_id", id).Msg("error updating user")
		return nil, errors.Wrap(err, "Failed to save user")
	}
	return m.repo.GetByID(ctx, id)
}

func (m *UserManager) Delete(ctx context.Context, id string) error {
	if err := m.authorize("Delete"); err != nil {
		return err
	}
	if err := m.repo.Delete(ctx, id); err != nil {
		m.logger.Error().Err(err).Str("user_id", id).Msg("error deleting user")
		return errors.Wrap(err, "Failed to delete user")
	}
	m.logger.Info().Str("user_id", id).Msg("user deleted")
	return nil
}

// authorize fails closed: no cached profile means no access
func (m *UserManager) authorize(op string) error {
	if m.cache.Get().Profile.IsAdmin() {
		return nil
	}
	return apperrors.Wrapf(ErrForbidden, "[%s] admin role required", op)
}

func (m *UserManager) check(in UserInput) (users.RoleType, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	if err := m.validator.Struct(in); err != nil {
		var verrs validate.Errors
		if !errors.As(err, &verrs) {
			return "", err
		}
		if verrs.Has("required") {
			return "", &session.ValidationError{Field: verrs[0].Field, Message: "Please fill in all required fields"}
		}
		return "", &session.ValidationError{Field: verrs[0].Field, Message: "Please enter a valid email address"}
	}
	role, err := users.ParseRole(in.Role)
	if err != nil {
		return "", &session.ValidationError{Field: "role", Message: "Please choose a valid role"}
	}
	return role, nil
}
