package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jrsteele09/servicedesk/identity"
	"github.com/jrsteele09/servicedesk/internal/validate"
	"github.com/jrsteele09/servicedesk/users"
)

// SignUpRequest is the sign-up form. Only clients and employees can register themselves.
type SignUpRequest struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
	Role            string `json:"role" validate:"required,oneof=client employee"`
}

// Actions are the user initiated credential operations
type Actions struct {
	gateway   identity.Gateway
	repo      users.Repo
	cache     *Cache
	validator *validate.Validator
	nowTime   func() time.Time
	logger    zerolog.Logger
}

type ActionsOption func(*Actions)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ActionsOption {
	return func(a *Actions) {
		a.nowTime = nowFunc
	}
}

func WithActionsLogger(logger zerolog.Logger) ActionsOption {
	return func(a *Actions) {
		a.logger = logger
	}
}

func NewActions(gateway identity.Gateway, repo users.Repo, cache *Cache, opts ...ActionsOption) *Actions {
	a := &Actions{
		gateway:   gateway,
		repo:      repo,
		cache:     cache,
		validator: validate.New(),
		nowTime:   time.Now,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With().Str("component", "credential_actions").Logger()
	return a
}

// SignIn authenticates and loads the profile into the cache. Gateway failures are
// returned untouched. A session without a readable profile is ended again and
// reported as ErrProfileUnavailable.
func (a *Actions) SignIn(ctx context.Context, email, password string) (*users.User, error) {
	a.cache.SetLoading(true)
	defer a.cache.SetLoading(false)

	session, err := a.gateway.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if session == nil || session.UserID == "" {
		a.endPartialSession(ctx)
		return nil, identity.NewAuthError(identity.CodeUnknown, "No user data returned from authentication", nil)
	}

	profile, err := a.repo.GetByID(ctx, session.UserID)
	switch {
	case errors.Is(err, users.ErrNotFound), err == nil && profile == nil:
		a.logger.Warn().Str("user_id", session.UserID).Msg("no user profile found")
		a.endPartialSession(ctx)
		return nil, ErrProfileUnavailable.withCause("User profile not found", err)
	case err != nil:
		a.logger.Error().Err(err).Str("user_id", session.UserID).Msg("error fetching user profile")
		a.endPartialSession(ctx)
		return nil, ErrProfileUnavailable.withCause(ErrProfileUnavailable.Message, err)
	}

	a.cache.Set(profile)
	a.logger.Info().Str("user_id", profile.ID).Str("role", string(profile.Role)).Msg("signed in")
	return profile, nil
}

// SignOut asks the gateway to end the session. The cache is cleared by the
// resulting session event, not here.
func (a *Actions) SignOut(ctx context.Context) error {
	return a.gateway.SignOut(ctx)
}

// SignUp registers the account, creates its profile and signs in
func (a *Actions) SignUp(ctx context.Context, req SignUpRequest) error {
	if err := a.validateSignUp(req); err != nil {
		return err
	}

	res, err := a.gateway.SignUp(ctx, req.Email, req.Password, identity.Metadata{Name: req.Name, Role: req.Role})
	if err != nil {
		a.logger.Info().Err(err).Msg("sign up rejected")
		var authErr *identity.AuthError
		if errors.As(err, &authErr) && authErr.Message == "" {
			return identity.NewAuthError(authErr.Code, "Failed to create account", authErr)
		}
		return err
	}
	if res == nil || res.UserID == "" {
		return ErrAccountIncomplete
	}
	if res.Session == nil {
		return ErrConfirmationRequired
	}

	profile := &users.User{
		ID:        res.UserID,
		Email:     req.Email,
		Name:      req.Name,
		Role:      users.RoleType(req.Role),
		CreatedAt: a.nowTime().UTC(),
	}
	if err := a.repo.Insert(ctx, profile); err != nil {
		a.logger.Error().Err(err).Str("user_id", res.UserID).Msg("profile creation error")
		if users.IsDuplicateKey(err) {
			return ErrEmailRegistered.withCause(ErrEmailRegistered.Message, err)
		}
		var storeErr *users.StoreError
		if errors.As(err, &storeErr) && storeErr.Message == "" {
			return &users.StoreError{Code: storeErr.Code, Message: "Failed to create user profile", Err: storeErr.Err}
		}
		return err
	}

	_, err = a.SignIn(ctx, req.Email, req.Password)
	return err
}

// validateSignUp reports the first problem in the order the form presents them
func (a *Actions) validateSignUp(req SignUpRequest) error {
	err := a.validator.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validate.Errors
	if !errors.As(err, &verrs) {
		return err
	}

	for _, check := range []struct {
		tag     string
		message string
	}{
		{"required", "All fields are required"},
		{"eqfield", "Passwords do not match"},
		{"email", "Please enter a valid email address"},
		{"oneof", "Please choose client or employee"},
	} {
		for _, fe := range verrs {
			if fe.Tag == check.tag {
				return validationError(fe.Field, check.message)
			}
		}
	}
	return validationError(verrs[0].Field, fmt.Sprintf("Invalid %s", verrs[0].Field))
}

func (a *Actions) endPartialSession(ctx context.Context) {
	if err := a.gateway.SignOut(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("failed to clear partial session")
	}
}
