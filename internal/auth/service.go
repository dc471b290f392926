package auth

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/cleancity/wastetrack/internal/shared"
	"github.com/cleancity/wastetrack/internal/validation"
)

// Service wraps authentication business rules.
type Service struct {
	repo     Repository
	sessions *shared.SessionManager
	hashCost int
}

// NewService constructs a new Service.
func NewService(repo Repository, sessions *shared.SessionManager) *Service {
	return &Service{repo: repo, sessions: sessions, hashCost: bcrypt.DefaultCost}
}

// WithHashCost overrides the bcrypt cost.
func (s *Service) WithHashCost(cost int) *Service {
	s.hashCost = cost
	return s
}

// SignUpInput carries citizen registration fields.
type SignUpInput struct {
	Email    string
	Password string
	FullName string
}

func (in SignUpInput) validate() validation.Errors {
	errs := validation.Errors{}
	errs.Check("email", validation.Email(strings.TrimSpace(in.Email)))
	errs.Check("password", validation.Password(in.Password))
	errs.Check("full_name", validation.Required(in.FullName))
	return errs
}

// SignUp registers a citizen identity. Accounts are confirmed on creation.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (*Identity, error) {
	if errs := in.validate(); !errs.Empty() {
		return nil, errs
	}
	return s.create(ctx, in)
}

// CreateConfirmed creates a confirmed identity on behalf of an administrator.
func (s *Service) CreateConfirmed(ctx context.Context, email, password, fullName string) (*Identity, error) {
	in := SignUpInput{Email: email, Password: password, FullName: fullName}
	if errs := in.validate(); !errs.Empty() {
		return nil, errs
	}
	return s.create(ctx, in)
}

func (s *Service) create(ctx context.Context, in SignUpInput) (*Identity, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, Identity{
		Email:        strings.TrimSpace(in.Email),
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(in.FullName),
		Confirmed:    true,
	})
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Identity, error) {
	identity, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !identity.Confirmed {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return identity, nil
}

// SignIn binds the identity to a fresh session ID.
func (s *Service) SignIn(sess *shared.Session, identity *Identity) {
	if sess == nil || identity == nil {
		return
	}
	s.sessions.Regenerate(sess)
	sess.SetUser(identity.ID)
}

// SignOut destroys the session.
func (s *Service) SignOut(sess *shared.Session) {
	s.sessions.Destroy(sess)
}

// Current returns the identity bound to the request session.
func (s *Service) Current(ctx context.Context) (*Identity, error) {
	sess := shared.SessionFromContext(ctx)
	if sess == nil || sess.User() == "" {
		return nil, shared.ErrNotFound
	}
	return s.repo.FindByID(ctx, sess.User())
}

// FindByEmail looks an identity up by email.
func (s *Service) FindByEmail(ctx context.Context, email string) (*Identity, error) {
	return s.repo.FindByEmail(ctx, email)
}

// FindByID looks an identity up by id.
func (s *Service) FindByID(ctx context.Context, id string) (*Identity, error) {
	return s.repo.FindByID(ctx, id)
}

// IdentityEmail implements rbac.IdentityDirectory.
func (s *Service) IdentityEmail(ctx context.Context, id string) (string, error) {
	identity, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	return identity.Email, nil
}

// Delete removes an identity. A missing identity is not an error.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil && !errors.Is(err, shared.ErrNotFound) {
		return err
	}
	return nil
}
