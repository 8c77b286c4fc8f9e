package accounts

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/deicod/svcerr/apierror"
	"github.com/deicod/svcerr/blocking"
	"github.com/deicod/svcerr/internal/store"
	"github.com/deicod/svcerr/viewer"
	"github.com/google/uuid"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 256
)

// Repository is the persistence the service needs. *store.Store implements it.
type Repository interface {
	CreateAccount(ctx context.Context, a *store.Account) error
	AccountByID(ctx context.Context, id string) (*store.Account, error)
	AccountByEmail(ctx context.Context, email string) (*store.Account, error)
	DeleteAccount(ctx context.Context, id string) error
}

// Hasher turns a plain password into a storable hash.
type Hasher interface {
	Hash(plain string) (string, error)
}

// Argon2Hasher hashes passwords with argon2id.
type Argon2Hasher struct {
	Params *argon2id.Params
}

// Hash implements Hasher. Nil params mean argon2id.DefaultParams.
func (h Argon2Hasher) Hash(plain string) (string, error) {
	params := h.Params
	if params == nil {
		params = argon2id.DefaultParams
	}
	return argon2id.CreateHash(plain, params)
}

// Account is the public representation of a stored account.
type Account struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func fromStored(a *store.Account) *Account {
	return &Account{ID: a.ID, Email: a.Email, CreatedAt: a.CreatedAt}
}

// Service manages accounts. Every error it returns is an *apierror.Error.
type Service struct {
	repo   Repository
	hasher Hasher
	pool   *blocking.Pool
	newID  func() string
}

// NewService wires a Service. A nil hasher means argon2id with default parameters;
// hashing runs on pool.
func NewService(repo Repository, hasher Hasher, pool *blocking.Pool) *Service {
	if hasher == nil {
		hasher = Argon2Hasher{}
	}
	return &Service{repo: repo, hasher: hasher, pool: pool, newID: uuid.NewString}
}

// Register creates an account for email protected by password.
func (s *Service) Register(ctx context.Context, email, password string) (*Account, error) {
	email, err := validateEmail(email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	hash, err := blocking.Do(ctx, s.pool, func() (string, error) {
		return s.hasher.Hash(password)
	})
	if err != nil {
		return nil, apierror.FromBlockingFailure(err, nil)
	}

	stored := &store.Account{ID: s.newID(), Email: email, PasswordHash: hash}
	if err := s.repo.CreateAccount(ctx, stored); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			return nil, apierror.BadRequest("email already taken").WithCause(err)
		}
		return nil, apierror.FromDataAccessFailure(err)
	}
	return fromStored(stored), nil
}

// Get loads an account by id.
func (s *Service) Get(ctx context.Context, id string) (*Account, error) {
	id, err := parseID(id)
	if err != nil {
		return nil, err
	}
	a, err := s.repo.AccountByID(ctx, id)
	if err != nil {
		return nil, apierror.FromDataAccessFailure(err)
	}
	return fromStored(a), nil
}

// Me loads the account registered under the authenticated viewer's email.
func (s *Service) Me(ctx context.Context) (*Account, error) {
	a, err := s.viewerAccount(ctx)
	if err != nil {
		return nil, err
	}
	return fromStored(a), nil
}

// Delete removes the account with id. Callers can only delete their own account;
// anyone else's is reported as not found.
func (s *Service) Delete(ctx context.Context, id string) error {
	id, err := parseID(id)
	if err != nil {
		return err
	}
	own, err := s.viewerAccount(ctx)
	if err != nil {
		return err
	}
	if own.ID != id {
		return apierror.NotFound()
	}
	if err := s.repo.DeleteAccount(ctx, id); err != nil {
		return apierror.FromDataAccessFailure(err)
	}
	return nil
}

func (s *Service) viewerAccount(ctx context.Context) (*store.Account, error) {
	v, err := viewer.FromContext(ctx)
	if err != nil {
		return nil, apierror.Wrap(apierror.KindUnauthorized, err)
	}
	if v.Email == "" {
		return nil, apierror.BadRequest("token carries no email claim")
	}
	a, err := s.repo.AccountByEmail(ctx, v.Email)
	if err != nil {
		return nil, apierror.FromDataAccessFailure(err)
	}
	return a, nil
}

func validateEmail(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", apierror.BadRequest("email is required")
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw {
		return "", apierror.BadRequest("email is invalid")
	}
	return strings.ToLower(raw), nil
}

func validatePassword(password string) error {
	switch n := len(password); {
	case n < minPasswordLength:
		return apierror.BadRequest("password must be at least 8 characters")
	case n > maxPasswordLength:
		return apierror.BadRequest("password must be at most 256 characters")
	}
	return nil
}

func parseID(raw string) (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", apierror.BadRequest("account id must be a UUID")
	}
	return id.String(), nil
}
