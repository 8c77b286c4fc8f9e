package accounts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/deicod/svcerr/apierror"
	"github.com/deicod/svcerr/blocking"
	"github.com/deicod/svcerr/internal/store"
	"github.com/deicod/svcerr/viewer"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

var cheapParams = &argon2id.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

type memoryRepo struct {
	mu       sync.Mutex
	accounts map[string]*store.Account
	err      error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{accounts: map[string]*store.Account{}}
}

func (r *memoryRepo) CreateAccount(_ context.Context, a *store.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return fmt.Errorf("store: create account: %w", r.err)
	}
	for _, existing := range r.accounts {
		if existing.Email == a.Email {
			return store.ErrEmailTaken
		}
	}
	a.CreatedAt = time.Now().UTC()
	cp := *a
	r.accounts[a.ID] = &cp
	return nil
}

func (r *memoryRepo) AccountByID(_ context.Context, id string) (*store.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, fmt.Errorf("store: account by id: %w", r.err)
	}
	a, ok := r.accounts[id]
	if !ok {
		return nil, fmt.Errorf("store: account by id: %w", pgx.ErrNoRows)
	}
	cp := *a
	return &cp, nil
}

func (r *memoryRepo) AccountByEmail(_ context.Context, email string) (*store.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("store: account by email: %w", pgx.ErrNoRows)
}

func (r *memoryRepo) DeleteAccount(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[id]; !ok {
		return fmt.Errorf("store: delete account: %w", pgx.ErrNoRows)
	}
	delete(r.accounts, id)
	return nil
}

type hasherFunc func(string) (string, error)

func (f hasherFunc) Hash(plain string) (string, error) { return f(plain) }

func newTestService(repo Repository) *Service {
	return NewService(repo, Argon2Hasher{Params: cheapParams}, blocking.NewPool(2))
}

func asAPIError(t *testing.T, err error) *apierror.Error {
	t.Helper()
	var apiErr *apierror.Error
	require.ErrorAs(t, err, &apiErr)
	return apiErr
}

func withViewerEmail(email string) context.Context {
	return viewer.WithViewer(context.Background(), viewer.FromClaims(map[string]any{"sub": "s", "email": email}))
}

func TestRegisterHashesPassword(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	account, err := svc.Register(context.Background(), "Alice@Example.com", "correct horse")
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", account.Email)
	require.NotEmpty(t, account.ID)

	stored := repo.accounts[account.ID]
	require.NotEqual(t, "correct horse", stored.PasswordHash)
	match, err := argon2id.ComparePasswordAndHash("correct horse", stored.PasswordHash)
	require.NoError(t, err)
	require.True(t, match)
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService(newMemoryRepo())

	cases := []struct {
		name, email, password, message string
	}{
		{"missing email", " ", "long enough", "email is required"},
		{"invalid email", "not-an-email", "long enough", "email is invalid"},
		{"display name", "Alice <alice@example.com>", "long enough", "email is invalid"},
		{"short password", "a@example.com", "short", "password must be at least 8 characters"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tc.email, tc.password)
			apiErr := asAPIError(t, err)
			require.Equal(t, apierror.KindBadRequest, apiErr.Kind())
			require.Equal(t, tc.message, apiErr.Message())
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	_, err := svc.Register(context.Background(), "a@example.com", "long enough")
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), "A@example.com", "long enough")
	status, body := apierror.Classify(asAPIError(t, err))
	require.Equal(t, 400, status)
	require.Equal(t, apierror.Response{StatusCode: 400, Name: "BadRequestError", Message: "email already taken"}, body)
	require.ErrorIs(t, err, store.ErrEmailTaken)
}

func TestRegisterCanceledWhileHashing(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	slow := hasherFunc(func(string) (string, error) {
		<-release
		return "hash", nil
	})
	svc := NewService(newMemoryRepo(), slow, blocking.NewPool(1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := svc.Register(ctx, "a@example.com", "long enough")
	apiErr := asAPIError(t, err)
	require.Equal(t, apierror.KindInternalService, apiErr.Kind())
	require.ErrorIs(t, err, blocking.ErrCanceled)
}

func TestRegisterHasherFailure(t *testing.T) {
	broken := hasherFunc(func(string) (string, error) { return "", errors.New("out of memory") })
	svc := NewService(newMemoryRepo(), broken, nil)

	_, err := svc.Register(context.Background(), "a@example.com", "long enough")
	apiErr := asAPIError(t, err)
	require.Equal(t, apierror.KindInternalService, apiErr.Kind())
	require.NotContains(t, apiErr.Message(), "out of memory")
}

func TestRegisterStoreFailure(t *testing.T) {
	repo := newMemoryRepo()
	repo.err = errors.New("connection refused")
	svc := newTestService(repo)

	_, err := svc.Register(context.Background(), "a@example.com", "long enough")
	require.Equal(t, apierror.KindInternalService, asAPIError(t, err).Kind())
}

func TestGet(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	created, err := svc.Register(context.Background(), "a@example.com", "long enough")
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, created.Email, got.Email)

	_, err = svc.Get(context.Background(), "4b0e1d5e-9c9f-4c1e-8a37-1f0d7f3c2a11")
	require.Equal(t, apierror.KindNotFound, asAPIError(t, err).Kind())

	_, err = svc.Get(context.Background(), "42")
	require.Equal(t, apierror.KindBadRequest, asAPIError(t, err).Kind())
}

func TestMe(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	created, err := svc.Register(context.Background(), "a@example.com", "long enough")
	require.NoError(t, err)

	me, err := svc.Me(withViewerEmail("A@example.com"))
	require.NoError(t, err)
	require.Equal(t, created.ID, me.ID)

	_, err = svc.Me(context.Background())
	require.Equal(t, apierror.KindUnauthorized, asAPIError(t, err).Kind())

	_, err = svc.Me(withViewerEmail("nobody@example.com"))
	require.Equal(t, apierror.KindNotFound, asAPIError(t, err).Kind())
}

func TestDelete(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	alice, err := svc.Register(context.Background(), "alice@example.com", "long enough")
	require.NoError(t, err)
	bob, err := svc.Register(context.Background(), "bob@example.com", "long enough")
	require.NoError(t, err)

	err = svc.Delete(withViewerEmail("alice@example.com"), bob.ID)
	require.Equal(t, apierror.KindNotFound, asAPIError(t, err).Kind())
	require.Contains(t, repo.accounts, bob.ID)

	require.NoError(t, svc.Delete(withViewerEmail("alice@example.com"), alice.ID))
	require.NotContains(t, repo.accounts, alice.ID)
}
