package session

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"student-portal/errors"

	jwt "github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type guardFixture struct {
	store    *MemoryStore
	nav      *Navigation
	notified atomic.Int32
	guard    *Guard
	client   *http.Client
}

func newGuardFixture(t *testing.T, token string) *guardFixture {
	t.Helper()
	f := &guardFixture{store: NewMemoryStore(), nav: NewNavigation(RouteHome)}
	if token != "" {
		require.NoError(t, f.store.Set(context.Background(), KeyToken, token))
	}
	f.guard = NewGuard(f.store, http.DefaultTransport,
		WithNavigator(f.nav),
		WithNotifier(NotifierFunc(func(context.Context, string) { f.notified.Add(1) })),
	)
	f.client = &http.Client{Transport: f.guard}
	return f
}

func TestGuard_AttachesBearerToken(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":"ok"}`))
	}))
	defer srv.Close()

	f := newGuardFixture(t, "abc123")
	resp, err := f.client.Get(srv.URL)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, "Bearer abc123", got)
	assert.Equal(t, `{"data":"ok"}`, string(body))
	assert.False(t, f.guard.Expired())
}

func TestGuard_KeepsExplicitAuthorization(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	f := newGuardFixture(t, "stored")
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req.Header.Set("Authorization", "Bearer explicit")
	resp, err := f.client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "Bearer explicit", got)
}

func TestGuard_AnonymousRequest(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	f := newGuardFixture(t, "")
	resp, err := f.client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, got)
}

func TestGuard_ConcurrentUnauthorizedExpiresOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	f := newGuardFixture(t, "abc123")

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.client.Get(srv.URL)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.Error(t, err)
		assert.True(t, errors.IsKind(err, errors.SessionExpired))
	}
	assert.EqualValues(t, 1, f.guard.Expiries())
	assert.EqualValues(t, 1, f.notified.Load())
	assert.Equal(t, 1, f.nav.Resets())
	assert.Equal(t, RouteLogin, f.nav.Current())
	assert.Equal(t, 1, f.nav.Depth())

	token, _ := Token(context.Background(), f.store)
	assert.Empty(t, token)
}

func TestGuard_InvalidTokenMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message":"Invalid Token supplied"}`))
	}))
	defer srv.Close()

	f := newGuardFixture(t, "abc123")
	_, err := f.client.Get(srv.URL)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.SessionExpired))
	assert.True(t, f.guard.Expired())
	assert.EqualValues(t, 1, f.notified.Load())
}

func TestGuard_OtherMessagesPassThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"amount is required"}`))
	}))
	defer srv.Close()

	f := newGuardFixture(t, "abc123")
	resp, err := f.client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "amount is required")
	assert.False(t, f.guard.Expired())
}

func TestGuard_ExpiredJWTNeverLeavesProcess(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "2017417693",
		"exp": time.Now().Add(-time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	f := newGuardFixture(t, token)
	_, err = f.client.Get(srv.URL)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.SessionExpired))
	assert.EqualValues(t, 0, hits.Load())
	assert.EqualValues(t, 1, f.guard.Expiries())
}

func TestGuard_JWTExpiryUsesClock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	issued := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": issued.Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	store := NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), KeyToken, token))
	now := issued
	guard := NewGuard(store, http.DefaultTransport, WithClock(func() time.Time { return now }))
	client := &http.Client{Transport: guard}

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	now = issued.Add(2 * time.Hour)
	_, err = client.Get(srv.URL)
	assert.True(t, errors.IsKind(err, errors.SessionExpired))
}

func TestGuard_ResetRearmsLatch(t *testing.T) {
	f := newGuardFixture(t, "abc123")
	ctx := context.Background()

	assert.True(t, f.guard.Expire(ctx, ReasonUnauthorized))
	assert.False(t, f.guard.Expire(ctx, ReasonUnauthorized))

	f.guard.Reset()
	assert.False(t, f.guard.Expired())
	assert.True(t, f.guard.Expire(ctx, ReasonInvalidToken))
	assert.EqualValues(t, 2, f.guard.Expiries())
	assert.Equal(t, 2, f.nav.Resets())
}

func TestGuard_WithoutGuardSkipsToken(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	f := newGuardFixture(t, "abc123")
	req, _ := http.NewRequestWithContext(WithoutGuard(context.Background()), http.MethodPost, srv.URL, nil)
	resp, err := f.client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Empty(t, got)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.False(t, f.guard.Expired())
}
