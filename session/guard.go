package session

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"student-portal/errors"
	"student-portal/logger"

	jwt "github.com/dgrijalva/jwt-go"
)

// Notifier is told once per expiry so the user can be informed.
type Notifier interface {
	SessionExpired(ctx context.Context, reason string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, reason string)

func (f NotifierFunc) SessionExpired(ctx context.Context, reason string) { f(ctx, reason) }

const (
	ReasonUnauthorized = "unauthorized"
	ReasonInvalidToken = "invalid token"
	ReasonTokenExpired = "token expired"
)

// maxInspectBody bounds how much of a response body is read when looking for
// an "invalid token" message.
const maxInspectBody = 1 << 20

type skipGuardKey struct{}

// WithoutGuard marks ctx so the Guard passes the request through untouched.
// Used for the login call itself.
func WithoutGuard(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipGuardKey{}, true)
}

func skipped(ctx context.Context) bool {
	v, _ := ctx.Value(skipGuardKey{}).(bool)
	return v
}

// Guard is an http.RoundTripper that attaches the stored bearer token and ends
// the session when the backend rejects it. Expiry handling runs at most once
// until Reset is called.
type Guard struct {
	next     http.RoundTripper
	store    Store
	notifier Notifier
	nav      Navigator
	now      func() time.Time

	expiring atomic.Bool
	expiries atomic.Int64
}

type GuardOption func(*Guard)

func WithNotifier(n Notifier) GuardOption {
	return func(g *Guard) { g.notifier = n }
}

func WithNavigator(nav Navigator) GuardOption {
	return func(g *Guard) { g.nav = nav }
}

func WithClock(now func() time.Time) GuardOption {
	return func(g *Guard) { g.now = now }
}

func NewGuard(store Store, next http.RoundTripper, opts ...GuardOption) *Guard {
	if next == nil {
		next = http.DefaultTransport
	}
	g := &Guard{next: next, store: store, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Guard) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if skipped(ctx) {
		return g.next.RoundTrip(req)
	}

	req = req.Clone(ctx)
	if req.Header.Get("Authorization") == "" {
		token, err := Token(ctx, g.store)
		if err != nil {
			logger.Warn("session guard: reading token: %v", err)
		}
		if token != "" {
			if g.tokenExpired(token) {
				g.Expire(ctx, ReasonTokenExpired)
				return nil, errors.NewSessionExpiredError(ReasonTokenExpired)
			}
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := g.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		g.Expire(ctx, ReasonUnauthorized)
		return nil, errors.NewSessionExpiredError(ReasonUnauthorized)
	}

	invalid, err := hasInvalidTokenMessage(resp)
	if err != nil {
		return nil, err
	}
	if invalid {
		drain(resp)
		g.Expire(ctx, ReasonInvalidToken)
		return nil, errors.NewSessionExpiredError(ReasonInvalidToken)
	}

	return resp, nil
}

// Expire clears the session, notifies the user and resets navigation to the
// login screen. It reports whether this call performed the expiry; calls made
// while the latch is set are no-ops.
func (g *Guard) Expire(ctx context.Context, reason string) bool {
	if !g.expiring.CompareAndSwap(false, true) {
		return false
	}
	g.expiries.Add(1)
	logger.Warn("session expired: %s", reason)

	if err := g.store.Clear(ctx); err != nil {
		logger.Error("session guard: clearing store: %v", err)
	}
	if g.notifier != nil {
		g.notifier.SessionExpired(ctx, reason)
	}
	if g.nav != nil {
		g.nav.ResetTo(RouteLogin)
	}
	return true
}

// Reset re-arms the latch after a successful login.
func (g *Guard) Reset() {
	g.expiring.Store(false)
}

// Expired reports whether the session has been expired since the last Reset.
func (g *Guard) Expired() bool {
	return g.expiring.Load()
}

// Expiries counts expiry sequences performed over the guard's lifetime.
func (g *Guard) Expiries() int64 {
	return g.expiries.Load()
}

func (g *Guard) tokenExpired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		// opaque token
		return false
	}
	return !claims.VerifyExpiresAt(g.now().Unix(), false)
}

func hasInvalidTokenMessage(resp *http.Response) (bool, error) {
	if resp.Body == nil || resp.Body == http.NoBody {
		return false, nil
	}
	ct := resp.Header.Get("Content-Type")
	if ct != "" && !strings.Contains(ct, "json") {
		return false, nil
	}

	orig := resp.Body
	body, err := io.ReadAll(io.LimitReader(orig, maxInspectBody))
	if err != nil {
		orig.Close()
		return false, err
	}
	resp.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(body), orig), orig}

	var payload struct {
		Message interface{} `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return false, nil
	}
	msg, ok := payload.Message.(string)
	return ok && strings.Contains(strings.ToLower(msg), ReasonInvalidToken), nil
}

func drain(resp *http.Response) {
	if resp.Body != nil {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
}
