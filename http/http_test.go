package http

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"student-portal/config"
	"student-portal/http/handlers"
	"student-portal/models"
	"student-portal/portal"
	"student-portal/services/payment"
	"student-portal/session"
	"student-portal/utils"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testToken     = "tok-1"
	webhookSecret = "whsec"
)

// backend imitates the university portal API.
type backend struct {
	mu            sync.Mutex
	status        string
	rejectStatus  bool
	initiateCalls int
	lastInitiate  models.PaymentInitRequest
}

func (b *backend) setStatus(s string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = s
}

func (b *backend) router() http.Handler {
	writeJSON := func(w http.ResponseWriter, code int, v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(v)
	}
	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer "+testToken {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
				return
			}
			next(w, r)
		}
	}

	r := chi.NewRouter()
	r.Post("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"token": testToken,
			"user":  map[string]string{"reg": "2017417693", "name": "Rahim Uddin"},
		})
	})
	r.Post("/auth/logout", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "bye"})
	}))
	r.Get("/payment-heads", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"data": []map[string]string{
			{"id": "5", "name": "Certificate Fee", "category": "CERTIFICATE", "unit_price": "500"},
		}})
	}))
	r.Get("/applications/{id}", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"data": map[string]interface{}{
			"id":     chi.URLParam(r, "id"),
			"amount": "700",
			"payment_details": []map[string]interface{}{
				{"payment_head_id": "11", "quantity": 2},
				{"payment_head_id": "12", "quantity": 1},
			},
		}})
	}))
	r.Get("/payment/gateways", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"gateways": []map[string]interface{}{
			{"id": 1, "name": "SSLCommerz", "active": true},
		}})
	}))
	r.Post("/payment/initiate", authed(func(w http.ResponseWriter, r *http.Request) {
		var req models.PaymentInitRequest
		json.NewDecoder(r.Body).Decode(&req)
		b.mu.Lock()
		b.initiateCalls++
		b.lastInitiate = req
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"paymentUrl": "https://gw.example.com/pay/abc"})
	}))
	r.Get("/payment/status/{id}", authed(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		reject, status := b.rejectStatus, b.status
		b.mu.Unlock()
		if reject {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"data": map[string]string{
			"status":  status,
			"tran_id": "TRX-" + chi.URLParam(r, "id"),
		}})
	}))
	return r
}

type fixture struct {
	t       *testing.T
	backend *backend
	router  http.Handler
	store   *session.MemoryStore
	nav     *session.Navigation
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	be := &backend{status: "PENDING"}
	srv := httptest.NewServer(be.router())
	t.Cleanup(srv.Close)

	store := session.NewMemoryStore()
	nav := session.NewNavigation(session.RouteLogin)
	guard := session.NewGuard(store, nil,
		session.WithNavigator(nav),
		session.WithNotifier(session.NotifierFunc(func(_ context.Context, reason string) {
			nav.SetNotice("Your session has expired. Please log in again.")
		})),
	)
	client := portal.New(srv.URL, 5*time.Second, guard)

	provider := payment.NewPortalProvider(client)
	verifier := payment.NewVerifier(store, provider)
	driver := payment.NewDriver(verifier, payment.DriverConfig{VerifyDelay: 10 * time.Millisecond, MaxPolls: 2})
	initializer := payment.NewInitializer(payment.Deps{
		Store:    store,
		Resolver: payment.NewResolver(client),
		Provider: provider,
		Gateways: client,
		Settings: config.NewSettings(&config.Config{DirectPayment: true, DefaultGatewayID: 1}),
		Money:    payment.NewMoneyFormatter("Tk "),
		Scheme:   "duportal",
	})

	h := handlers.New(handlers.Deps{
		Auth:          client,
		Store:         store,
		Guard:         guard,
		Nav:           nav,
		Heads:         client,
		Applications:  client,
		Initializer:   initializer,
		Verifier:      verifier,
		Driver:        driver,
		Money:         payment.NewMoneyFormatter("Tk "),
		WebhookSecret: webhookSecret,
	})
	return &fixture{t: t, backend: be, router: NewRouter(h, nil), store: store, nav: nav}
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
}

func (f *fixture) do(method, path string, body interface{}, headers ...string) (*httptest.ResponseRecorder, envelope) {
	f.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case []byte:
			buf.Write(b)
		default:
			require.NoError(f.t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", utils.ContentTypeJSON)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var env envelope
	if rec.Header().Get("Content-Type") == utils.ContentTypeJSON {
		require.NoError(f.t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func (f *fixture) login() {
	f.t.Helper()
	rec, _ := f.do(http.MethodPost, "/auth/login", map[string]string{"username": "2017417693", "password": "secret"})
	require.Equal(f.t, http.StatusOK, rec.Code)
}

func (f *fixture) initiate() payment.SessionSnapshot {
	f.t.Helper()
	rec, env := f.do(http.MethodPost, "/payments/initiate", map[string]interface{}{
		"application_id": "123",
		"type":           "CERTIFICATE",
		"amount":         "500",
	})
	require.Equal(f.t, http.StatusCreated, rec.Code, rec.Body.String())
	var data struct {
		Session payment.SessionSnapshot `json:"session"`
	}
	require.NoError(f.t, json.Unmarshal(env.Data, &data))
	return data.Session
}

func TestAuthFlow(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(http.MethodGet, "/auth/profile", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHENTICATED", env.Code)

	f.login()
	assert.Equal(t, session.RouteHome, f.nav.Current())

	rec, env = f.do(http.MethodGet, "/auth/profile", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var data struct {
		Profile struct {
			Reg  string `json:"reg"`
			Name string `json:"name"`
		} `json:"profile"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "2017417693", data.Profile.Reg)
	assert.Equal(t, "Rahim Uddin", data.Profile.Name)

	rec, _ = f.do(http.MethodPost, "/auth/logout", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, session.RouteLogin, f.nav.Current())

	rec, _ = f.do(http.MethodGet, "/auth/profile", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogin_Validation(t *testing.T) {
	f := newFixture(t)
	rec, env := f.do(http.MethodPost, "/auth/login", map[string]string{"username": "2017417693"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Error, "Password")
}

func TestInitiate_NavigateToSuccess(t *testing.T) {
	f := newFixture(t)
	f.login()
	f.backend.setStatus("VALID")

	snap := f.initiate()
	assert.Equal(t, payment.StateLoading, snap.State)
	assert.Equal(t, "https://gw.example.com/pay/abc", snap.RedirectURL)

	rec, _ := f.do(http.MethodPost, "/payments/sessions/"+snap.ID+"/navigate",
		map[string]string{"url": "https://gw.example.com/payment-success?tran=1"})
	require.Equal(t, http.StatusOK, rec.Code)

	require.Eventually(t, func() bool {
		_, env := f.do(http.MethodGet, "/payments/sessions/"+snap.ID, nil)
		var s payment.SessionSnapshot
		if json.Unmarshal(env.Data, &s) != nil {
			return false
		}
		return s.State == payment.StateSuccess && s.Verification != nil && s.Verification.TransactionID == "TRX-123"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestInitiate_BillsApplicationItems(t *testing.T) {
	f := newFixture(t)
	f.login()
	f.initiate()

	f.backend.mu.Lock()
	req := f.backend.lastInitiate
	f.backend.mu.Unlock()
	assert.Equal(t, []models.PaymentLineItem{
		{HeadID: "11", Count: 2},
		{HeadID: "12", Count: 1},
	}, req.Heads)
	assert.Equal(t, "500", req.Amount.String())
}

func TestInitiate_CancelSession(t *testing.T) {
	f := newFixture(t)
	f.login()
	snap := f.initiate()

	rec, env := f.do(http.MethodPost, "/payments/sessions/"+snap.ID+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Payment cancelled", env.Message)

	_, env = f.do(http.MethodPost, "/payments/sessions/"+snap.ID+"/cancel", nil)
	assert.Equal(t, "Payment session already finished", env.Message)

	rec, _ = f.do(http.MethodPost, "/payments/sessions/missing/cancel", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInitiate_DirectPaymentDisabled(t *testing.T) {
	f := newFixture(t)
	f.login()

	rec, _ := f.do(http.MethodPut, "/settings", map[string]interface{}{"direct_payment": false})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := f.do(http.MethodPost, "/payments/initiate", map[string]interface{}{
		"application_id": "123",
		"type":           "CERTIFICATE",
		"amount":         "500",
	})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "DIRECT_PAYMENT_DISABLED", env.Code)
	assert.Contains(t, string(env.Data), "manual_instructions")
	assert.Zero(t, f.backend.initiateCalls)
}

func TestInitiate_Validation(t *testing.T) {
	f := newFixture(t)
	f.login()
	rec, _ := f.do(http.MethodPost, "/payments/initiate", map[string]interface{}{"type": "CERTIFICATE"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPaymentStatus_SessionExpired(t *testing.T) {
	f := newFixture(t)
	f.login()
	f.backend.mu.Lock()
	f.backend.rejectStatus = true
	f.backend.mu.Unlock()

	rec, env := f.do(http.MethodGet, "/payments/123/status", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "SESSION_EXPIRED", env.Code)
	assert.Equal(t, session.RouteLogin, f.nav.Current())

	token, _ := session.Token(context.Background(), f.store)
	assert.Empty(t, token)

	// the notice is reported once
	_, env = f.do(http.MethodGet, "/auth/profile", nil)
	assert.Equal(t, "SESSION_EXPIRED", env.Code)
	_, env = f.do(http.MethodGet, "/auth/profile", nil)
	assert.Equal(t, "UNAUTHENTICATED", env.Code)
}

func TestCallback_WithoutSessionVerifies(t *testing.T) {
	f := newFixture(t)
	f.login()
	f.backend.setStatus("VALID")

	rec, env := f.do(http.MethodGet, "/payment/success?applicationId=123&type=CERTIFICATE", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var data struct {
		Verification struct {
			Status string `json:"status"`
		} `json:"verification"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "VALID", data.Verification.Status)

	rec, _ = f.do(http.MethodGet, "/payment/refund?applicationId=123", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRazorpayWebhook(t *testing.T) {
	f := newFixture(t)
	f.login()
	f.backend.setStatus("INVALID")

	body := []byte(`{"event":"payment_link.paid","payload":{"payment_link":{"entity":{"notes":{"application_id":"123"}}}}}`)
	rec, _ := f.do(http.MethodPost, "/webhooks/razorpay", body, utils.HeaderRazorpaySignature, "bad")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write(body)
	rec, env := f.do(http.MethodPost, "/webhooks/razorpay", body, utils.HeaderRazorpaySignature, hex.EncodeToString(mac.Sum(nil)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"INVALID"`)
}

func TestInstructionsPDF(t *testing.T) {
	f := newFixture(t)
	rec, _ := f.do(http.MethodGet, "/payments/123/instructions.pdf?type=CERTIFICATE&amount=500", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, utils.ContentTypePDF, rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))

	rec, _ = f.do(http.MethodGet, "/payments/123/instructions.pdf", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndSettings(t *testing.T) {
	f := newFixture(t)
	rec, _ := f.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env := f.do(http.MethodGet, "/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var snap config.SettingsSnapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.True(t, snap.DirectPayment)
	assert.Equal(t, 1, snap.DefaultGatewayID)

	rec, _ = f.do(http.MethodPut, "/settings", map[string]interface{}{"default_gateway_id": -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
