package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"student-portal/config"
	"student-portal/db"
	"student-portal/models"
	"student-portal/services/payment"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T, mutate func(*config.Config)) (*App, error) {
	t.Helper()
	cfg, err := config.Load(viper.New())
	require.NoError(t, err)
	cfg.SMTPUser, cfg.SMTPPass, cfg.EmailFrom = "", "", ""
	if mutate != nil {
		mutate(cfg)
	}

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := db.Open(db.DriverSQLite, "file:"+name+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	a, err := New(cfg, conn)
	if a != nil {
		t.Cleanup(a.Close)
	}
	return a, err
}

func TestNew_PortalProvider(t *testing.T) {
	a, err := newTestApp(t, nil)
	require.NoError(t, err)

	assert.Equal(t, "portal", a.Provider.Name())
	assert.True(t, a.Initializer.Settings().DirectPayment())
	assert.NotNil(t, a.Handler())

	h := a.Health()
	assert.Equal(t, "portal", h["provider"])
	assert.Equal(t, db.DriverSQLite, h["store"])
	assert.Equal(t, false, h["kafka"])
	assert.NotContains(t, h, "redis")
}

func TestNew_ProviderSelection(t *testing.T) {
	_, err := newTestApp(t, func(c *config.Config) { c.GatewayProvider = "paypal" })
	assert.ErrorContains(t, err, "unknown gateway provider")

	_, err = newTestApp(t, func(c *config.Config) { c.GatewayProvider = "razorpay" })
	assert.ErrorContains(t, err, "razorpay provider")

	a, err := newTestApp(t, func(c *config.Config) {
		c.GatewayProvider = "Razorpay"
		c.RazorpayKeyID = "rzp_test_key"
		c.RazorpayKeySecret = "secret"
	})
	require.NoError(t, err)
	assert.Equal(t, "razorpay", a.Provider.Name())
}

func TestSessionExpired_SetsNotice(t *testing.T) {
	a, err := newTestApp(t, nil)
	require.NoError(t, err)

	assert.True(t, a.Guard.Expire(context.Background(), "unauthorized"))
	assert.Equal(t, sessionExpiredNotice, a.Nav.TakeNotice())
	assert.Equal(t, "login", a.Nav.Current())
}

func TestSessionFinished_CancelMarksAttempt(t *testing.T) {
	a, err := newTestApp(t, nil)
	require.NoError(t, err)
	ctx := context.Background()

	now := time.Now().UTC()
	attempt := &models.PaymentAttempt{
		ID:            "att-1",
		ApplicationID: "123",
		Type:          models.Certificate,
		Amount:        decimal.NewFromInt(500),
		GatewayID:     1,
		PSID:          "DUEXCERT",
		State:         models.AttemptInitiated,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, a.Attempts.Create(ctx, attempt))

	a.sessionFinished(payment.SessionSnapshot{ApplicationID: "123", State: payment.StateSuccess})
	rows, err := a.Attempts.List(ctx, models.AttemptFilter{ApplicationID: "123"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.AttemptInitiated, rows[0].State)

	a.sessionFinished(payment.SessionSnapshot{ApplicationID: "123", State: payment.StateCancel})
	rows, err = a.Attempts.List(ctx, models.AttemptFilter{ApplicationID: "123"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.AttemptCancelled, rows[0].State)
}
