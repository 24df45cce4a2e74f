package payment

import (
	"context"
	"sync"
	"testing"
	"time"

	"student-portal/errors"
	"student-portal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDriver(provider *fakeProvider, maxPolls int) *Driver {
	return NewDriver(NewVerifier(loggedInStore(), provider), DriverConfig{
		VerifyDelay: 10 * time.Millisecond,
		MaxPolls:    maxPolls,
	})
}

func waitDone(t *testing.T, s *GatewaySession) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("session %s did not finish, state %s", s.ID, s.State())
	}
}

func TestDriver_SuccessPageWaitsForVerification(t *testing.T) {
	provider := &fakeProvider{statusBody: map[string]interface{}{"status": "PENDING"}}
	d := newTestDriver(provider, 2)

	s := d.Start(context.Background(), "https://gw.example.com/pay", "123")
	assert.Equal(t, StateLoading, s.Navigate("https://gw.example.com/checkout"))

	state := s.Navigate("https://gw.example.com/payment-success?tran=9")
	assert.Equal(t, StatePendingVerification, state)
	assert.Empty(t, s.Outcome())

	require.Eventually(t, func() bool { return provider.statusCalls.Load() == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	// PENDING never ends the session and polling stops at the limit.
	assert.EqualValues(t, 2, provider.statusCalls.Load())
	assert.Equal(t, StatePendingVerification, s.State())
	select {
	case <-s.Done():
		t.Fatal("pending session must stay open")
	default:
	}

	// later navigation is ignored
	assert.Equal(t, StatePendingVerification, s.Navigate("https://gw.example.com/cancel"))
}

func TestDriver_CancelPageSkipsVerification(t *testing.T) {
	provider := &fakeProvider{statusBody: map[string]interface{}{"status": "VALID"}}
	d := newTestDriver(provider, 3)

	var finished []SessionSnapshot
	var mu sync.Mutex
	d.OnFinish(func(snap SessionSnapshot) {
		mu.Lock()
		defer mu.Unlock()
		finished = append(finished, snap)
	})

	s := d.Start(context.Background(), "https://gw.example.com/pay", "123")
	assert.Equal(t, StateCancel, s.Navigate("https://gw.example.com/payment/cancel"))
	waitDone(t, s)

	time.Sleep(30 * time.Millisecond)
	assert.EqualValues(t, 0, provider.statusCalls.Load())
	assert.Equal(t, StateCancel, s.Outcome())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, finished, 1)
	assert.Equal(t, StateCancel, finished[0].State)
	assert.Equal(t, "123", finished[0].ApplicationID)
}

func TestDriver_FailPageEndsSession(t *testing.T) {
	provider := &fakeProvider{}
	d := newTestDriver(provider, 3)

	s := d.Start(context.Background(), "https://gw.example.com/pay", "123")
	assert.Equal(t, StateFail, s.Navigate("https://gw.example.com/payment-failed"))
	assert.Equal(t, StateFail, s.Outcome())
	assert.EqualValues(t, 0, provider.statusCalls.Load())
}

func TestDriver_VerifiedPaymentSucceeds(t *testing.T) {
	provider := &fakeProvider{statusBody: map[string]interface{}{"status": "VALID", "tran_id": "T-5"}}
	d := newTestDriver(provider, 3)

	s := d.Start(context.Background(), "https://gw.example.com/pay", "123")
	s.Navigate("https://gw.example.com/success")
	waitDone(t, s)

	snap := s.Snapshot()
	assert.Equal(t, StateSuccess, snap.State)
	require.NotNil(t, snap.Verification)
	assert.Equal(t, "T-5", snap.Verification.TransactionID)
	assert.Equal(t, 1, snap.Polls)
}

func TestDriver_InvalidPaymentFails(t *testing.T) {
	provider := &fakeProvider{statusBody: map[string]interface{}{"status": "INVALID"}}
	d := newTestDriver(provider, 3)

	s := d.Start(context.Background(), "https://gw.example.com/pay", "123")
	s.Resume(OutcomeSuccess)
	waitDone(t, s)
	assert.Equal(t, StateFail, s.Outcome())
}

func TestDriver_ExpiredSessionCancels(t *testing.T) {
	provider := &fakeProvider{statusErr: errors.NewSessionExpiredError("unauthorized")}
	d := newTestDriver(provider, 3)

	s := d.Start(context.Background(), "https://gw.example.com/pay", "123")
	s.Navigate("https://gw.example.com/success")
	waitDone(t, s)
	assert.Equal(t, StateCancel, s.Outcome())
	assert.NotEmpty(t, s.Snapshot().Error)
}

func TestDriver_RecheckAfterPollsExhausted(t *testing.T) {
	provider := &fakeProvider{statusBody: map[string]interface{}{"status": "PENDING"}}
	d := newTestDriver(provider, 1)

	s := d.Start(context.Background(), "https://gw.example.com/pay", "123")
	s.Navigate("https://gw.example.com/success")
	require.Eventually(t, func() bool { return provider.statusCalls.Load() == 1 }, time.Second, 5*time.Millisecond)

	snap := s.Recheck(context.Background())
	assert.Equal(t, StatePendingVerification, snap.State)

	provider.setStatus(map[string]interface{}{"status": "VALID"})
	snap = s.Recheck(context.Background())
	assert.Equal(t, StateSuccess, snap.State)
	assert.Equal(t, models.StatusValid, snap.Verification.Status)

	// rechecking a finished session does not call the backend again
	calls := provider.statusCalls.Load()
	s.Recheck(context.Background())
	assert.Equal(t, calls, provider.statusCalls.Load())
}

func TestDriver_CancelReleasesSession(t *testing.T) {
	provider := &fakeProvider{statusBody: map[string]interface{}{"status": "VALID"}}
	d := newTestDriver(provider, 3)

	s := d.Start(context.Background(), "https://gw.example.com/pay", "123")
	assert.True(t, s.Cancel())
	assert.False(t, s.Cancel())
	waitDone(t, s)
	assert.Equal(t, StateCancel, s.Outcome())

	// navigation after cancel has no effect
	assert.Equal(t, StateCancel, s.Navigate("https://gw.example.com/success"))
	time.Sleep(30 * time.Millisecond)
	assert.EqualValues(t, 0, provider.statusCalls.Load())

	_, open := d.ForApplication("123")
	assert.False(t, open)
}

func TestDriver_NewSessionReplacesOpenOne(t *testing.T) {
	d := newTestDriver(&fakeProvider{}, 3)

	first := d.Start(context.Background(), "https://gw.example.com/pay/1", "123")
	second := d.Start(context.Background(), "https://gw.example.com/pay/2", "123")

	assert.Equal(t, StateCancel, first.Outcome())
	assert.Equal(t, StateLoading, second.State())

	got, ok := d.ForApplication("123")
	require.True(t, ok)
	assert.Equal(t, second.ID, got.ID)

	byID, ok := d.Get(first.ID)
	require.True(t, ok)
	assert.Equal(t, StateCancel, byID.State())
}

func TestDriver_CallerCancellationDoesNotEndSession(t *testing.T) {
	provider := &fakeProvider{statusBody: map[string]interface{}{"status": "VALID"}}
	d := newTestDriver(provider, 3)

	ctx, cancel := context.WithCancel(context.Background())
	s := d.Start(ctx, "https://gw.example.com/pay", "123")
	cancel()

	s.Navigate("https://gw.example.com/success")
	waitDone(t, s)
	assert.Equal(t, StateSuccess, s.Outcome())
}
