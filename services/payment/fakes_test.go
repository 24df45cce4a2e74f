package payment

import (
	"context"
	"sync"
	"sync/atomic"

	"student-portal/models"
	"student-portal/session"
)

type fakeHeads struct {
	calls atomic.Int32
	heads []models.PaymentHead
	err   error
}

func (f *fakeHeads) PaymentHeads(context.Context) ([]models.PaymentHead, error) {
	f.calls.Add(1)
	return f.heads, f.err
}

type fakeProvider struct {
	mu       sync.Mutex
	requests []models.PaymentInitRequest
	initBody map[string]interface{}
	initErr  error

	statusCalls atomic.Int32
	statusBody  map[string]interface{}
	statusErr   error
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Initiate(_ context.Context, req models.PaymentInitRequest) (map[string]interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.initBody, f.initErr
}

func (f *fakeProvider) Status(context.Context, string) (map[string]interface{}, error) {
	f.statusCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusBody, f.statusErr
}

func (f *fakeProvider) setStatus(body map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusBody = body
}

func (f *fakeProvider) lastRequest() models.PaymentInitRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

type fakeGateways struct {
	gateways []models.Gateway
	err      error
}

func (f *fakeGateways) Gateways(context.Context) ([]models.Gateway, error) {
	return f.gateways, f.err
}

type memLedger struct {
	mu       sync.Mutex
	attempts []models.PaymentAttempt
}

func (l *memLedger) Create(_ context.Context, a *models.PaymentAttempt) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts = append(l.attempts, *a)
	return nil
}

type recordingObserver struct {
	mu      sync.Mutex
	results []models.VerificationResult
}

func (o *recordingObserver) PaymentVerified(_ context.Context, res models.VerificationResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results = append(o.results, res)
}

func loggedInStore() session.Store {
	s := session.NewMemoryStore()
	s.Set(context.Background(), session.KeyToken, "tok")
	return s
}
