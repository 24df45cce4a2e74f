package payment

import (
	"context"
	"strings"
	"sync"
	"time"

	"student-portal/errors"
	"student-portal/logger"
	"student-portal/metrics"
	"student-portal/models"

	"github.com/google/uuid"
)

type SessionState string

const (
	StateLoading             SessionState = "LOADING"
	StatePendingVerification SessionState = "PENDING_VERIFICATION"
	StateSuccess             SessionState = "SUCCESS"
	StateFail                SessionState = "FAIL"
	StateCancel              SessionState = "CANCEL"
)

func (s SessionState) Terminal() bool {
	return s == StateSuccess || s == StateFail || s == StateCancel
}

const (
	DefaultVerifyDelay = 2500 * time.Millisecond
	DefaultMaxPolls    = 3

	// finished sessions stay queryable for this long
	sessionRetention = 10 * time.Minute
)

// ClassifyURL maps a gateway page URL onto an outcome. Success markers are
// checked first, then cancel, then failure. URLs with no marker are ordinary
// gateway pages. A success marker anywhere in the URL only leads to a status
// check, so a misread failure page costs one poll and never a false success.
func ClassifyURL(raw string) (Outcome, bool) {
	u := strings.ToLower(raw)
	switch {
	case strings.Contains(u, "payment-success"), strings.Contains(u, "success"):
		return OutcomeSuccess, true
	case strings.Contains(u, "cancel"):
		return OutcomeCancel, true
	case strings.Contains(u, "payment-failed"), strings.Contains(u, "fail"):
		return OutcomeFail, true
	}
	return "", false
}

// StatusChecker is satisfied by *Verifier.
type StatusChecker interface {
	Verify(ctx context.Context, applicationID string) (*models.VerificationResult, error)
}

type DriverConfig struct {
	VerifyDelay time.Duration
	MaxPolls    int
}

// Driver owns the gateway sessions of the logged-in student.
type Driver struct {
	verifier StatusChecker
	delay    time.Duration
	maxPolls int
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*GatewaySession
	onFinish []func(SessionSnapshot)
}

func NewDriver(verifier StatusChecker, cfg DriverConfig) *Driver {
	if cfg.VerifyDelay <= 0 {
		cfg.VerifyDelay = DefaultVerifyDelay
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = DefaultMaxPolls
	}
	return &Driver{
		verifier: verifier,
		delay:    cfg.VerifyDelay,
		maxPolls: cfg.MaxPolls,
		now:      time.Now,
		sessions: make(map[string]*GatewaySession),
	}
}

// OnFinish registers fn to run once for every session reaching a terminal state.
func (d *Driver) OnFinish(fn func(SessionSnapshot)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onFinish = append(d.onFinish, fn)
}

// Start opens a gateway session for redirectURL. Any unfinished session for
// the same application is cancelled first. ctx only contributes values; the
// session outlives the caller's cancellation.
func (d *Driver) Start(ctx context.Context, redirectURL, applicationID string) *GatewaySession {
	d.prune()

	if prev, ok := d.ForApplication(applicationID); ok {
		prev.Cancel()
	}

	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	now := d.now().UTC()
	s := &GatewaySession{
		ID:            uuid.NewString(),
		ApplicationID: applicationID,
		RedirectURL:   redirectURL,
		driver:        d,
		ctx:           sctx,
		cancel:        cancel,
		state:         StateLoading,
		startedAt:     now,
		updatedAt:     now,
		done:          make(chan struct{}),
	}

	d.mu.Lock()
	d.sessions[s.ID] = s
	d.mu.Unlock()

	logger.Info("Gateway session %s started for application %s", s.ID, applicationID)
	return s
}

func (d *Driver) Get(id string) (*GatewaySession, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.sessions[id]
	return s, ok
}

// ForApplication returns the newest unfinished session for applicationID.
func (d *Driver) ForApplication(applicationID string) (*GatewaySession, bool) {
	d.mu.Lock()
	candidates := make([]*GatewaySession, 0, len(d.sessions))
	for _, s := range d.sessions {
		if s.ApplicationID == applicationID {
			candidates = append(candidates, s)
		}
	}
	d.mu.Unlock()

	var best *GatewaySession
	for _, s := range candidates {
		snap := s.Snapshot()
		if snap.State.Terminal() {
			continue
		}
		if best == nil || snap.StartedAt.After(best.startedAt) {
			best = s
		}
	}
	return best, best != nil
}

func (d *Driver) prune() {
	cutoff := d.now().Add(-sessionRetention)
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, s := range d.sessions {
		snap := s.Snapshot()
		if snap.State.Terminal() && snap.UpdatedAt.Before(cutoff) {
			delete(d.sessions, id)
		}
	}
}

func (d *Driver) fire(snap *SessionSnapshot) {
	if snap == nil {
		return
	}
	metrics.GatewaySessionOutcomes.WithLabelValues(string(snap.State)).Inc()
	d.mu.Lock()
	hooks := append([]func(SessionSnapshot){}, d.onFinish...)
	d.mu.Unlock()
	for _, fn := range hooks {
		fn(*snap)
	}
}

// GatewaySession is one embedded browsing session on the gateway's pages.
type GatewaySession struct {
	ID            string
	ApplicationID string
	RedirectURL   string

	driver *Driver
	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	state        SessionState
	lastURL      string
	polls        int
	verification *models.VerificationResult
	lastErr      error
	timer        *time.Timer
	startedAt    time.Time
	updatedAt    time.Time
	done         chan struct{}
}

type SessionSnapshot struct {
	ID            string                     `json:"id"`
	ApplicationID string                     `json:"application_id"`
	RedirectURL   string                     `json:"redirect_url"`
	State         SessionState               `json:"state"`
	LastURL       string                     `json:"last_url,omitempty"`
	Polls         int                        `json:"polls"`
	Verification  *models.VerificationResult `json:"verification,omitempty"`
	Error         string                     `json:"error,omitempty"`
	StartedAt     time.Time                  `json:"started_at"`
	UpdatedAt     time.Time                  `json:"updated_at"`
}

// Navigate feeds a URL change from the embedded browser. Success pages move
// the session to PENDING_VERIFICATION and schedule a status check; cancel and
// failure pages end it without one. Events after the first marker are ignored.
func (s *GatewaySession) Navigate(rawURL string) SessionState {
	outcome, ok := ClassifyURL(rawURL)

	s.mu.Lock()
	if s.state != StateLoading {
		state := s.state
		s.mu.Unlock()
		return state
	}
	s.lastURL = rawURL
	s.updatedAt = s.driver.now().UTC()
	if !ok {
		s.mu.Unlock()
		return StateLoading
	}
	fired := s.applyLocked(outcome)
	state := s.state
	s.mu.Unlock()

	s.driver.fire(fired)
	return state
}

// Resume applies an outcome delivered through a deep link.
func (s *GatewaySession) Resume(outcome Outcome) SessionState {
	s.mu.Lock()
	if s.state != StateLoading {
		state := s.state
		s.mu.Unlock()
		return state
	}
	s.updatedAt = s.driver.now().UTC()
	fired := s.applyLocked(outcome)
	state := s.state
	s.mu.Unlock()

	s.driver.fire(fired)
	return state
}

func (s *GatewaySession) applyLocked(outcome Outcome) *SessionSnapshot {
	switch outcome {
	case OutcomeSuccess:
		s.state = StatePendingVerification
		s.scheduleLocked()
		return nil
	case OutcomeCancel:
		return s.finishLocked(StateCancel)
	default:
		return s.finishLocked(StateFail)
	}
}

func (s *GatewaySession) scheduleLocked() {
	s.timer = time.AfterFunc(s.driver.delay, func() {
		s.check(s.ctx)
	})
}

// check runs one verification while the session awaits one.
func (s *GatewaySession) check(ctx context.Context) {
	s.mu.Lock()
	if s.state != StatePendingVerification {
		s.mu.Unlock()
		return
	}
	s.polls++
	s.mu.Unlock()

	res, err := s.driver.verifier.Verify(ctx, s.ApplicationID)

	s.mu.Lock()
	if s.state != StatePendingVerification {
		s.mu.Unlock()
		return
	}
	s.updatedAt = s.driver.now().UTC()

	var fired *SessionSnapshot
	switch {
	case err != nil && errors.IsKind(err, errors.SessionExpired):
		s.lastErr = err
		fired = s.finishLocked(StateCancel)
	case err != nil:
		s.lastErr = err
		logger.Warn("verification for session %s failed: %v", s.ID, err)
	default:
		s.lastErr = nil
		s.verification = res
		switch res.Status {
		case models.StatusValid:
			fired = s.finishLocked(StateSuccess)
		case models.StatusInvalid:
			fired = s.finishLocked(StateFail)
		}
	}

	if s.state == StatePendingVerification && s.polls < s.driver.maxPolls {
		s.scheduleLocked()
	}
	s.mu.Unlock()

	s.driver.fire(fired)
}

// Recheck runs a verification now, for a manual "Check Payment Status".
// It only acts while the session is PENDING_VERIFICATION.
func (s *GatewaySession) Recheck(ctx context.Context) SessionSnapshot {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()

	s.check(ctx)
	return s.Snapshot()
}

// Cancel handles the back button or an explicit close. It reports whether
// the session was still open.
func (s *GatewaySession) Cancel() bool {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return false
	}
	s.updatedAt = s.driver.now().UTC()
	fired := s.finishLocked(StateCancel)
	s.mu.Unlock()

	s.driver.fire(fired)
	return true
}

func (s *GatewaySession) finishLocked(state SessionState) *SessionSnapshot {
	s.state = state
	if s.timer != nil {
		s.timer.Stop()
	}
	s.cancel()
	close(s.done)
	logger.Info("Gateway session %s for application %s finished: %s", s.ID, s.ApplicationID, state)
	snap := s.snapshotLocked()
	return &snap
}

// Done is closed when the session reaches a terminal state.
func (s *GatewaySession) Done() <-chan struct{} {
	return s.done
}

// Outcome returns the terminal state, or "" while the session is open.
func (s *GatewaySession) Outcome() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Terminal() {
		return ""
	}
	return s.state
}

func (s *GatewaySession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *GatewaySession) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *GatewaySession) snapshotLocked() SessionSnapshot {
	snap := SessionSnapshot{
		ID:            s.ID,
		ApplicationID: s.ApplicationID,
		RedirectURL:   s.RedirectURL,
		State:         s.state,
		LastURL:       s.lastURL,
		Polls:         s.polls,
		Verification:  s.verification,
		StartedAt:     s.startedAt,
		UpdatedAt:     s.updatedAt,
	}
	if s.lastErr != nil {
		snap.Error = errors.MessageOf(s.lastErr)
	}
	return snap
}
