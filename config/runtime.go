package config

import "sync"

// Settings holds the payment options that can change while the process runs.
// It is the single source of truth for the direct payment toggle.
type Settings struct {
	mu               sync.RWMutex
	directPayment    bool
	defaultGatewayID int
}

// SettingsSnapshot is a point-in-time copy of Settings.
type SettingsSnapshot struct {
	DirectPayment    bool `json:"direct_payment"`
	DefaultGatewayID int  `json:"default_gateway_id"`
}

// SettingsUpdate carries the fields to change. Nil fields are left alone.
type SettingsUpdate struct {
	DirectPayment    *bool `json:"direct_payment,omitempty"`
	DefaultGatewayID *int  `json:"default_gateway_id,omitempty" validate:"omitempty,gt=0"`
}

func NewSettings(cfg *Config) *Settings {
	s := &Settings{directPayment: true, defaultGatewayID: 1}
	if cfg != nil {
		s.directPayment = cfg.DirectPayment
		if cfg.DefaultGatewayID > 0 {
			s.defaultGatewayID = cfg.DefaultGatewayID
		}
	}
	return s
}

func (s *Settings) DirectPayment() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.directPayment
}

func (s *Settings) DefaultGatewayID() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaultGatewayID
}

func (s *Settings) Snapshot() SettingsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SettingsSnapshot{DirectPayment: s.directPayment, DefaultGatewayID: s.defaultGatewayID}
}

// Update applies u and returns the resulting snapshot.
func (s *Settings) Update(u SettingsUpdate) SettingsSnapshot {
	s.mu.Lock()
	if u.DirectPayment != nil {
		s.directPayment = *u.DirectPayment
	}
	if u.DefaultGatewayID != nil && *u.DefaultGatewayID > 0 {
		s.defaultGatewayID = *u.DefaultGatewayID
	}
	s.mu.Unlock()
	return s.Snapshot()
}
