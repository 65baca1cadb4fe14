// Package settings holds the per-session backend configuration.
package settings

import (
	"net/url"
	"strings"
	"sync"

	"github.com/liliang-cn/pdfqa/internal/domain"
)

// Temperature bounds
const (
	MinTemperature = 0.0
	MaxTemperature = 1.0
)

// Store holds the current BackendConfiguration. Updates are atomic: a
// rejected Set leaves the previous value in place.
type Store struct {
	mu  sync.RWMutex
	cfg domain.BackendConfiguration
}

// NewStore creates a store seeded with initial. The initial value is
// validated the same way Set validates updates.
func NewStore(initial domain.BackendConfiguration) (*Store, error) {
	initial.EndpointURL = normalizeEndpoint(initial.EndpointURL)
	if err := Validate(initial); err != nil {
		return nil, err
	}
	return &Store{cfg: initial}, nil
}

// Get returns the current configuration.
func (s *Store) Get() domain.BackendConfiguration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Set applies update and returns the resulting configuration.
func (s *Store) Set(update domain.ConfigUpdate) (domain.BackendConfiguration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cfg
	if update.EndpointURL != nil {
		next.EndpointURL = normalizeEndpoint(*update.EndpointURL)
	}
	if update.RequestTemperature != nil {
		next.RequestTemperature = *update.RequestTemperature
	}
	if err := Validate(next); err != nil {
		return s.cfg, err
	}

	s.cfg = next
	return next, nil
}

// Validate checks that cfg has an absolute http(s) endpoint and a
// temperature within [MinTemperature, MaxTemperature].
func Validate(cfg domain.BackendConfiguration) error {
	if err := ValidateEndpoint(cfg.EndpointURL); err != nil {
		return err
	}
	return ValidateTemperature(cfg.RequestTemperature)
}

// ValidateEndpoint checks that raw is a syntactically valid absolute URL.
func ValidateEndpoint(raw string) error {
	if raw == "" {
		return &domain.InvalidConfigError{Field: "endpoint_url", Reason: "must not be empty"}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return &domain.InvalidConfigError{Field: "endpoint_url", Reason: err.Error()}
	}
	if !u.IsAbs() || u.Host == "" {
		return &domain.InvalidConfigError{Field: "endpoint_url", Reason: "must be an absolute URL"}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &domain.InvalidConfigError{Field: "endpoint_url", Reason: "scheme must be http or https"}
	}
	if u.RawQuery != "" || u.Fragment != "" || u.ForceQuery {
		return &domain.InvalidConfigError{Field: "endpoint_url", Reason: "must not contain a query or fragment"}
	}
	return nil
}

// ValidateTemperature checks that t is within [MinTemperature, MaxTemperature].
func ValidateTemperature(t float64) error {
	// NaN fails both comparisons
	if !(t >= MinTemperature && t <= MaxTemperature) {
		return &domain.InvalidConfigError{Field: "temperature", Reason: "must be between 0.0 and 1.0"}
	}
	return nil
}

func normalizeEndpoint(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}
