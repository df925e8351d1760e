package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aulanet/aulanet-backend/internal/logger"
	"github.com/aulanet/aulanet-backend/internal/utils"
)

// ProviderStatus is what the providers endpoint reports per provider.
type ProviderStatus struct {
	Name      string `json:"name"`
	Active    bool   `json:"active"`
	Healthy   bool   `json:"healthy"`
	Error     string `json:"error,omitempty"`
	CheckedAt string `json:"checked_at"`
}

// AISelector holds the registered providers and the process-wide active one.
// Switching is guarded by a mutex so concurrent pipeline jobs always see a
// consistent choice.
type AISelector struct {
	mu        sync.Mutex
	providers map[string]AIProvider
	order     []string
	current   string
	log       *logger.Logger
}

func NewAISelector(baseLog *logger.Logger) *AISelector {
	return &AISelector{
		providers: map[string]AIProvider{},
		log:       baseLog.With("service", "AISelector"),
	}
}

func (s *AISelector) Register(p AIProvider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := strings.ToLower(p.Name())
	if _, exists := s.providers[name]; !exists {
		s.order = append(s.order, name)
	}
	s.providers[name] = p
	if s.current == "" {
		s.current = name
	}
	s.log.Info("Registered AI provider", "provider", name)
}

// Current returns the active provider, or ErrNoProviderAvailable when nothing
// has been registered.
func (s *AISelector) Current() (AIProvider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == "" {
		return nil, ErrNoProviderAvailable
	}
	return s.providers[s.current], nil
}

func (s *AISelector) CurrentName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Switch makes the named provider active after a health probe. An unhealthy
// target is rejected and the previous choice stays in place.
func (s *AISelector) Switch(ctx context.Context, name string) error {
	key := strings.ToLower(strings.TrimSpace(name))
	s.mu.Lock()
	p, ok := s.providers[key]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrProviderUnknown, name)
	}
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.HealthCheck(probeCtx); err != nil {
		return fmt.Errorf("provider %s is not healthy: %w", key, err)
	}
	s.mu.Lock()
	s.current = key
	s.mu.Unlock()
	s.log.Info("Switched active AI provider", "provider", key)
	return nil
}

// EnsureAvailable verifies the active provider answers a health probe,
// falling back to the first healthy registered provider otherwise.
func (s *AISelector) EnsureAvailable(ctx context.Context) (AIProvider, error) {
	s.mu.Lock()
	currentName := s.current
	names := append([]string{}, s.order...)
	s.mu.Unlock()

	if currentName != "" {
		s.mu.Lock()
		p := s.providers[currentName]
		s.mu.Unlock()
		probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := p.HealthCheck(probeCtx)
		cancel()
		if err == nil {
			return p, nil
		}
		s.log.Warn("Active AI provider failed health check", "provider", currentName, "error", err)
	}

	for _, name := range names {
		if name == currentName {
			continue
		}
		s.mu.Lock()
		p := s.providers[name]
		s.mu.Unlock()
		probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := p.HealthCheck(probeCtx)
		cancel()
		if err != nil {
			s.log.Warn("AI provider failed health check", "provider", name, "error", err)
			continue
		}
		s.mu.Lock()
		s.current = name
		s.mu.Unlock()
		s.log.Info("Fell back to healthy AI provider", "provider", name)
		return p, nil
	}
	return nil, ErrNoProviderAvailable
}

// HealthCheckAll probes every registered provider and reports per-provider
// status. Probes run sequentially with short timeouts.
func (s *AISelector) HealthCheckAll(ctx context.Context) []ProviderStatus {
	s.mu.Lock()
	names := append([]string{}, s.order...)
	current := s.current
	s.mu.Unlock()

	out := make([]ProviderStatus, 0, len(names))
	for _, name := range names {
		s.mu.Lock()
		p := s.providers[name]
		s.mu.Unlock()
		probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := p.HealthCheck(probeCtx)
		cancel()
		status := ProviderStatus{
			Name:      name,
			Active:    name == current,
			Healthy:   err == nil,
			CheckedAt: time.Now().UTC().Format(time.RFC3339),
		}
		if err != nil {
			status.Error = err.Error()
		}
		out = append(out, status)
	}
	return out
}

// DefaultProviderFromEnv applies AI_PROVIDER when set, ignoring unknown names.
func (s *AISelector) DefaultProviderFromEnv(log *logger.Logger) {
	name := strings.ToLower(utils.GetEnv("AI_PROVIDER", "", log))
	if name == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.providers[name]; ok {
		s.current = name
	} else {
		s.log.Warn("AI_PROVIDER names an unregistered provider", "provider", name)
	}
}
