package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-dispatcher/core"
)

// CallbackID is the identifier descriptors list in their callbacks to opt
// into throttling.
const CallbackID = "ratelimit"

const ErrorServiceThrottled = "SERVICE_THROTTLED"

var ErrStateNotFound = errors.New("ratelimit: state not found")

// State is the throttle bookkeeping kept per service name.
type State struct {
	Service        string
	Limit          int
	Remaining      int
	ResetAt        *time.Time
	ThrottledUntil *time.Time
	Failures       int
	LastStatus     string
	UpdatedAt      time.Time
}

type StateStore interface {
	Get(ctx context.Context, service string) (State, error)
	Upsert(ctx context.Context, state State) error
}

type ThrottledError struct {
	Service    string
	RetryAfter time.Duration
}

func (e ThrottledError) Error() string {
	return fmt.Sprintf("ratelimit: service %q throttled for %s", strings.TrimSpace(e.Service), e.RetryAfter)
}

func (e ThrottledError) ToServiceError() *goerrors.Error {
	metadata := map[string]any{core.ResultKeyService: strings.TrimSpace(e.Service)}
	if e.RetryAfter > 0 {
		metadata["retry_after_ms"] = e.RetryAfter.Milliseconds()
	}
	return goerrors.New(e.Error(), goerrors.CategoryRateLimit).
		WithCode(http.StatusTooManyRequests).
		WithTextCode(ErrorServiceThrottled).
		WithMetadata(metadata)
}

// AdaptivePolicy is a dispatcher callback. BeforeInvoke rejects calls while a
// service is backing off or has spent its call budget for the current window;
// AfterInvoke records the outcome and starts an exponential backoff once
// consecutive failures reach FailureThreshold.
type AdaptivePolicy struct {
	Store            StateStore
	Now              func() time.Time
	Limit            int
	Window           time.Duration
	FailureThreshold int
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration

	mu sync.Mutex
}

func NewAdaptivePolicy(store StateStore) *AdaptivePolicy {
	return &AdaptivePolicy{
		Store:            store,
		Now:              func() time.Time { return time.Now().UTC() },
		Window:           time.Minute,
		FailureThreshold: 3,
		InitialBackoff:   time.Second,
		MaxBackoff:       time.Minute,
	}
}

// CallbackFactory registers the policy under a dispatcher callback id. The
// same policy instance serves every call.
func CallbackFactory(policy *AdaptivePolicy) core.CallbackFactory {
	return func() (core.Callback, error) {
		if policy == nil || policy.Store == nil {
			return nil, fmt.Errorf("ratelimit: policy store is required")
		}
		return policy, nil
	}
}

func (p *AdaptivePolicy) BeforeInvoke(ctx context.Context, desc core.ServiceDescriptor, _ core.Params) error {
	if p == nil || p.Store == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	state, err := p.load(ctx, desc.Name)
	if err != nil {
		return err
	}
	now := p.now()
	if until := state.ThrottledUntil; until != nil && now.Before(*until) {
		return ThrottledError{Service: state.Service, RetryAfter: until.Sub(now)}
	}
	if p.Limit <= 0 {
		return nil
	}

	if state.ResetAt == nil || !now.Before(*state.ResetAt) {
		resetAt := now.Add(p.window())
		state.ResetAt = &resetAt
		state.Limit = p.Limit
		state.Remaining = p.Limit
	}
	if state.Remaining <= 0 {
		return ThrottledError{Service: state.Service, RetryAfter: state.ResetAt.Sub(now)}
	}
	state.Remaining--
	state.UpdatedAt = now
	return p.Store.Upsert(ctx, state)
}

func (p *AdaptivePolicy) AfterInvoke(ctx context.Context, desc core.ServiceDescriptor, _ core.Params, result core.Result, err error) {
	if p == nil || p.Store == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	state, loadErr := p.load(ctx, desc.Name)
	if loadErr != nil {
		return
	}
	now := p.now()
	state.UpdatedAt = now

	if err == nil && !result.Failed() {
		state.Failures = 0
		state.ThrottledUntil = nil
		state.LastStatus = core.StatusSuccess
		_ = p.Store.Upsert(ctx, state)
		return
	}

	state.Failures++
	state.LastStatus = core.StatusError
	threshold := max(p.FailureThreshold, 1)
	if state.Failures >= threshold {
		until := now.Add(p.nextBackoff(state.Failures - threshold + 1))
		state.ThrottledUntil = &until
	}
	_ = p.Store.Upsert(ctx, state)
}

func (p *AdaptivePolicy) load(ctx context.Context, service string) (State, error) {
	service = normalizeService(service)
	state, err := p.Store.Get(ctx, service)
	if errors.Is(err, ErrStateNotFound) {
		return State{Service: service}, nil
	}
	if err != nil {
		return State{}, err
	}
	return state, nil
}

func (p *AdaptivePolicy) now() time.Time {
	if p != nil && p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func (p *AdaptivePolicy) window() time.Duration {
	if p.Window > 0 {
		return p.Window
	}
	return time.Minute
}

func (p *AdaptivePolicy) nextBackoff(attempt int) time.Duration {
	initial := p.InitialBackoff
	if initial <= 0 {
		initial = time.Second
	}
	maximum := p.MaxBackoff
	if maximum <= 0 {
		maximum = time.Minute
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maximum {
			return maximum
		}
	}
	return min(delay, maximum)
}

func normalizeService(service string) string {
	return strings.TrimSpace(service)
}

type MemoryStateStore struct {
	mu    sync.RWMutex
	items map[string]State
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{items: map[string]State{}}
}

func (s *MemoryStateStore) Get(_ context.Context, service string) (State, error) {
	if s == nil {
		return State{}, fmt.Errorf("ratelimit: state store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.items[normalizeService(service)]
	if !ok {
		return State{}, ErrStateNotFound
	}
	return state, nil
}

func (s *MemoryStateStore) Upsert(_ context.Context, state State) error {
	if s == nil {
		return fmt.Errorf("ratelimit: state store is nil")
	}
	state.Service = normalizeService(state.Service)
	if state.Service == "" {
		return fmt.Errorf("ratelimit: service is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[state.Service] = state
	return nil
}

var _ core.Callback = (*AdaptivePolicy)(nil)
