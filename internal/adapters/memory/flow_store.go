package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	domainauth "github.com/target/mmk-auth-bridge/internal/domain/auth"
	"github.com/target/mmk-auth-bridge/internal/ports"
)

var (
	_ ports.FlowStore = (*FlowStore)(nil)
	_ ports.Sweeper   = (*FlowStore)(nil)
)

type flowEntry struct {
	flow      domainauth.FlowState
	expiresAt time.Time
}

// FlowStore keeps in-progress logins keyed by per-browser flow key.
type FlowStore struct {
	mu    sync.Mutex
	flows map[string]flowEntry
	now   func() time.Time
}

// NewFlowStore creates an empty flow store. now may be nil.
func NewFlowStore(now func() time.Time) *FlowStore {
	if now == nil {
		now = time.Now
	}
	return &FlowStore{flows: make(map[string]flowEntry), now: now}
}

func (s *FlowStore) Put(_ context.Context, key string, flow domainauth.FlowState, ttl time.Duration) error {
	if key == "" {
		return errors.New("flow key cannot be empty")
	}
	if ttl <= 0 {
		ttl = domainauth.DefaultFlowTTL
	}
	s.mu.Lock()
	s.flows[key] = flowEntry{flow: flow, expiresAt: s.now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

// Take removes the flow under the lock, so only one caller can receive it.
func (s *FlowStore) Take(_ context.Context, key string) (domainauth.FlowState, bool, error) {
	if key == "" {
		return domainauth.FlowState{}, false, nil
	}
	s.mu.Lock()
	entry, ok := s.flows[key]
	delete(s.flows, key)
	s.mu.Unlock()
	if !ok || !s.now().Before(entry.expiresAt) {
		return domainauth.FlowState{}, false, nil
	}
	return entry.flow, true, nil
}

// PurgeExpired drops flows whose callback never arrived.
func (s *FlowStore) PurgeExpired(_ context.Context) (int64, error) {
	now := s.now()
	var purged int64
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, entry := range s.flows {
		if !now.Before(entry.expiresAt) {
			delete(s.flows, key)
			purged++
		}
	}
	return purged, nil
}
