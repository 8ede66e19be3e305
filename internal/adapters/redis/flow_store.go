package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domainauth "github.com/target/mmk-auth-bridge/internal/domain/auth"
	"github.com/target/mmk-auth-bridge/internal/ports"
)

const defaultFlowPrefix = "authflow:"

var _ ports.FlowStore = (*FlowStore)(nil)

// FlowStore keeps in-progress logins in Redis. Take uses GETDEL, so of two racing
// callbacks only one can read the flow.
type FlowStore struct {
	client redis.UniversalClient
	prefix string
}

// NewFlowStore creates a flow store. An empty prefix defaults to "authflow:".
func NewFlowStore(client redis.UniversalClient, prefix string) *FlowStore {
	if prefix == "" {
		prefix = defaultFlowPrefix
	}
	return &FlowStore{client: client, prefix: prefix}
}

func (s *FlowStore) Put(ctx context.Context, key string, flow domainauth.FlowState, ttl time.Duration) error {
	if key == "" {
		return errors.New("flow key cannot be empty")
	}
	if ttl <= 0 {
		ttl = domainauth.DefaultFlowTTL
	}
	data, err := json.Marshal(flow)
	if err != nil {
		return fmt.Errorf("marshal flow: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *FlowStore) Take(ctx context.Context, key string) (domainauth.FlowState, bool, error) {
	if key == "" {
		return domainauth.FlowState{}, false, nil
	}
	data, err := s.client.GetDel(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domainauth.FlowState{}, false, nil
		}
		return domainauth.FlowState{}, false, fmt.Errorf("redis getdel: %w", err)
	}
	// GETDEL already removed the key; an unreadable payload is simply no flow.
	var flow domainauth.FlowState
	if err := json.Unmarshal(data, &flow); err != nil {
		return domainauth.FlowState{}, false, nil
	}
	return flow, true, nil
}
