package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agent-swarm/bridge/core/protocol"
)

const agentKeyPrefix = "agent:"

// RedisStore persists capability records in Redis, letting multiple bridge
// processes share one registry. Records carry a TTL so agents that vanish
// without unregistering eventually age out.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to the Redis instance at addr. A non-positive ttl
// keeps records forever.
func NewRedisStore(addr string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
	}
}

func (s *RedisStore) Put(ctx context.Context, caps protocol.AgentCapabilities) error {
	data, err := json.Marshal(caps)
	if err != nil {
		return fmt.Errorf("encoding capabilities for %s: %w", caps.AgentID, err)
	}
	return s.client.Set(ctx, agentKeyPrefix+caps.AgentID, data, s.ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, agentID string) (protocol.AgentCapabilities, error) {
	data, err := s.client.Get(ctx, agentKeyPrefix+agentID).Bytes()
	if err == redis.Nil {
		return protocol.AgentCapabilities{}, fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}
	if err != nil {
		return protocol.AgentCapabilities{}, err
	}

	var caps protocol.AgentCapabilities
	if err := json.Unmarshal(data, &caps); err != nil {
		return protocol.AgentCapabilities{}, fmt.Errorf("decoding capabilities for %s: %w", agentID, err)
	}
	return caps, nil
}

func (s *RedisStore) Delete(ctx context.Context, agentID string) error {
	deleted, err := s.client.Del(ctx, agentKeyPrefix+agentID).Result()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}
	return nil
}

func (s *RedisStore) All(ctx context.Context) ([]protocol.AgentCapabilities, error) {
	var all []protocol.AgentCapabilities

	iter := s.client.Scan(ctx, 0, agentKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Bytes()
		if err == redis.Nil {
			continue // expired between scan and get
		}
		if err != nil {
			return nil, err
		}
		var caps protocol.AgentCapabilities
		if err := json.Unmarshal(data, &caps); err != nil {
			return nil, fmt.Errorf("decoding record %s: %w", iter.Val(), err)
		}
		all = append(all, caps)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return all, nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, agentKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Close releases the underlying Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
