package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mtlprog/taskgate/internal/domain"
	"github.com/redis/go-redis/v9"
)

const policyKeyPrefix = "taskgate:policy:"

// PolicyCache caches approval policies by project ID.
type PolicyCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewPolicyCache creates a PolicyCache whose entries expire after ttl.
func NewPolicyCache(client redis.UniversalClient, ttl time.Duration) *PolicyCache {
	return &PolicyCache{client: client, ttl: ttl}
}

func policyKey(projectID string) string {
	return policyKeyPrefix + projectID
}

// Get returns the cached policy. The boolean is false on a miss.
func (c *PolicyCache) Get(ctx context.Context, projectID string) (*domain.Policy, bool, error) {
	data, err := c.client.Get(ctx, policyKey(projectID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get cached policy %s: %w", projectID, err)
	}

	var policy domain.Policy
	if err := json.Unmarshal(data, &policy); err != nil {
		return nil, false, fmt.Errorf("decode cached policy %s: %w", projectID, err)
	}
	return &policy, true, nil
}

// Set stores the policy.
func (c *PolicyCache) Set(ctx context.Context, policy *domain.Policy) error {
	data, err := json.Marshal(policy)
	if err != nil {
		return fmt.Errorf("encode policy %s: %w", policy.ProjectID, err)
	}

	if err := c.client.Set(ctx, policyKey(policy.ProjectID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache policy %s: %w", policy.ProjectID, err)
	}
	return nil
}

// Invalidate drops the cached policy of a project.
func (c *PolicyCache) Invalidate(ctx context.Context, projectID string) error {
	if err := c.client.Del(ctx, policyKey(projectID)).Err(); err != nil {
		return fmt.Errorf("invalidate policy %s: %w", projectID, err)
	}
	return nil
}
