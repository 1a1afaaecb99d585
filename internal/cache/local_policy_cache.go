package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/mtlprog/taskgate/internal/domain"
)

// DefaultLocalPolicyCacheSize bounds the in-process policy cache.
const DefaultLocalPolicyCacheSize = 1024

// LocalPolicyCache caches approval policies in process memory. It is used when no
// Redis is configured; other replicas only see an edit once their entry expires,
// so keep the TTL short.
type LocalPolicyCache struct {
	entries *expirable.LRU[string, []byte]
}

// NewLocalPolicyCache creates a LocalPolicyCache holding up to size policies for ttl each.
func NewLocalPolicyCache(size int, ttl time.Duration) *LocalPolicyCache {
	if size <= 0 {
		size = DefaultLocalPolicyCacheSize
	}
	return &LocalPolicyCache{entries: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

// Get returns a copy of the cached policy. The boolean is false on a miss.
func (c *LocalPolicyCache) Get(_ context.Context, projectID string) (*domain.Policy, bool, error) {
	data, ok := c.entries.Get(projectID)
	if !ok {
		return nil, false, nil
	}

	// Each caller gets its own copy; services mutate the policy they load.
	var policy domain.Policy
	if err := json.Unmarshal(data, &policy); err != nil {
		return nil, false, fmt.Errorf("decode cached policy %s: %w", projectID, err)
	}
	return &policy, true, nil
}

// Set stores the policy.
func (c *LocalPolicyCache) Set(_ context.Context, policy *domain.Policy) error {
	data, err := json.Marshal(policy)
	if err != nil {
		return fmt.Errorf("encode policy %s: %w", policy.ProjectID, err)
	}
	c.entries.Add(policy.ProjectID, data)
	return nil
}

// Invalidate drops the cached policy of a project.
func (c *LocalPolicyCache) Invalidate(_ context.Context, projectID string) error {
	c.entries.Remove(projectID)
	return nil
}
