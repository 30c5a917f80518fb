package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const subjectCacheTTL = 30 * time.Second

// subjectCache keeps recently resolved subjects in Redis and coalesces
// concurrent lookups for the same user so a burst of guarded requests
// costs one profile query.
type subjectCache struct {
	client *redis.Client
	group  singleflight.Group
	source SubjectSource
}

func newSubjectCache(client *redis.Client, source SubjectSource) *subjectCache {
	return &subjectCache{client: client, source: source}
}

func (c *subjectCache) resolve(ctx context.Context, userID string) (*Subject, error) {
	if c.client == nil {
		return c.source.ResolveSubject(ctx, userID)
	}

	if data, err := c.client.Get(ctx, c.key(userID)).Bytes(); err == nil {
		var subj Subject
		if err := json.Unmarshal(data, &subj); err == nil {
			return &subj, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		// Redis being down must not lock everyone out.
		return c.source.ResolveSubject(ctx, userID)
	}

	v, err, _ := c.group.Do(userID, func() (any, error) {
		subj, err := c.source.ResolveSubject(ctx, userID)
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(subj); err == nil {
			_ = c.client.Set(ctx, c.key(userID), data, subjectCacheTTL).Err()
		}
		return subj, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Subject), nil
}

// invalidate drops the cached subject, used after role or activation changes.
func (c *subjectCache) invalidate(ctx context.Context, userID string) {
	if c.client == nil {
		return
	}
	_ = c.client.Del(ctx, c.key(userID)).Err()
}

func (c *subjectCache) key(userID string) string {
	return "alkesia:subject:" + userID
}
