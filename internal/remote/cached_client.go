package remote

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/triage-ai/palisade/services/integration_engine/internal/swr"
)

const defaultComponentTTL = 5 * time.Minute

// CachedClient memoizes GetComponent; every other call goes straight to the
// wrapped client. Component definitions change only when a new version is published.
type CachedClient struct {
	Client
	cache  *swr.Cache[*Component]
	logger *zap.Logger
}

// NewCachedClient wraps next with a component cache of the given TTL.
func NewCachedClient(next Client, ttl time.Duration, logger *zap.Logger) *CachedClient {
	if ttl == 0 {
		ttl = defaultComponentTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedClient{
		Client: next,
		cache:  swr.New[*Component](ttl),
		logger: logger,
	}
}

func (c *CachedClient) GetComponent(ctx context.Context, componentID string) (*Component, error) {
	res := c.cache.Get(componentID)
	if res.Hit {
		if res.NeedsRefresh {
			go c.refreshInBackground(componentID)
		}
		return cloneComponent(res.Value), nil
	}

	comp, err := c.Client.GetComponent(ctx, componentID)
	if err != nil {
		return nil, err
	}
	c.cache.Set(componentID, comp)
	return cloneComponent(comp), nil
}

func (c *CachedClient) refreshInBackground(componentID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	comp, err := c.Client.GetComponent(ctx, componentID)
	if err != nil {
		c.logger.Warn("background component refresh failed",
			zap.String("component_id", componentID),
			zap.Error(err),
		)
		return
	}
	c.cache.Set(componentID, comp)
}

// cloneComponent copies the prop slice so callers can't corrupt the cached entry.
func cloneComponent(in *Component) *Component {
	if in == nil {
		return nil
	}
	out := *in
	out.ConfigurableProps = append(out.ConfigurableProps[:0:0], in.ConfigurableProps...)
	return &out
}
