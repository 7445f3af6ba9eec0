package classifier

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/evcraddock/mela/internal/config"
)

// New builds the detector chain described by cfg: the configured
// provider, cached in Redis when redisCfg has an address, and guarded by
// a breaker with the catalog as fallback when it is remote. The returned
// cleanup func releases the Redis connection.
func New(ctx context.Context, cfg config.ClassifierConfig, redisCfg config.RedisConfig, log *zap.Logger) (Detector, func() error, error) {
	if log == nil {
		log = zap.NewNop()
	}
	cleanup := func() error { return nil }
	catalog := NewCatalogDetector()

	var (
		det       Detector
		namespace string
		remote    = true
	)
	switch cfg.Provider {
	case config.ProviderCatalog, "":
		det, namespace, remote = catalog, config.ProviderCatalog, false
	case config.ProviderGenAI:
		g, err := NewGenAIDetector(ctx, GenAIConfig{APIKey: cfg.APIKey, Model: cfg.Model})
		if err != nil {
			return nil, nil, err
		}
		det, namespace = g, config.ProviderGenAI+":"+g.model
	case config.ProviderGateway:
		g, err := NewGatewayDetector(GatewayConfig{URL: cfg.GatewayURL, APIKey: cfg.APIKey, Model: cfg.Model, Timeout: cfg.Timeout})
		if err != nil {
			return nil, nil, err
		}
		det, namespace = g, config.ProviderGateway+":"+g.model
	default:
		return nil, nil, fmt.Errorf("unknown classifier provider %q", cfg.Provider)
	}

	var cache Cache
	if redisCfg.Addr != "" {
		client := DialRedis(redisCfg.Addr, redisCfg.Password, redisCfg.DB)
		cache = NewRedisCache(client)
		cleanup = client.Close
	}

	var breaker *Breaker
	if remote {
		breaker = NewBreaker(BreakerConfig{
			Name:             cfg.Provider,
			FailureThreshold: cfg.BreakerFailures,
			Cooldown:         cfg.BreakerCooldown,
		}, log)
	}
	det = chain(det, catalog, breaker, cache, namespace, cfg.CacheTTL, log)

	log.Info("brand detector ready",
		zap.String("provider", namespace),
		zap.Bool("cache", redisCfg.Addr != ""))
	return det, cleanup, nil
}

// chain caches det when cache is set and, given a breaker, guards the
// result with fallback. The cache sits inside the guard so fallback
// answers given during an outage are never stored under det's namespace.
func chain(det, fallback Detector, breaker *Breaker, cache Cache, namespace string, ttl time.Duration, log *zap.Logger) Detector {
	if cache != nil {
		det = NewCachedDetector(det, cache, namespace, ttl, log)
	}
	if breaker != nil {
		det = NewGuardedDetector(det, fallback, breaker, log)
	}
	return det
}
