package classifier

import (
	"context"

	"go.uber.org/zap"
)

// GuardedDetector calls a remote detector behind a breaker and answers
// from a fallback while the remote is failing.
type GuardedDetector struct {
	remote   Detector
	fallback Detector
	breaker  *Breaker
	log      *zap.Logger
}

// NewGuardedDetector wraps remote. A nil fallback means remote errors
// are returned to the caller.
func NewGuardedDetector(remote, fallback Detector, breaker *Breaker, log *zap.Logger) *GuardedDetector {
	if log == nil {
		log = zap.NewNop()
	}
	return &GuardedDetector{remote: remote, fallback: fallback, breaker: breaker, log: log.Named("classifier")}
}

// DetectBrand tries the remote detector first. Cached remote answers are
// served without consulting the breaker.
func (g *GuardedDetector) DetectBrand(ctx context.Context, c Content) (string, error) {
	call := g.remote.DetectBrand
	if cached, ok := g.remote.(*CachedDetector); ok {
		if v, hit := cached.Lookup(c); hit {
			return v, nil
		}
		call = cached.detectAndStore
	}
	if !g.breaker.Allow() {
		return g.fallBack(ctx, c, ErrBreakerOpen)
	}

	name, err := call(ctx, c)
	if err != nil {
		// Cancellation by the caller says nothing about the remote's health.
		if ctx.Err() == nil {
			g.breaker.Failure()
		} else {
			g.breaker.Abandon()
		}
		g.log.Warn("remote detection failed", zap.Error(err))
		return g.fallBack(ctx, c, err)
	}

	g.breaker.Success()
	return name, nil
}

func (g *GuardedDetector) fallBack(ctx context.Context, c Content, cause error) (string, error) {
	if g.fallback == nil {
		return "", cause
	}
	return g.fallback.DetectBrand(ctx, c)
}
