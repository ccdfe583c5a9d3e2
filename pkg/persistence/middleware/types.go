package middleware

import "github.com/aretw0/canopy/pkg/ports"

// Middleware allows wrapping a RequirementCache to add behavior.
type Middleware func(ports.RequirementCache) ports.RequirementCache

// Chain applies middlewares so that the first one is the outermost.
func Chain(cache ports.RequirementCache, mws ...Middleware) ports.RequirementCache {
	for i := len(mws) - 1; i >= 0; i-- {
		cache = mws[i](cache)
	}
	return cache
}
