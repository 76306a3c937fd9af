// Package cache stores match resolutions keyed by normalized address triples so repeated
// addresses skip similarity scoring.
package cache

import (
	"context"

	"device-geocoder/internal/geo"
)

// Cache is a resolution store. Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) (geo.Resolution, bool)
	Set(ctx context.Context, key string, res geo.Resolution)
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) (geo.Resolution, bool) { return geo.Resolution{}, false }
func (Nop) Set(context.Context, string, geo.Resolution)        {}
