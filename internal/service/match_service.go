package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"device-geocoder/internal/cache"
	"device-geocoder/internal/geo"
	"device-geocoder/internal/metrics"
	"device-geocoder/internal/models"

	"github.com/rs/zerolog/log"
)

// Sources of a located point.
const (
	SourceDistrict = "district"
	SourceCity     = "city"
	SourceGeocoder = "geocoder"
)

// Geocoder resolves a free-text address when the local reference set has no match.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (models.Point, bool, error)
}

// Outcome is the result of locating one address triple. Point is the scattered coordinate
// to store; Center is the reference point it was scattered around.
type Outcome struct {
	Found      bool           `json:"found"`
	Source     string         `json:"source,omitempty"`
	Point      models.Point   `json:"point"`
	Center     models.Point   `json:"center"`
	Resolution geo.Resolution `json:"resolution"`
}

// MatchService locates address triples: cached resolution, reference point pick, scatter,
// and an optional external geocoder for addresses the reference set cannot place.
type MatchService struct {
	matcher  *geo.Matcher
	synth    geo.Synthesizer
	rng      geo.Rand
	cache    cache.Cache
	geocoder Geocoder
	prefix   string
}

// Option configures a MatchService.
type Option func(*MatchService)

func WithCache(c cache.Cache) Option {
	return func(s *MatchService) { s.cache = c }
}

func WithGeocoder(g Geocoder) Option {
	return func(s *MatchService) { s.geocoder = g }
}

// WithRand sets the scatter source.
func WithRand(r geo.Rand) Option {
	return func(s *MatchService) { s.rng = r }
}

// NewMatchService creates a new match service
func NewMatchService(matcher *geo.Matcher, synth geo.Synthesizer, opts ...Option) *MatchService {
	s := &MatchService{
		matcher: matcher,
		synth:   synth,
		cache:   cache.Nop{},
		prefix:  matcher.Fingerprint(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = geo.NewLockedRand(0)
	}
	return s
}

// Locate resolves q at threshold and scatters a point around the matched reference center.
// A miss is reported through Outcome.Found; it is never an error.
func (s *MatchService) Locate(ctx context.Context, q geo.Query, threshold float64) Outcome {
	res, center, ok := s.resolve(ctx, q, threshold)
	if ok {
		source := SourceDistrict
		if res.Level == geo.LevelCity {
			source = SourceCity
		}
		metrics.MatchesTotal.WithLabelValues(source).Inc()
		metrics.MatchConfidence.Observe(res.Confidence)
		return Outcome{
			Found:      true,
			Source:     source,
			Point:      s.synth.Scatter(s.rng, center),
			Center:     center,
			Resolution: res,
		}
	}

	if s.geocoder != nil {
		address := joinAddress(q)
		p, found, err := s.geocoder.Geocode(ctx, address)
		switch {
		case err != nil:
			log.Warn().Err(err).Str("address", address).Msg("external geocoder failed")
		case found:
			metrics.MatchesTotal.WithLabelValues(SourceGeocoder).Inc()
			return Outcome{
				Found:      true,
				Source:     SourceGeocoder,
				Point:      s.synth.Scatter(s.rng, p),
				Center:     p,
				Resolution: res,
			}
		}
	}

	metrics.MatchesTotal.WithLabelValues("failed").Inc()
	return Outcome{Resolution: res}
}

func (s *MatchService) resolve(ctx context.Context, q geo.Query, threshold float64) (geo.Resolution, models.Point, bool) {
	key := s.key(q, threshold)

	res, hit := s.cache.Get(ctx, key)
	if hit {
		metrics.CacheHitsTotal.Inc()
	} else {
		metrics.CacheMissesTotal.Inc()
		res = s.matcher.Resolve(q, threshold)
		s.cache.Set(ctx, key, res)
	}
	if !res.OK() {
		return res, models.Point{}, false
	}

	center, ok := s.matcher.Pick(res)
	if !ok && hit {
		// Fingerprint collision or a hand written entry.
		res = s.matcher.Resolve(q, threshold)
		s.cache.Set(ctx, key, res)
		center, ok = s.matcher.Pick(res)
	}
	return res, center, ok
}

func (s *MatchService) key(q geo.Query, threshold float64) string {
	return strings.Join([]string{
		s.prefix,
		s.matcher.Normalize(q.Province),
		s.matcher.Normalize(q.City),
		s.matcher.Normalize(q.District),
		strconv.FormatFloat(threshold, 'f', 4, 64),
	}, "|")
}

// RandomPoint scatters a point within radiusKm of (lat, lon). A non-positive radius uses
// the service default.
func (s *MatchService) RandomPoint(lat, lon, radiusKm float64) (models.Point, error) {
	if lat < -90 || lat > 90 {
		return models.Point{}, fmt.Errorf("service: invalid latitude: %f", lat)
	}
	if lon < -180 || lon > 180 {
		return models.Point{}, fmt.Errorf("service: invalid longitude: %f", lon)
	}
	synth := s.synth
	if radiusKm > 0 {
		synth.RadiusKm = radiusKm
	}
	return synth.Scatter(s.rng, models.Point{Latitude: lat, Longitude: lon}), nil
}

// joinAddress orders the triple most specific first, as the external geocoder expects.
func joinAddress(q geo.Query) string {
	var parts []string
	for _, p := range []string{q.District, q.City, q.Province} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
