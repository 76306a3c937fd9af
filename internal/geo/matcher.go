package geo

import (
	"fmt"
	"math/rand/v2"

	"device-geocoder/internal/models"
)

// DefaultThreshold is the per-level similarity a candidate must reach to be accepted.
const DefaultThreshold = 0.6

// Stage is the hierarchy level a match attempt reached.
type Stage int

const (
	StageProvince Stage = iota + 1
	StageCity
	StageDistrict
)

func (s Stage) String() string {
	switch s {
	case StageProvince:
		return "province"
	case StageCity:
		return "city"
	case StageDistrict:
		return "district"
	default:
		return "unknown"
	}
}

// Resolution levels reported on success.
const (
	LevelCity     = 2
	LevelDistrict = 3
)

// Query is a raw (province, city, district) triple from an upstream record.
type Query struct {
	Province string `json:"province"`
	City     string `json:"city"`
	District string `json:"district"`
}

// Failure describes where matching stopped and the closest candidate seen there.
type Failure struct {
	Stage     Stage   `json:"stage"`
	Input     string  `json:"input"`
	Candidate string  `json:"candidate"`
	Score     float64 `json:"score"`
}

func (f Failure) String() string {
	return fmt.Sprintf("%s below threshold (%.2f): input %q vs best %q", f.Stage, f.Score, f.Input, f.Candidate)
}

// Resolution is the deterministic part of a match: which keys were chosen and how well
// they scored. On failure, the names matched before the failing stage are still set.
type Resolution struct {
	Province      string   `json:"province"`
	City          string   `json:"city,omitempty"`
	District      string   `json:"district,omitempty"`
	ProvinceScore float64  `json:"province_score"`
	CityScore     float64  `json:"city_score,omitempty"`
	DistrictScore float64  `json:"district_score,omitempty"`
	Level         int      `json:"level,omitempty"`
	Confidence    float64  `json:"confidence"`
	Failure       *Failure `json:"failure,omitempty"`
}

// OK reports whether the resolution reached a leaf.
func (r Resolution) OK() bool { return r.Failure == nil }

// Result is a Resolution plus the reference point picked for it.
type Result struct {
	Resolution
	Point models.Point `json:"point"`
}

// Matcher resolves noisy address triples against an Index.
type Matcher struct {
	index      *Index
	similarity Similarity
	scorer     string
	normalizer Normalizer
	rng        Rand
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithSimilarity replaces the default Ratcliff scorer with an unnamed one.
func WithSimilarity(s Similarity) Option {
	return func(m *Matcher) {
		m.similarity = s
		m.scorer = "custom"
	}
}

// WithScorer selects a registered scorer by name.
func WithScorer(name string) (Option, error) {
	s, err := SimilarityByName(name)
	if err != nil {
		return nil, err
	}
	canonical := canonicalSimilarity(name)
	return func(m *Matcher) {
		m.similarity = s
		m.scorer = canonical
	}, nil
}

// WithNormalizer sets the Normalizer applied to queries. It should match the one the
// Index was built with.
func WithNormalizer(n Normalizer) Option {
	return func(m *Matcher) { m.normalizer = n }
}

// WithRand sets the source used to pick among several candidate points.
func WithRand(r Rand) Option {
	return func(m *Matcher) { m.rng = r }
}

// NewMatcher returns a Matcher over index.
func NewMatcher(index *Index, opts ...Option) *Matcher {
	m := &Matcher{
		index:      index,
		similarity: Ratcliff,
		scorer:     SimilarityRatcliff,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.rng == nil {
		m.rng = NewLockedRand(rand.Uint64())
	}
	return m
}

// Index returns the index the matcher reads from.
func (m *Matcher) Index() *Index { return m.index }

// Fingerprint identifies everything a Resolution depends on besides the query and threshold:
// the scorer, the normalizer and the indexed reference set.
func (m *Matcher) Fingerprint() string {
	return fmt.Sprintf("%s:%t:%016x", m.scorer, m.normalizer.FoldASCII, m.index.Fingerprint())
}

// Normalize applies the matcher's Normalizer.
func (m *Matcher) Normalize(s string) string { return m.normalizer.Normalize(s) }

// Match resolves q and picks a reference point for it.
func (m *Matcher) Match(q Query, threshold float64) Result {
	res := m.Resolve(q, threshold)
	out := Result{Resolution: res}
	if res.OK() {
		out.Point, _ = m.Pick(res)
	}
	return out
}

// Resolve walks province, city and district in turn, stopping at the first level whose best
// candidate scores below threshold. An empty district resolves at city level.
func (m *Matcher) Resolve(q Query, threshold float64) Resolution {
	province := m.normalizer.Normalize(q.Province)
	city := m.normalizer.Normalize(q.City)
	district := m.normalizer.Normalize(q.District)

	var res Resolution

	pn, pScore := best(province, m.index.provinces, func(p *provinceNode) string { return p.name }, m.similarity)
	res.ProvinceScore = pScore
	res.Confidence = pScore
	if pn == nil || pScore < threshold {
		res.Failure = &Failure{Stage: StageProvince, Input: province, Candidate: pn.label(), Score: pScore}
		return res
	}
	res.Province = pn.name

	cn, cScore := best(city, pn.cities, func(c *cityNode) string { return c.name }, m.similarity)
	res.CityScore = cScore
	res.Confidence = (pScore + cScore) / 2
	if cn == nil || cScore < threshold {
		res.Failure = &Failure{Stage: StageCity, Input: city, Candidate: cn.label(), Score: cScore}
		return res
	}
	res.City = cn.name

	if district == "" {
		res.Level = LevelCity
		return res
	}

	dn, dScore := best(district, cn.districts, func(d *districtNode) string { return d.name }, m.similarity)
	res.DistrictScore = dScore
	res.Confidence = (pScore + cScore + dScore) / 3
	if dn == nil || dScore < threshold {
		res.Failure = &Failure{Stage: StageDistrict, Input: district, Candidate: dn.label(), Score: dScore}
		return res
	}
	res.District = dn.name
	res.Level = LevelDistrict
	return res
}

// Pick chooses a point uniformly from the leaf named by res, or from every point under the
// city for a city-level resolution. It reports false when res does not name indexed keys.
func (m *Matcher) Pick(res Resolution) (models.Point, bool) {
	if !res.OK() {
		return models.Point{}, false
	}
	var points []models.Point
	if res.Level == LevelCity {
		points = m.index.CityPoints(res.Province, res.City)
	} else {
		points = m.index.Points(res.Province, res.City, res.District)
	}
	if len(points) == 0 {
		return models.Point{}, false
	}
	return points[m.rng.IntN(len(points))], true
}

// best returns the highest scoring candidate. The first candidate wins ties.
func best[T any](query string, candidates []T, name func(T) string, sim Similarity) (T, float64) {
	var top T
	topScore := -1.0
	for _, c := range candidates {
		if s := sim(query, name(c)); s > topScore {
			top, topScore = c, s
		}
	}
	if topScore < 0 {
		topScore = 0
	}
	return top, topScore
}
