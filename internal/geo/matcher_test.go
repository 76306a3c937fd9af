package geo

import (
	"testing"

	"device-geocoder/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func saudiUnits() []models.ReferenceUnit {
	return []models.ReferenceUnit{
		{ProvinceName: "Riyadh", CityName: "Riyadh", DistrictName: "Al Olaya", CenterLatitude: 24.69, CenterLongitude: 46.68},
		{ProvinceName: "Riyadh", CityName: "Riyadh", DistrictName: "Al Malaz", CenterLatitude: 24.66, CenterLongitude: 46.73},
		{ProvinceName: "Riyadh", CityName: "Al Kharj", DistrictName: "Al Nasifah", CenterLatitude: 24.15, CenterLongitude: 47.30},
		{ProvinceName: "Makkah", CityName: "Jeddah", DistrictName: "Al Hamra", CenterLatitude: 21.53, CenterLongitude: 39.17},
		{ProvinceName: "Eastern Province", CityName: "Dammam", DistrictName: "Al Faisaliyah", CenterLatitude: 26.41, CenterLongitude: 50.06},
	}
}

func TestMatcher_ExactMatch(t *testing.T) {
	idx := Build([]models.ReferenceUnit{
		{ProvinceName: "Riyadh", CityName: "Al Olaya", DistrictName: "Sahafa", CenterLatitude: 24.71, CenterLongitude: 46.67},
	})
	m := NewMatcher(idx, WithRand(NewLockedRand(1)))

	res := m.Match(Query{Province: "riyadh", City: "al olaya", District: "sahafa"}, 0.6)

	require.True(t, res.OK())
	assert.Equal(t, models.Point{Latitude: 24.71, Longitude: 46.67}, res.Point)
	assert.Equal(t, 1.0, res.Confidence)
	assert.Equal(t, LevelDistrict, res.Level)
	assert.Equal(t, "riyadh", res.Province)
	assert.Equal(t, "al olaya", res.City)
	assert.Equal(t, "sahafa", res.District)
}

func TestMatcher_Misspelled(t *testing.T) {
	idx := Build([]models.ReferenceUnit{
		{ProvinceName: "Riyadh", CityName: "Al Olaya", DistrictName: "Sahafa", CenterLatitude: 24.71, CenterLongitude: 46.67},
	})
	m := NewMatcher(idx, WithRand(NewLockedRand(1)))

	res := m.Match(Query{Province: "riyath", City: "al olay", District: "sahfa"}, 0.5)

	require.True(t, res.OK())
	assert.Equal(t, models.Point{Latitude: 24.71, Longitude: 46.67}, res.Point)
	assert.Less(t, res.Confidence, 1.0)
	assert.GreaterOrEqual(t, res.Confidence, 0.5)
}

func TestMatcher_RawQueryIsNormalized(t *testing.T) {
	m := NewMatcher(Build(saudiUnits()), WithRand(NewLockedRand(1)))

	res := m.Match(Query{Province: "  RIYADH ", City: "Riyadh.", District: "Al-Malaz"}, 0.6)

	require.True(t, res.OK())
	assert.Equal(t, "al malaz", res.District)
	assert.Equal(t, models.Point{Latitude: 24.66, Longitude: 46.73}, res.Point)
}

func TestMatcher_EmptyDistrictFallsBackToCity(t *testing.T) {
	a := models.Point{Latitude: 24.69, Longitude: 46.68}
	b := models.Point{Latitude: 24.66, Longitude: 46.73}
	m := NewMatcher(Build(saudiUnits()), WithRand(NewLockedRand(7)))

	counts := map[models.Point]int{}
	const trials = 4000
	for i := 0; i < trials; i++ {
		res := m.Match(Query{Province: "Riyadh", City: "Riyadh", District: ""}, 0.6)
		require.True(t, res.OK())
		assert.Equal(t, LevelCity, res.Level)
		assert.Empty(t, res.District)
		assert.Equal(t, 1.0, res.Confidence)
		counts[res.Point]++
	}

	require.Len(t, counts, 2)
	assert.InDelta(t, trials/2, counts[a], trials*0.05)
	assert.InDelta(t, trials/2, counts[b], trials*0.05)
}

func TestMatcher_PunctuationOnlyDistrictFallsBack(t *testing.T) {
	m := NewMatcher(Build(saudiUnits()), WithRand(NewLockedRand(1)))

	res := m.Resolve(Query{Province: "Makkah", City: "Jeddah", District: "--"}, 0.6)

	require.True(t, res.OK())
	assert.Equal(t, LevelCity, res.Level)
}

func TestMatcher_ProvinceFailureStopsEarly(t *testing.T) {
	idx := Build(saudiUnits())
	var scored []string
	counting := func(a, b string) float64 {
		scored = append(scored, b)
		return Ratcliff(a, b)
	}
	m := NewMatcher(idx, WithSimilarity(counting))

	res := m.Match(Query{Province: "Mars", City: "Riyadh", District: "Al Olaya"}, 0.6)

	assert.False(t, res.OK())
	require.NotNil(t, res.Failure)
	assert.Equal(t, StageProvince, res.Failure.Stage)
	assert.Equal(t, "mars", res.Failure.Input)
	assert.Less(t, res.Failure.Score, 0.6)
	assert.NotEmpty(t, res.Failure.Candidate)
	assert.Equal(t, idx.Provinces(), scored, "only province keys may be scored")
	assert.Equal(t, models.Point{}, res.Point)
}

func TestMatcher_CityFailure(t *testing.T) {
	m := NewMatcher(Build(saudiUnits()))

	res := m.Resolve(Query{Province: "Riyadh", City: "Tabuk", District: "Al Olaya"}, 0.6)

	require.NotNil(t, res.Failure)
	assert.Equal(t, StageCity, res.Failure.Stage)
	assert.Equal(t, "riyadh", res.Province)
	assert.Equal(t, 1.0, res.ProvinceScore)
	assert.Contains(t, []string{"riyadh", "al kharj"}, res.Failure.Candidate)
	assert.InDelta(t, (res.ProvinceScore+res.CityScore)/2, res.Confidence, 1e-9)
}

func TestMatcher_DistrictFailure(t *testing.T) {
	m := NewMatcher(Build(saudiUnits()))

	res := m.Resolve(Query{Province: "Riyadh", City: "Riyadh", District: "Qurtubah"}, 0.6)

	require.NotNil(t, res.Failure)
	assert.Equal(t, StageDistrict, res.Failure.Stage)
	assert.Equal(t, "riyadh", res.City)
	assert.Equal(t, "qurtubah", res.Failure.Input)
	assert.Contains(t, res.Failure.String(), "district below threshold")
}

func TestMatcher_EmptyIndex(t *testing.T) {
	m := NewMatcher(Build(nil))

	res := m.Match(Query{Province: "Riyadh"}, 0.6)

	require.NotNil(t, res.Failure)
	assert.Equal(t, StageProvince, res.Failure.Stage)
	assert.Empty(t, res.Failure.Candidate)
}

func TestMatcher_TieTakesFirstKey(t *testing.T) {
	idx := Build([]models.ReferenceUnit{
		{ProvinceName: "ab", CityName: "c", DistrictName: "d", CenterLatitude: 1, CenterLongitude: 1},
		{ProvinceName: "ba", CityName: "c", DistrictName: "d", CenterLatitude: 2, CenterLongitude: 2},
	})
	constant := func(a, b string) float64 { return 0.9 }
	m := NewMatcher(idx, WithSimilarity(constant))

	res := m.Match(Query{Province: "zz", City: "c", District: "d"}, 0.6)

	require.True(t, res.OK())
	assert.Equal(t, "ab", res.Province)
}

func TestMatcher_DeterministicWithSeed(t *testing.T) {
	queries := []Query{
		{Province: "Riyadh", City: "Riyadh"},
		{Province: "riyad", City: "riyadh", District: "olaya"},
		{Province: "Makka", City: "Jedda", District: "Hamra"},
		{Province: "Mars"},
	}

	run := func() []Result {
		m := NewMatcher(Build(saudiUnits()), WithRand(NewLockedRand(42)))
		var out []Result
		for i := 0; i < 20; i++ {
			for _, q := range queries {
				out = append(out, m.Match(q, 0.5))
			}
		}
		return out
	}

	assert.Equal(t, run(), run())
}

func TestMatcher_PickUnknownKeys(t *testing.T) {
	m := NewMatcher(Build(saudiUnits()))

	_, ok := m.Pick(Resolution{Province: "nowhere", City: "x", District: "y", Level: LevelDistrict})
	assert.False(t, ok)

	_, ok = m.Pick(Resolution{Failure: &Failure{Stage: StageCity}})
	assert.False(t, ok)
}

func TestIndex_DuplicatesAppend(t *testing.T) {
	units := []models.ReferenceUnit{
		{ProvinceName: "Riyadh", CityName: "Riyadh", DistrictName: "Al Olaya", CenterLatitude: 1, CenterLongitude: 1},
		{ProvinceName: "riyadh", CityName: "RIYADH", DistrictName: "Al Olaya.", CenterLatitude: 2, CenterLongitude: 2},
		{ProvinceName: "Riyadh", CityName: "Riyadh", DistrictName: "Al-Malaz", CenterLatitude: 3, CenterLongitude: 3},
	}
	idx := Build(units)

	assert.Equal(t, 3, idx.Len())
	assert.Equal(t, []string{"riyadh"}, idx.Provinces())
	assert.Equal(t, []string{"riyadh"}, idx.Cities("riyadh"))
	assert.Equal(t, []string{"al olaya", "almalaz"}, idx.Districts("riyadh", "riyadh"))
	assert.Equal(t, []models.Point{{Latitude: 1, Longitude: 1}, {Latitude: 2, Longitude: 2}}, idx.Points("riyadh", "riyadh", "al olaya"))
	assert.Len(t, idx.CityPoints("riyadh", "riyadh"), 3)
	assert.Nil(t, idx.Cities("makkah"))
	assert.Nil(t, idx.Points("riyadh", "riyadh", "qurtubah"))
}

func TestMatcher_Fingerprint(t *testing.T) {
	base := NewMatcher(Build(saudiUnits())).Fingerprint()

	assert.Equal(t, base, NewMatcher(Build(saudiUnits())).Fingerprint(), "same units give the same fingerprint")

	fewer := saudiUnits()[:4]
	assert.NotEqual(t, base, NewMatcher(Build(fewer)).Fingerprint())

	moved := saudiUnits()
	moved[0].CenterLatitude += 0.01
	assert.NotEqual(t, base, NewMatcher(Build(moved)).Fingerprint())

	jw, err := WithScorer(" JaroWinkler ")
	require.NoError(t, err)
	assert.NotEqual(t, base, NewMatcher(Build(saudiUnits()), jw).Fingerprint())
	assert.Contains(t, NewMatcher(Build(saudiUnits()), jw).Fingerprint(), SimilarityJaroWinkler+":")

	folded := Normalizer{FoldASCII: true}
	assert.NotEqual(t, base, NewMatcher(BuildWith(folded, saudiUnits()), WithNormalizer(folded)).Fingerprint())

	_, err = WithScorer("soundex")
	assert.Error(t, err)
}
