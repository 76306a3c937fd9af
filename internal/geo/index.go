package geo

import (
	"encoding/binary"
	"math"

	"device-geocoder/internal/models"

	"github.com/cespare/xxhash/v2"
)

// Index is the province -> city -> district -> points lookup built from reference units.
// Keys are normalized names; every level keeps insertion order so that scans are
// deterministic for a given reference set. An Index is read-only once built.
type Index struct {
	provinces []*provinceNode
	byName    map[string]*provinceNode
	points    int
	digest    *xxhash.Digest
}

type provinceNode struct {
	name   string
	cities []*cityNode
	byName map[string]*cityNode
}

type cityNode struct {
	name      string
	districts []*districtNode
	byName    map[string]*districtNode
}

type districtNode struct {
	name   string
	points []models.Point
}

func (p *provinceNode) label() string {
	if p == nil {
		return ""
	}
	return p.name
}

func (c *cityNode) label() string {
	if c == nil {
		return ""
	}
	return c.name
}

func (d *districtNode) label() string {
	if d == nil {
		return ""
	}
	return d.name
}

// Build indexes units with the default Normalizer.
func Build(units []models.ReferenceUnit) *Index {
	return BuildWith(Normalizer{}, units)
}

// BuildWith indexes units, normalizing names with n. Units sharing a normalized triple
// append to the same leaf; none are dropped.
func BuildWith(n Normalizer, units []models.ReferenceUnit) *Index {
	idx := &Index{byName: make(map[string]*provinceNode), digest: xxhash.New()}
	for _, u := range units {
		idx.insert(
			n.Normalize(u.ProvinceName),
			n.Normalize(u.CityName),
			n.Normalize(u.DistrictName),
			u.Center(),
		)
	}
	return idx
}

func (idx *Index) insert(province, city, district string, p models.Point) {
	idx.hash(province, city, district, p)

	pn, ok := idx.byName[province]
	if !ok {
		pn = &provinceNode{name: province, byName: make(map[string]*cityNode)}
		idx.byName[province] = pn
		idx.provinces = append(idx.provinces, pn)
	}
	cn, ok := pn.byName[city]
	if !ok {
		cn = &cityNode{name: city, byName: make(map[string]*districtNode)}
		pn.byName[city] = cn
		pn.cities = append(pn.cities, cn)
	}
	dn, ok := cn.byName[district]
	if !ok {
		dn = &districtNode{name: district}
		cn.byName[district] = dn
		cn.districts = append(cn.districts, dn)
	}
	dn.points = append(dn.points, p)
	idx.points++
}

func (idx *Index) hash(province, city, district string, p models.Point) {
	for _, s := range []string{province, city, district} {
		idx.digest.WriteString(s)
		idx.digest.Write([]byte{0})
	}
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], math.Float64bits(p.Latitude))
	binary.LittleEndian.PutUint64(buf[8:], math.Float64bits(p.Longitude))
	idx.digest.Write(buf[:])
}

// Fingerprint identifies the indexed content: the same units in the same order always
// give the same value.
func (idx *Index) Fingerprint() uint64 {
	if idx.digest == nil {
		return xxhash.Sum64(nil)
	}
	return idx.digest.Sum64()
}

// Len returns the number of indexed points.
func (idx *Index) Len() int { return idx.points }

// Provinces returns the normalized province keys in index order.
func (idx *Index) Provinces() []string {
	out := make([]string, 0, len(idx.provinces))
	for _, p := range idx.provinces {
		out = append(out, p.name)
	}
	return out
}

// Cities returns the city keys under province, or nil when the province is unknown.
func (idx *Index) Cities(province string) []string {
	pn, ok := idx.byName[province]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(pn.cities))
	for _, c := range pn.cities {
		out = append(out, c.name)
	}
	return out
}

// Districts returns the district keys under province/city.
func (idx *Index) Districts(province, city string) []string {
	cn := idx.city(province, city)
	if cn == nil {
		return nil
	}
	out := make([]string, 0, len(cn.districts))
	for _, d := range cn.districts {
		out = append(out, d.name)
	}
	return out
}

// Points returns the points stored for a normalized triple.
func (idx *Index) Points(province, city, district string) []models.Point {
	cn := idx.city(province, city)
	if cn == nil {
		return nil
	}
	dn, ok := cn.byName[district]
	if !ok {
		return nil
	}
	return dn.points
}

// CityPoints returns every point under province/city across all districts, in index order.
func (idx *Index) CityPoints(province, city string) []models.Point {
	cn := idx.city(province, city)
	if cn == nil {
		return nil
	}
	var out []models.Point
	for _, d := range cn.districts {
		out = append(out, d.points...)
	}
	return out
}

func (idx *Index) city(province, city string) *cityNode {
	pn, ok := idx.byName[province]
	if !ok {
		return nil
	}
	return pn.byName[city]
}
