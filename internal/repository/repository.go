package repository

import (
	"errors"
	"fmt"
	"strings"

	"device-geocoder/internal/models"
)

// DeviceTable names the device table and the columns the backfill reads and writes.
// Mirrors are further tables updated with the same coordinates in the same transaction.
type DeviceTable struct {
	Name      string
	ID        string
	Province  string
	City      string
	District  string
	Latitude  string
	Longitude string
	Mirrors   []Target
}

// Target is a table receiving coordinates. Rows are matched on Key against the device ID,
// or against the device column named by Source when it is set.
type Target struct {
	Name      string
	Key       string
	Latitude  string
	Longitude string
	Source    string
}

// Validate reports a missing table or column name.
func (t DeviceTable) Validate() error {
	for _, s := range []string{t.Name, t.ID, t.Province, t.City, t.District, t.Latitude, t.Longitude} {
		if strings.TrimSpace(s) == "" {
			return errors.New("repository: device table and every column must be named")
		}
	}
	for _, m := range t.Mirrors {
		for _, s := range []string{m.Name, m.Key, m.Latitude, m.Longitude} {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("repository: mirror target %q must name table, key and both coordinate columns", m.Name)
			}
		}
	}
	return nil
}

// targets returns the device table itself followed by its mirrors.
func (t DeviceTable) targets() []Target {
	out := []Target{{Name: t.Name, Key: t.ID, Latitude: t.Latitude, Longitude: t.Longitude}}
	return append(out, t.Mirrors...)
}

// sources returns the distinct device columns mirrors take their keys from.
func (t DeviceTable) sources() []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range t.Mirrors {
		if m.Source != "" && !seen[m.Source] {
			seen[m.Source] = true
			out = append(out, m.Source)
		}
	}
	return out
}

// keyOf returns the value identifying u in target, or "" when the device has none.
func (t Target) keyOf(u models.CoordinateUpdate) string {
	if t.Source == "" {
		return u.ID
	}
	return u.Keys[t.Source]
}

// keyed returns the updates that carry a key for target, with those keys.
func (t Target) keyed(updates []models.CoordinateUpdate) ([]string, []models.CoordinateUpdate) {
	keys := make([]string, 0, len(updates))
	rows := make([]models.CoordinateUpdate, 0, len(updates))
	for _, u := range updates {
		if k := t.keyOf(u); k != "" {
			keys = append(keys, k)
			rows = append(rows, u)
		}
	}
	return keys, rows
}

// ParseTargets reads mirror targets written as
//
//	table:key_column:lat_column:lon_column[:device_column]
//
// separated by semicolons. Empty input yields no targets.
func ParseTargets(s string) ([]Target, error) {
	var out []Target
	for _, spec := range strings.Split(s, ";") {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		parts := strings.Split(spec, ":")
		if len(parts) != 4 && len(parts) != 5 {
			return nil, fmt.Errorf("repository: invalid mirror target %q", spec)
		}
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		t := Target{Name: parts[0], Key: parts[1], Latitude: parts[2], Longitude: parts[3]}
		if len(parts) == 5 {
			t.Source = parts[4]
		}
		out = append(out, t)
	}
	return out, nil
}

// ReferenceColumns is the column order of the reference table.
var ReferenceColumns = []string{"province_name", "city_name", "district_name", "center_latitude", "center_longitude"}

// splitQualified splits "schema.table" into its parts.
func splitQualified(name string) []string {
	return strings.Split(name, ".")
}

// scanKeys pairs the extra key columns of a fetched row with their names.
func scanKeys(sources, values []string) map[string]string {
	if len(sources) == 0 {
		return nil
	}
	keys := make(map[string]string, len(sources))
	for i, s := range sources {
		keys[s] = values[i]
	}
	return keys
}
