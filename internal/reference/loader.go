// Package reference reads administrative reference datasets (province/city/district names
// with center coordinates) from CSV or XLSX files.
package reference

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"device-geocoder/internal/models"

	"github.com/jszwec/csvutil"
	"github.com/xuri/excelize/v2"
)

// Canonical column names. Files may use any of the aliases below, in any case.
const (
	colProvince  = "province"
	colCity      = "city"
	colDistrict  = "district"
	colLatitude  = "latitude"
	colLongitude = "longitude"
)

var aliases = map[string]string{
	"region":           colProvince,
	"province":         colProvince,
	"province_name":    colProvince,
	"city":             colCity,
	"city_name":        colCity,
	"district":         colDistrict,
	"district_name":    colDistrict,
	"area":             colDistrict,
	"latitude":         colLatitude,
	"lat":              colLatitude,
	"center_latitude":  colLatitude,
	"longitude":        colLongitude,
	"lon":              colLongitude,
	"lng":              colLongitude,
	"center_longitude": colLongitude,
}

var required = []string{colProvince, colCity, colDistrict, colLatitude, colLongitude}

type row struct {
	Province  string `csv:"province"`
	City      string `csv:"city"`
	District  string `csv:"district"`
	Latitude  string `csv:"latitude"`
	Longitude string `csv:"longitude"`
}

func (r row) unit(line int) (models.ReferenceUnit, error) {
	lat, err := strconv.ParseFloat(strings.TrimSpace(r.Latitude), 64)
	if err != nil {
		return models.ReferenceUnit{}, fmt.Errorf("reference: line %d: invalid latitude %q", line, r.Latitude)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(r.Longitude), 64)
	if err != nil {
		return models.ReferenceUnit{}, fmt.Errorf("reference: line %d: invalid longitude %q", line, r.Longitude)
	}
	return models.ReferenceUnit{
		ProvinceName:    r.Province,
		CityName:        r.City,
		DistrictName:    r.District,
		CenterLatitude:  lat,
		CenterLongitude: lon,
	}, nil
}

// LoadFile reads units from a .csv or .xlsx file.
func LoadFile(path string) ([]models.ReferenceUnit, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("reference: failed to open file: %w", err)
		}
		defer f.Close()
		return ReadCSV(f)
	case ".xlsx":
		return ReadXLSX(path)
	default:
		return nil, fmt.Errorf("reference: unsupported file type %q", filepath.Ext(path))
	}
}

// ReadCSV decodes units from CSV with a header row.
func ReadCSV(r io.Reader) ([]models.ReferenceUnit, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	raw, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reference: failed to read header: %w", err)
	}
	header, err := canonicalHeader(raw)
	if err != nil {
		return nil, err
	}

	dec, err := csvutil.NewDecoder(reader, header...)
	if err != nil {
		return nil, fmt.Errorf("reference: failed to create decoder: %w", err)
	}

	var units []models.ReferenceUnit
	for line := 2; ; line++ {
		var rec row
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("reference: line %d: %w", line, err)
		}
		u, err := rec.unit(line)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, nil
}

// ReadXLSX reads units from the first sheet of an XLSX workbook.
func ReadXLSX(path string) ([]models.ReferenceUnit, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("reference: failed to open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("reference: failed to read sheet: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("reference: workbook has no header row")
	}

	header, err := canonicalHeader(rows[0])
	if err != nil {
		return nil, err
	}
	pos := make(map[string]int, len(header))
	for i, h := range header {
		if _, seen := pos[h]; !seen {
			pos[h] = i
		}
	}
	cell := func(cells []string, col string) string {
		if i := pos[col]; i < len(cells) {
			return cells[i]
		}
		return ""
	}

	var units []models.ReferenceUnit
	for i, cells := range rows[1:] {
		if isBlank(cells) {
			continue
		}
		rec := row{
			Province:  cell(cells, colProvince),
			City:      cell(cells, colCity),
			District:  cell(cells, colDistrict),
			Latitude:  cell(cells, colLatitude),
			Longitude: cell(cells, colLongitude),
		}
		u, err := rec.unit(i + 2)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, nil
}

// canonicalHeader maps known aliases to canonical names and gives every other column a
// unique placeholder so the decoder ignores it.
func canonicalHeader(raw []string) ([]string, error) {
	out := make([]string, len(raw))
	found := make(map[string]bool, len(required))
	for i, h := range raw {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if canon, ok := aliases[key]; ok && !found[canon] {
			out[i] = canon
			found[canon] = true
			continue
		}
		out[i] = "_" + strconv.Itoa(i)
	}
	var missing []string
	for _, col := range required {
		if !found[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("reference: missing columns: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
