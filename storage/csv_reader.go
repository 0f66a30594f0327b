package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"rental-pricing/models"
)

// ReadRawListings loads every raw listing CSV matching pattern, in file
// name order. Files must carry the header written by CSVWriter.
func ReadRawListings(pattern string) ([]*models.RawListing, error) {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("csv: glob %q: %w", pattern, err)
	}
	sort.Strings(paths)

	var out []*models.RawListing
	for _, p := range paths {
		listings, err := readRawFile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, listings...)
	}
	return out, nil
}

func readRawFile(path string) ([]*models.RawListing, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %q: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("csv: read header of %q: %w", path, err)
	}
	col := headerIndex(header)
	for _, name := range rawListingHeader {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("csv: %q: missing column %q", path, name)
		}
	}

	var out []*models.RawListing
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: %q line %d: %w", path, line, err)
		}
		l := &models.RawListing{
			City:       rec[col["city"]],
			Locality:   rec[col["locality"]],
			Title:      rec[col["title"]],
			RawPrice:   rec[col["raw_price"]],
			Furnishing: rec[col["furnishing"]],
			URL:        rec[col["url"]],
		}
		if ts := rec[col["scraped_at"]]; ts != "" {
			if t, err := time.Parse(time.RFC3339, ts); err == nil {
				l.ScrapedAt = t
			}
		}
		out = append(out, l)
	}
	return out, nil
}

var metricsHeader = []string{
	"property_id", "property_name", "city", "locality",
	"total_opex", "avg_rent", "occupancy_ratio", "months_of_stay",
}

// CSVMetricsSource reads property metrics from a CSV export with the same
// columns the database query returns. Empty cells are missing values.
type CSVMetricsSource struct {
	Path string
}

// FetchPropertyMetrics implements MetricsSource.
func (s CSVMetricsSource) FetchPropertyMetrics(_ context.Context) ([]models.PropertyMetrics, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %q: %w", s.Path, err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv: read %q: %w", s.Path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("csv: %q is empty", s.Path)
	}

	col := headerIndex(rows[0])
	for _, name := range metricsHeader {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("csv: %q: missing column %q", s.Path, name)
		}
	}

	out := make([]models.PropertyMetrics, 0, len(rows)-1)
	for line, rec := range rows[1:] {
		m := models.PropertyMetrics{
			PropertyID:   rec[col["property_id"]],
			PropertyName: rec[col["property_name"]],
			City:         rec[col["city"]],
			Locality:     rec[col["locality"]],
		}
		targets := []struct {
			name string
			dst  **float64
		}{
			{"total_opex", &m.TotalOpex},
			{"avg_rent", &m.AvgRent},
			{"occupancy_ratio", &m.OccupancyRatio},
			{"months_of_stay", &m.MonthsOfStay},
		}
		for _, t := range targets {
			v, err := parseOptional(rec[col[t.name]])
			if err != nil {
				return nil, fmt.Errorf("csv: %q line %d: %s: %w", s.Path, line+2, t.name, err)
			}
			*t.dst = v
		}
		out = append(out, m)
	}
	return out, nil
}

func parseOptional(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// headerIndex maps trimmed column names to their position. A leading
// byte-order mark on the first column is ignored.
func headerIndex(header []string) map[string]int {
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	return col
}
