package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"rental-pricing/models"
)

var rawListingHeader = []string{
	"city", "locality", "title", "raw_price", "furnishing", "url", "scraped_at",
}

var recommendationHeader = []string{
	"property_id", "cluster", "recommended_price", "pricing_options",
	"furnished_price", "semi_furnished_price", "unfurnished_price", "anomaly",
}

// CSVWriter writes raw (uncleaned) listings to a CSV file.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	f, w, err := createCSV(path, rawListingHeader)
	if err != nil {
		return nil, err
	}
	return &CSVWriter{file: f, writer: w}, nil
}

// WriteRaw appends raw listings to the CSV file.
func (c *CSVWriter) WriteRaw(listings []*models.RawListing) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, l := range listings {
		row := []string{
			l.City,
			l.Locality,
			l.Title,
			l.RawPrice,
			l.Furnishing,
			l.URL,
			l.ScrapedAt.Format(time.RFC3339),
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}

// RecommendationCSVWriter writes one row per priced property.
type RecommendationCSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewRecommendationCSVWriter creates (or truncates) the output file and
// writes the header row.
func NewRecommendationCSVWriter(path string) (*RecommendationCSVWriter, error) {
	f, w, err := createCSV(path, recommendationHeader)
	if err != nil {
		return nil, err
	}
	return &RecommendationCSVWriter{file: f, writer: w}, nil
}

// WriteRecommendations appends recs. The run id is not part of the CSV layout.
func (c *RecommendationCSVWriter) WriteRecommendations(_ context.Context, _ string, recs []models.Recommendation) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range recs {
		row := []string{
			r.PropertyID,
			strconv.Itoa(r.Group),
			strconv.FormatFloat(r.RecommendedPrice, 'f', 2, 64),
			formatTiers(r.Tiers),
			formatOptional(r.Reference.Furnished),
			formatOptional(r.Reference.SemiFurnished),
			formatOptional(r.Reference.Unfurnished),
			strconv.FormatBool(r.Anomaly),
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *RecommendationCSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}

func createCSV(path string, header []string) (*os.File, *csv.Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()
	return f, w, nil
}

// formatTiers renders tiers as "[2169, 2074]".
func formatTiers(tiers []int) string {
	parts := make([]string, len(tiers))
	for i, t := range tiers {
		parts[i] = strconv.Itoa(t)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
