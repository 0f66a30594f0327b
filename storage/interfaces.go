package storage

import (
	"context"

	"rental-pricing/models"
)

// RawListingWriter is the interface for persisting unprocessed scraped data.
type RawListingWriter interface {
	WriteRaw(listings []*models.RawListing) error
	Close() error
}

// RecommendationWriter is the interface any recommendation sink must satisfy.
type RecommendationWriter interface {
	WriteRecommendations(ctx context.Context, runID string, recs []models.Recommendation) error
	Close() error
}

// MetricsSource supplies per-property operating metrics.
type MetricsSource interface {
	FetchPropertyMetrics(ctx context.Context) ([]models.PropertyMetrics, error)
}
