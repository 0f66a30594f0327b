package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"rental-pricing/models"
	"rental-pricing/utils"
)

// propertyMetricsQuery aggregates live properties: average contract rent,
// peak occupancy and average stay in months over non-cancelled contracts.
const propertyMetricsQuery = `
	SELECT
		p.id::text,
		p.property_name,
		COALESCE(p.city, ''),
		COALESCE(p.locality, ''),
		p.total_opex,
		ROUND(AVG(c.rent)) AS avg_rent,
		MAX(o.occupancy_ratio) AS occupancy_ratio,
		ROUND(AVG(
			EXTRACT(YEAR FROM AGE(c.end_date, c.start_date)) * 12 +
			EXTRACT(MONTH FROM AGE(c.end_date, c.start_date))
		), 2) AS months_of_stay
	FROM resident_property p
	JOIN resident_admindashboardoccupancy o ON p.id = o.property_id
	LEFT JOIN resident_contract c ON p.id = c.property_id
	WHERE p.status = 'live'
	  AND c.status != 'cancelled'
	GROUP BY p.id
	ORDER BY p.id
`

const recommendationColumns = 10

// PostgresStore reads property metrics and persists recommendations.
type PostgresStore struct {
	db     *sql.DB
	logger *utils.Logger
}

// NewPostgresStore opens a connection to PostgreSQL, waits for it to answer
// using retry, runs schema migrations, and returns a ready-to-use store.
func NewPostgresStore(ctx context.Context, dsn string, retry utils.RetryConfig, logger *utils.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	if retry.Logger == nil {
		retry.Logger = logger
	}
	if err := retry.Do(ctx, "postgres ping", func() error {
		return db.PingContext(ctx)
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	ps := &PostgresStore{db: db, logger: logger}
	if err := ps.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return ps, nil
}

func (ps *PostgresStore) migrate(ctx context.Context) error {
	_, err := ps.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS price_recommendations (
			id                   SERIAL PRIMARY KEY,
			run_id               UUID          NOT NULL,
			property_id          TEXT          NOT NULL,
			cluster              INTEGER       NOT NULL,
			recommended_price    NUMERIC(12,2) NOT NULL,
			pricing_options      INTEGER[]     NOT NULL,
			applied_rules        TEXT[]        NOT NULL DEFAULT '{}',
			furnished_price      NUMERIC(12,2),
			semi_furnished_price NUMERIC(12,2),
			unfurnished_price    NUMERIC(12,2),
			anomaly              BOOLEAN       NOT NULL DEFAULT FALSE,
			created_at           TIMESTAMPTZ   NOT NULL DEFAULT NOW(),
			UNIQUE (run_id, property_id)
		);

		CREATE INDEX IF NOT EXISTS idx_price_recommendations_run     ON price_recommendations(run_id);
		CREATE INDEX IF NOT EXISTS idx_price_recommendations_cluster ON price_recommendations(cluster);
	`)
	return err
}

// FetchPropertyMetrics returns the operating metrics of every live property.
func (ps *PostgresStore) FetchPropertyMetrics(ctx context.Context) ([]models.PropertyMetrics, error) {
	rows, err := ps.db.QueryContext(ctx, propertyMetricsQuery)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch metrics: %w", err)
	}
	defer rows.Close()

	var out []models.PropertyMetrics
	for rows.Next() {
		var (
			m                           models.PropertyMetrics
			opex, rent, occupancy, stay sql.NullFloat64
		)
		if err := rows.Scan(&m.PropertyID, &m.PropertyName, &m.City, &m.Locality,
			&opex, &rent, &occupancy, &stay); err != nil {
			return nil, fmt.Errorf("postgres: scan metrics row: %w", err)
		}
		m.TotalOpex = fromNull(opex)
		m.AvgRent = fromNull(rent)
		m.OccupancyRatio = fromNull(occupancy)
		m.MonthsOfStay = fromNull(stay)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: fetch metrics: %w", err)
	}

	ps.logger.Info("[postgres] Fetched metrics for %d live properties", len(out))
	return out, nil
}

// WriteRecommendations batch-inserts recs under runID in one transaction.
// Re-writing the same run replaces its rows.
func (ps *PostgresStore) WriteRecommendations(ctx context.Context, runID string, recs []models.Recommendation) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := ps.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM price_recommendations WHERE run_id = $1", runID); err != nil {
		return fmt.Errorf("postgres: clear run: %w", err)
	}

	const batchSize = 50
	for i := 0; i < len(recs); i += batchSize {
		end := min(i+batchSize, len(recs))
		query, args := buildRecommendationInsert(runID, recs[i:end])
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("postgres: insert batch %d: %w", i/batchSize, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	ps.logger.Info("[postgres] Stored %d recommendations for run %s", len(recs), runID)
	return nil
}

func buildRecommendationInsert(runID string, batch []models.Recommendation) (string, []interface{}) {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*recommendationColumns)

	for idx, r := range batch {
		base := idx * recommendationColumns
		placeholders := make([]string, recommendationColumns)
		for k := range placeholders {
			placeholders[k] = fmt.Sprintf("$%d", base+k+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")

		tiers := make([]int64, len(r.Tiers))
		for k, t := range r.Tiers {
			tiers[k] = int64(t)
		}
		rules := r.AppliedRules
		if rules == nil {
			rules = []string{}
		}
		valueArgs = append(valueArgs,
			runID, r.PropertyID, r.Group, r.RecommendedPrice,
			pq.Array(tiers), pq.Array(rules),
			toNull(r.Reference.Furnished), toNull(r.Reference.SemiFurnished), toNull(r.Reference.Unfurnished),
			r.Anomaly)
	}

	query := fmt.Sprintf(`
		INSERT INTO price_recommendations
			(run_id, property_id, cluster, recommended_price, pricing_options, applied_rules,
			 furnished_price, semi_furnished_price, unfurnished_price, anomaly)
		VALUES %s
	`, strings.Join(valueStrings, ","))
	return query, valueArgs
}

// Close releases the connection pool.
func (ps *PostgresStore) Close() error {
	return ps.db.Close()
}

func fromNull(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return models.Float(v.Float64)
}

func toNull(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
