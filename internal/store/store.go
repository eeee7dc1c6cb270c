// Package store persists DbRows, rate-limit rows, and slug-mapping rows
// against the working/production Postgres tables. It implements the
// Store interface two ways: PostgresStore (database/sql + lib/pq) for
// production, and Fake (in-memory) for tests.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aicatalog/cpe/internal/catalog"
	_ "github.com/lib/pq"
)

// SlugRow is one (inference_provider, provider_slug) pair read from the
// working table for the mapping refresher.
type SlugRow struct {
	InferenceProvider string
	ProviderSlug      string
}

// Store is the persistence surface the sync (C9), mapping (C10),
// comparator (C11), and promoter (C12) stages share.
type Store interface {
	WorkingSliceCount(ctx context.Context, provider string) (int, error)
	BackupWorkingSlice(ctx context.Context, provider string) ([]catalog.DbRow, error)
	DeleteWorkingSlice(ctx context.Context, provider string) error
	InsertWorkingRows(ctx context.Context, rows []catalog.DbRow, batchSize int) error
	ReadWorkingSlice(ctx context.Context, provider string) ([]catalog.DbRow, error)

	UpsertRateLimits(ctx context.Context, rows []catalog.RateLimitRow) error

	ReadProviderSlugs(ctx context.Context, provider string) ([]SlugRow, error)
	ReadAASlugs(ctx context.Context) ([]string, error)
	UpsertMapping(ctx context.Context, row catalog.MappingRow) error

	ProductionSliceCount(ctx context.Context, provider string) (int, error)
	BackupProductionSlice(ctx context.Context, provider string) ([]catalog.DbRow, error)
	PromoteSlice(ctx context.Context, provider string, rows []catalog.DbRow) error

	Ping(ctx context.Context) error
	Close() error
}

// workingColumns is the schema's column order for working_version and
// ai_models_main, excluding the database-assigned id.
var workingColumns = []string{
	"inference_provider", "model_provider", "human_readable_name", "provider_slug",
	"model_provider_country", "official_url", "input_modalities", "output_modalities",
	"license_info_text", "license_info_url", "license_name", "license_url",
	"rate_limits", "provider_api_access", "created_at", "updated_at",
}

// PostgresConfig mirrors the teacher's connection-pool knobs.
type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// PostgresStore is the production Store backed by database/sql and
// github.com/lib/pq.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens and pings a connection pool against cfg.DSN.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *PostgresStore) Close() error                   { return s.db.Close() }

func (s *PostgresStore) WorkingSliceCount(ctx context.Context, provider string) (int, error) {
	return s.sliceCount(ctx, "working_version", provider)
}

func (s *PostgresStore) ProductionSliceCount(ctx context.Context, provider string) (int, error) {
	return s.sliceCount(ctx, "ai_models_main", provider)
}

func (s *PostgresStore) sliceCount(ctx context.Context, table, provider string) (int, error) {
	var n int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE inference_provider = $1`, table)
	if err := s.db.QueryRowContext(ctx, query, provider).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s slice: %w", table, err)
	}
	return n, nil
}

func (s *PostgresStore) BackupWorkingSlice(ctx context.Context, provider string) ([]catalog.DbRow, error) {
	return s.readSlice(ctx, "working_version", provider)
}

func (s *PostgresStore) BackupProductionSlice(ctx context.Context, provider string) ([]catalog.DbRow, error) {
	return s.readSlice(ctx, "ai_models_main", provider)
}

func (s *PostgresStore) ReadWorkingSlice(ctx context.Context, provider string) ([]catalog.DbRow, error) {
	return s.readSlice(ctx, "working_version", provider)
}

func (s *PostgresStore) readSlice(ctx context.Context, table, provider string) ([]catalog.DbRow, error) {
	query := fmt.Sprintf(`SELECT id, %s FROM %s WHERE inference_provider = $1`, strings.Join(workingColumns, ", "), table)
	rows, err := s.db.QueryContext(ctx, query, provider)
	if err != nil {
		return nil, fmt.Errorf("read %s slice: %w", table, err)
	}
	defer rows.Close()

	var out []catalog.DbRow
	for rows.Next() {
		var r catalog.DbRow
		if err := rows.Scan(
			&r.ID, &r.InferenceProvider, &r.ModelProvider, &r.HumanReadableName, &r.ProviderSlug,
			&r.ModelProviderCountry, &r.OfficialURL, &r.InputModalities, &r.OutputModalities,
			&r.LicenseInfoText, &r.LicenseInfoURL, &r.LicenseName, &r.LicenseURL,
			&r.RateLimits, &r.ProviderAPIAccess, &r.CreatedAt, &r.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", table, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteWorkingSlice(ctx context.Context, provider string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM working_version WHERE inference_provider = $1`, provider)
	if err != nil {
		return fmt.Errorf("delete working slice: %w", err)
	}
	return nil
}

// InsertWorkingRows inserts rows in batches of batchSize, each batch as a
// single parameterized INSERT and its own transaction, per the sync
// protocol's step 6.
func (s *PostgresStore) InsertWorkingRows(ctx context.Context, rows []catalog.DbRow, batchSize int) error {
	return insertBatches(ctx, s.db, "working_version", rows, batchSize)
}

// PromoteSlice deletes the production slice and inserts rows in one
// batch transaction path, reusing the same batched-insert helper.
func (s *PostgresStore) PromoteSlice(ctx context.Context, provider string, rows []catalog.DbRow) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM ai_models_main WHERE inference_provider = $1`, provider); err != nil {
		return fmt.Errorf("delete production slice: %w", err)
	}
	return insertBatches(ctx, s.db, "ai_models_main", rows, 100)
}

func insertBatches(ctx context.Context, db *sql.DB, table string, rows []catalog.DbRow, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 100
	}
	for start := 0; start < len(rows); start += batchSize {
		end := start + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := insertBatch(ctx, db, table, rows[start:end]); err != nil {
			return fmt.Errorf("insert batch [%d:%d) into %s: %w", start, end, table, err)
		}
	}
	return nil
}

func insertBatch(ctx context.Context, db *sql.DB, table string, batch []catalog.DbRow) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var placeholders []string
	var args []any
	for i, r := range batch {
		base := i * len(workingColumns)
		ph := make([]string, len(workingColumns))
		for j := range workingColumns {
			ph[j] = fmt.Sprintf("$%d", base+j+1)
		}
		placeholders = append(placeholders, "("+strings.Join(ph, ", ")+")")
		args = append(args,
			r.InferenceProvider, r.ModelProvider, r.HumanReadableName, r.ProviderSlug,
			r.ModelProviderCountry, r.OfficialURL, r.InputModalities, r.OutputModalities,
			r.LicenseInfoText, r.LicenseInfoURL, r.LicenseName, r.LicenseURL,
			r.RateLimits, r.ProviderAPIAccess, r.CreatedAt, r.UpdatedAt,
		)
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES %s`, table, strings.Join(workingColumns, ", "), strings.Join(placeholders, ", "))
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PostgresStore) UpsertRateLimits(ctx context.Context, rows []catalog.RateLimitRow) error {
	for _, r := range rows {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO "30_rate_limits" (human_readable_name, inference_provider, rpm, rpd, tpm, tpd, raw_string, parseable, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
			ON CONFLICT (human_readable_name) DO UPDATE SET
				inference_provider = EXCLUDED.inference_provider,
				rpm = EXCLUDED.rpm, rpd = EXCLUDED.rpd, tpm = EXCLUDED.tpm, tpd = EXCLUDED.tpd,
				raw_string = EXCLUDED.raw_string, parseable = EXCLUDED.parseable, updated_at = now()`,
			r.HumanReadableName, r.InferenceProvider, r.RPM, r.RPD, r.TPM, r.TPD, r.RawString, r.Parseable)
		if err != nil {
			return fmt.Errorf("upsert rate limit for %s: %w", r.HumanReadableName, err)
		}
	}
	return nil
}

func (s *PostgresStore) ReadProviderSlugs(ctx context.Context, provider string) ([]SlugRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT inference_provider, provider_slug FROM working_version WHERE inference_provider = $1`, provider)
	if err != nil {
		return nil, fmt.Errorf("read provider slugs: %w", err)
	}
	defer rows.Close()

	var out []SlugRow
	for rows.Next() {
		var r SlugRow
		if err := rows.Scan(&r.InferenceProvider, &r.ProviderSlug); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ReadAASlugs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT aa_slug FROM "10_model_aa_mapping"`)
	if err != nil {
		return nil, fmt.Errorf("read aa slugs: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, err
		}
		out = append(out, slug)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpsertMapping(ctx context.Context, row catalog.MappingRow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO "10_model_aa_mapping" (inference_provider, provider_slug, aa_slug, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (inference_provider, provider_slug) DO UPDATE SET
			aa_slug = EXCLUDED.aa_slug, updated_at = EXCLUDED.updated_at`,
		row.InferenceProvider, row.ProviderSlugNormalized, row.AASlug, row.CreatedAt, row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert mapping for %s/%s: %w", row.InferenceProvider, row.ProviderSlugNormalized, err)
	}
	return nil
}

var _ Store = (*PostgresStore)(nil)
