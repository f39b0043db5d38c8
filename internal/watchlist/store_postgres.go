package watchlist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"listscreen/internal/domain"
)

// PostgresStore persists snapshots in two tables. Publish runs in one
// transaction: the entry rows, the snapshot row, and the current-pointer flip
// all land together, so readers either see the prior snapshot or the complete
// new one.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Publish(ctx context.Context, snap *domain.WatchlistSnapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin publish tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// Re-publishing the same list date replaces its entries wholesale. The
	// old rows must go before the snapshot upsert can move the row to a new
	// id, or they would still reference the old one.
	if _, err = tx.ExecContext(ctx, `
		DELETE FROM watchlist_entries WHERE list_date = $1
	`, snap.ListDate.String()); err != nil {
		return fmt.Errorf("clear prior entries: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO watchlist_snapshots (id, list_date, checksum, ingested_at, entry_count, is_current)
		VALUES ($1, $2, $3, $4, $5, false)
		ON CONFLICT (list_date) DO UPDATE SET
			id = EXCLUDED.id,
			checksum = EXCLUDED.checksum,
			ingested_at = EXCLUDED.ingested_at,
			entry_count = EXCLUDED.entry_count
	`, snap.ID, snap.ListDate.String(), snap.Checksum, snap.IngestedAt, snap.EntryCount)
	if err != nil {
		return fmt.Errorf("insert snapshot row: %w", err)
	}

	insert, err := tx.PrepareContext(ctx, `
		INSERT INTO watchlist_entries (
			id, snapshot_id, list_date,
			primary_name, alternate_names, street, city, country, category, remarks,
			normalized_name, normalized_alt_names, normalized_street, normalized_city, normalized_country
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`)
	if err != nil {
		return fmt.Errorf("prepare entry insert: %w", err)
	}
	defer insert.Close()

	for _, e := range snap.Entries {
		if _, err = insert.ExecContext(ctx,
			e.ID, snap.ID, snap.ListDate.String(),
			e.PrimaryName, textArray(e.AlternateNames), e.Street, e.City, e.Country, string(e.Category), e.Remarks,
			e.NormalizedName, textArray(e.NormalizedAltNames), e.NormalizedStreet, e.NormalizedCity, e.NormalizedCountry,
		); err != nil {
			return fmt.Errorf("insert entry %s: %w", e.ID, err)
		}
	}

	// Atomic pointer swap.
	if _, err = tx.ExecContext(ctx, `UPDATE watchlist_snapshots SET is_current = false WHERE is_current`); err != nil {
		return fmt.Errorf("clear current flag: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `UPDATE watchlist_snapshots SET is_current = true WHERE id = $1`, snap.ID); err != nil {
		return fmt.Errorf("set current flag: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit publish tx: %w", err)
	}
	return nil
}

// textArray maps a nil slice to an empty array; the columns are NOT NULL.
func textArray(v []string) any {
	if v == nil {
		v = []string{}
	}
	return pq.Array(v)
}

func (s *PostgresStore) Current(ctx context.Context) (*domain.WatchlistSnapshot, error) {
	return s.loadSnapshot(ctx, `
		SELECT id, list_date::text, checksum, ingested_at, entry_count
		FROM watchlist_snapshots WHERE is_current
	`)
}

func (s *PostgresStore) ByListDate(ctx context.Context, date domain.ListDate) (*domain.WatchlistSnapshot, error) {
	return s.loadSnapshot(ctx, `
		SELECT id, list_date::text, checksum, ingested_at, entry_count
		FROM watchlist_snapshots WHERE list_date = $1::date
	`, date.String())
}

func (s *PostgresStore) loadSnapshot(ctx context.Context, query string, args ...any) (*domain.WatchlistSnapshot, error) {
	var (
		snap     domain.WatchlistSnapshot
		listDate string
	)
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&snap.ID, &listDate, &snap.Checksum, &snap.IngestedAt, &snap.EntryCount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	snap.ListDate = domain.ListDate(listDate)

	snap.Entries, err = s.loadEntries(ctx, snap.ID)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *PostgresStore) loadEntries(ctx context.Context, snapshotID string) ([]domain.WatchlistEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, primary_name, alternate_names, street, city, country, category, remarks,
		       normalized_name, normalized_alt_names, normalized_street, normalized_city, normalized_country
		FROM watchlist_entries
		WHERE snapshot_id = $1
	`, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.WatchlistEntry
	for rows.Next() {
		var (
			e        domain.WatchlistEntry
			category string
		)
		if err := rows.Scan(
			&e.ID, &e.PrimaryName, pq.Array(&e.AlternateNames), &e.Street, &e.City, &e.Country, &category, &e.Remarks,
			&e.NormalizedName, pq.Array(&e.NormalizedAltNames), &e.NormalizedStreet, &e.NormalizedCity, &e.NormalizedCountry,
		); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Category = domain.EntryCategory(category)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}
