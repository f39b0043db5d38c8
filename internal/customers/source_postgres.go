package customers

import (
	"context"
	"database/sql"
	"fmt"

	"listscreen/internal/domain"
)

// PostgresSource reads the customer projection table. Batches walk the
// population in stable customer_id order so a resumed run sees the same
// sequence it saw before the interruption.
type PostgresSource struct {
	db *sql.DB
}

func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

func (s *PostgresSource) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM customer_identities`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count customers: %w", err)
	}
	return n, nil
}

func (s *PostgresSource) NextBatch(ctx context.Context, offset, limit int) ([]domain.CustomerIdentity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT customer_id, display_name, address, city, country
		FROM customer_identities
		ORDER BY customer_id
		OFFSET $1 LIMIT $2
	`, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("query customer batch: %w", err)
	}
	defer rows.Close()

	var batch []domain.CustomerIdentity
	for rows.Next() {
		var c domain.CustomerIdentity
		if err := rows.Scan(&c.CustomerID, &c.DisplayName, &c.Address, &c.City, &c.Country); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		batch = append(batch, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate customers: %w", err)
	}
	return batch, nil
}
