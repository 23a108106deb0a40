package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// QueryRecord is one handled query. It never holds the answer or any
// retrieved content.
type QueryRecord struct {
	ID           int64
	Query        string
	Kind         string
	Status       int
	ArticleCount int
	Duration     time.Duration
	CreatedAt    time.Time
}

func (d *Database) RecordQuery(ctx context.Context, record QueryRecord) error {
	kind := strings.TrimSpace(record.Kind)
	if kind == "" {
		return errors.New("kind is empty")
	}

	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `insert into queries (query, kind, status, article_count, duration_ms, created_at)
	values (?, ?, ?, ?, ?, ?)`

	_, err := d.db.ExecContext(ctx, query,
		record.Query,
		kind,
		record.Status,
		record.ArticleCount,
		record.Duration.Milliseconds(),
		createdAt.UTC(),
	)

	return err
}

// RecentQueries returns up to limit records, newest first.
func (d *Database) RecentQueries(ctx context.Context, limit int) ([]QueryRecord, error) {
	query := `select id, query, kind, status, article_count, duration_ms, created_at
	from queries
	order by created_at desc, id desc
	limit ?`

	rows, err := d.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"limit", limit,
				"operation", "RecentQueries")
		}
	}()

	var records []QueryRecord
	for rows.Next() {
		var (
			r          QueryRecord
			durationMs int64
		)
		if err = rows.Scan(&r.ID, &r.Query, &r.Kind, &r.Status, &r.ArticleCount, &durationMs, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		r.Duration = time.Duration(durationMs) * time.Millisecond
		records = append(records, r)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return records, nil
}

// PruneQueries deletes records created before cutoff and reports how many
// were removed.
func (d *Database) PruneQueries(ctx context.Context, cutoff time.Time) (int64, error) {
	query := "delete from queries where created_at < ?"

	res, err := d.db.ExecContext(ctx, query, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("execute query: %w", err)
	}

	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}

	return removed, nil
}
