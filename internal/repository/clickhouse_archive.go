package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ChainWatch/internal/domain/models"

	"github.com/shopspring/decimal"
)

// OpportunityArchive persists terminal opportunities to ClickHouse so the
// process never holds them in memory past execution.
type OpportunityArchive struct {
	db    *sql.DB
	table string
}

// NewOpportunityArchive creates an archive over an existing connection
// pool. table must be fully qualified (database.table).
func NewOpportunityArchive(db *sql.DB, table string) *OpportunityArchive {
	return &OpportunityArchive{db: db, table: table}
}

// Schema returns the idempotent DDL for the archive table.
func Schema(database, table string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
			id String,
			category String,
			source_record_id String,
			estimated_value Decimal64(9),
			cost Decimal64(9),
			profit Decimal64(9),
			succeeded UInt8,
			detected_at DateTime64(3),
			executed_at DateTime64(3)
		) ENGINE=MergeTree ORDER BY (category, executed_at)`, database, table),
	}
}

// Store inserts one terminal opportunity.
func (a *OpportunityArchive) Store(ctx context.Context, opp *models.Opportunity, profit decimal.Decimal, ok bool) error {
	succeeded := uint8(0)
	if ok {
		succeeded = 1
	}
	q := fmt.Sprintf(
		"INSERT INTO %s (id, category, source_record_id, estimated_value, cost, profit, succeeded, detected_at, executed_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		a.table,
	)
	_, err := a.db.ExecContext(ctx, q,
		opp.ID,
		string(opp.Category),
		opp.SourceRecordID,
		opp.EstimatedValue,
		opp.Cost,
		profit,
		succeeded,
		opp.DetectedAt,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("archive insert: %w", err)
	}
	return nil
}

// Query returns archived opportunities for a category inside [from, to],
// newest first. An empty category matches all.
func (a *OpportunityArchive) Query(ctx context.Context, category models.Category, from, to time.Time, limit int) ([]*models.ArchivedOpportunity, error) {
	if limit <= 0 {
		limit = 100
	}

	q := fmt.Sprintf(
		"SELECT id, category, source_record_id, estimated_value, cost, profit, succeeded, detected_at, executed_at FROM %s WHERE executed_at BETWEEN ? AND ?",
		a.table,
	)
	args := []any{from, to}
	if category != "" {
		q += " AND category = ?"
		args = append(args, string(category))
	}
	q += " ORDER BY executed_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := a.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("archive query: %w", err)
	}
	defer rows.Close()

	var out []*models.ArchivedOpportunity
	for rows.Next() {
		var (
			rec       models.ArchivedOpportunity
			cat       string
			succeeded uint8
		)
		if err := rows.Scan(
			&rec.ID, &cat, &rec.SourceRecordID,
			&rec.EstimatedValue, &rec.Cost, &rec.Profit,
			&succeeded, &rec.DetectedAt, &rec.ExecutedAt,
		); err != nil {
			return nil, fmt.Errorf("archive scan: %w", err)
		}
		rec.Category = models.Category(cat)
		rec.Succeeded = succeeded == 1
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// Close is a no-op; the connection pool is owned by the client.
func (a *OpportunityArchive) Close() error { return nil }
