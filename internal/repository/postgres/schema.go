package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// schema creates the billing tables. Statements are idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS customers (
		id BIGSERIAL PRIMARY KEY,
		currency TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS invoices (
		id BIGSERIAL PRIMARY KEY,
		customer_id BIGINT NOT NULL,
		amount_value NUMERIC(20, 4) NOT NULL CHECK (amount_value >= 0),
		currency TEXT NOT NULL,
		status TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS invoices_status_id_idx ON invoices (status, id)`,
	`CREATE TABLE IF NOT EXISTS failed_billings (
		id UUID PRIMARY KEY,
		invoice_id BIGINT NOT NULL REFERENCES invoices (id),
		reason TEXT NOT NULL,
		message TEXT NOT NULL,
		occurred_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS failed_billings_invoice_idx ON failed_billings (invoice_id, occurred_at)`,
	`CREATE TABLE IF NOT EXISTS billing_audit_events (
		seq BIGSERIAL PRIMARY KEY,
		id UUID NOT NULL UNIQUE,
		invoice_id BIGINT NOT NULL,
		kind TEXT NOT NULL,
		reason TEXT NOT NULL,
		message TEXT NOT NULL,
		occurred_at TIMESTAMPTZ NOT NULL,
		prev_hash TEXT NOT NULL,
		hash TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS billing_audit_events_invoice_idx ON billing_audit_events (invoice_id, seq)`,
}

// Migrate creates any missing billing tables.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
