package database

import (
	"database/sql"
	"fmt"
	"log"
)

// schemaStatements bootstrap the persisted state: one campaign row per slug,
// one donation row per event foreign-keyed to its campaign, one operator row
// per admin login. The donations.seq bigserial gives every event a strictly
// increasing insertion sequence used for deterministic ordering and client
// diffing.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS operators (
		id UUID PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS campaigns (
		id UUID PRIMARY KEY,
		owner_id UUID REFERENCES operators(id),
		slug TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		sub_title TEXT NOT NULL DEFAULT '',
		target_amount BIGINT NOT NULL DEFAULT 0,
		ledger_total BIGINT NOT NULL DEFAULT 0,
		manual_offset BIGINT NOT NULL DEFAULT 0,
		currency TEXT NOT NULL DEFAULT 'ILS',
		theme_color TEXT NOT NULL DEFAULT '#6366f1',
		logo_url TEXT NOT NULL DEFAULT '',
		banner_url TEXT NOT NULL DEFAULT '',
		donation_methods JSONB,
		display_settings JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS donations (
		id UUID PRIMARY KEY,
		campaign_id UUID NOT NULL REFERENCES campaigns(id) ON DELETE CASCADE,
		seq BIGSERIAL,
		donor_name TEXT NOT NULL,
		amount BIGINT NOT NULL CHECK (amount > 0),
		dedication TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_donations_campaign_order
		ON donations (campaign_id, created_at DESC, seq DESC)`,
}

// EnsureSchema creates the tables and indexes if they do not exist
func EnsureSchema(db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("error applying schema: %w", err)
		}
	}

	log.Println("Database schema ensured")
	return nil
}
