package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ensureSchema creates missing tables on startup so a fresh database is
// usable without a separate migration step.
func ensureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			password TEXT NOT NULL,
			role TEXT NOT NULL CHECK (role IN ('buyer', 'freelancer', 'admin')),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS profiles (
			user_id UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			display_name TEXT NOT NULL DEFAULT '',
			rating NUMERIC(4,2) NOT NULL DEFAULT 0,
			total_reviews INTEGER NOT NULL DEFAULT 0,
			total_earnings NUMERIC(12,2) NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS jobs (
			id UUID PRIMARY KEY,
			buyer_id UUID NOT NULL REFERENCES users(id),
			category TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			budget NUMERIC(12,2) NOT NULL,
			currency TEXT NOT NULL DEFAULT 'USD',
			budget_type TEXT NOT NULL CHECK (budget_type IN ('fixed', 'hourly')),
			status TEXT NOT NULL DEFAULT 'posted' CHECK (status IN
				('posted', 'bidding', 'hired', 'in_progress', 'completed', 'cancelled', 'disputed')),
			hired_freelancer_id UUID NULL REFERENCES users(id),
			bids_count INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS bids (
			id UUID PRIMARY KEY,
			job_id UUID NOT NULL REFERENCES jobs(id),
			freelancer_id UUID NOT NULL REFERENCES users(id),
			amount NUMERIC(12,2) NOT NULL,
			currency TEXT NOT NULL DEFAULT 'USD',
			delivery_days INTEGER NOT NULL,
			proposal TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN
				('pending', 'accepted', 'rejected', 'withdrawn')),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (job_id, freelancer_id)
		)`,
		`CREATE TABLE IF NOT EXISTS contracts (
			id UUID PRIMARY KEY,
			job_id UUID NOT NULL UNIQUE REFERENCES jobs(id),
			buyer_id UUID NOT NULL REFERENCES users(id),
			freelancer_id UUID NOT NULL REFERENCES users(id),
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			total_amount NUMERIC(12,2) NOT NULL,
			currency TEXT NOT NULL DEFAULT 'USD',
			platform_fee NUMERIC(12,2) NOT NULL,
			freelancer_amount NUMERIC(12,2) NOT NULL,
			contract_type TEXT NOT NULL CHECK (contract_type IN ('fixed', 'hourly')),
			status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN
				('pending', 'active', 'completed', 'cancelled', 'disputed')),
			payment_status TEXT NOT NULL DEFAULT 'pending' CHECK (payment_status IN
				('pending', 'escrowed', 'released', 'refunded')),
			escrow_amount NUMERIC(12,2) NOT NULL DEFAULT 0,
			completed_date TIMESTAMPTZ NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS milestones (
			id UUID PRIMARY KEY,
			contract_id UUID NOT NULL REFERENCES contracts(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			amount NUMERIC(12,2) NOT NULL,
			currency TEXT NOT NULL DEFAULT 'USD',
			due_date TIMESTAMPTZ NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN
				('pending', 'in_progress', 'completed', 'approved', 'rejected')),
			completed_date TIMESTAMPTZ NULL,
			sort_order INTEGER NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (contract_id, sort_order)
		)`,
		`CREATE TABLE IF NOT EXISTS payments (
			id UUID PRIMARY KEY,
			contract_id UUID NULL REFERENCES contracts(id),
			payer_id UUID NOT NULL REFERENCES users(id),
			receiver_id UUID NOT NULL REFERENCES users(id),
			amount NUMERIC(12,2) NOT NULL,
			currency TEXT NOT NULL DEFAULT 'USD',
			platform_fee NUMERIC(12,2) NOT NULL DEFAULT 0,
			method TEXT NOT NULL,
			gateway TEXT NULL,
			transaction_id TEXT NULL UNIQUE,
			status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN
				('pending', 'processing', 'completed', 'failed', 'refunded', 'cancelled')),
			payment_type TEXT NOT NULL CHECK (payment_type IN
				('escrow', 'milestone', 'withdrawal', 'deposit', 'refund')),
			metadata JSONB NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id),
			payment_id UUID NULL REFERENCES payments(id),
			type TEXT NOT NULL CHECK (type IN ('credit', 'debit')),
			amount NUMERIC(12,2) NOT NULL,
			currency TEXT NOT NULL DEFAULT 'USD',
			balance NUMERIC(12,2) NOT NULL,
			description TEXT NULL,
			status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN
				('pending', 'completed', 'failed', 'cancelled')),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_user_currency
			ON transactions(user_id, currency, type, status)`,
		`CREATE TABLE IF NOT EXISTS reviews (
			id UUID PRIMARY KEY,
			contract_id UUID NOT NULL REFERENCES contracts(id),
			reviewer_id UUID NOT NULL REFERENCES users(id),
			reviewee_id UUID NOT NULL REFERENCES users(id),
			rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
			comment TEXT NULL,
			categories JSONB NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (contract_id, reviewer_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reviews_reviewee ON reviews(reviewee_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bids_job ON bids(job_id)`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
