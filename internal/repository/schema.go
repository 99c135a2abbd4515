package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	display_name TEXT NOT NULL DEFAULT '',
	role TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS forms (
	id UUID PRIMARY KEY,
	form_type TEXT NOT NULL,
	title TEXT NOT NULL,
	submitted_by UUID NOT NULL,
	submitter_email TEXT NOT NULL,
	payload JSONB,
	status TEXT NOT NULL,
	current_approver TEXT NOT NULL,
	stage_statuses JSONB NOT NULL,
	rejection_reason TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_forms_owner ON forms (submitted_by);
CREATE INDEX IF NOT EXISTS idx_forms_pending ON forms (current_approver, status);

CREATE TABLE IF NOT EXISTS form_audit (
	id UUID PRIMARY KEY,
	seq BIGSERIAL,
	form_id UUID NOT NULL REFERENCES forms(id),
	role TEXT NOT NULL,
	action TEXT NOT NULL,
	performed_by TEXT NOT NULL,
	performer_name TEXT NOT NULL DEFAULT '',
	reason TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_form_audit_form ON form_audit (form_id, seq);
`

// Migrate creates the service tables if they do not exist yet.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}
