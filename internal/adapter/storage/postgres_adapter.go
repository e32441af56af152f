package storage

import (
	"database/sql"

	"github.com/rl1809/benefit-transfer/internal/port"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS benefits (
	id          VARCHAR(36)   PRIMARY KEY,
	name        VARCHAR(255)  NOT NULL,
	description TEXT          NOT NULL,
	value       NUMERIC(19,2) NOT NULL DEFAULT 0 CHECK (value >= 0),
	active      BOOLEAN       NOT NULL DEFAULT TRUE,
	version     BIGINT        NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ   NOT NULL,
	updated_at  TIMESTAMPTZ   NOT NULL
)`

type PostgresAdapter struct {
	sqlAdapter
}

var _ port.BenefitRepository = (*PostgresAdapter)(nil)

func NewPostgresAdapter(db *sql.DB) *PostgresAdapter {
	return &PostgresAdapter{sqlAdapter{
		db:      db,
		dialect: dialect{name: "postgres", schema: postgresSchema, numbered: true, scale: 2},
	}}
}
