package storage

import (
	"database/sql"

	"github.com/rl1809/benefit-transfer/internal/port"
)

const mysqlSchema = `
CREATE TABLE IF NOT EXISTS benefits (
	id          VARCHAR(36)   NOT NULL PRIMARY KEY,
	name        VARCHAR(255)  NOT NULL,
	description TEXT          NOT NULL,
	value       DECIMAL(19,2) NOT NULL DEFAULT 0,
	active      BOOLEAN       NOT NULL DEFAULT TRUE,
	version     BIGINT        NOT NULL DEFAULT 0,
	created_at  DATETIME(6)   NOT NULL,
	updated_at  DATETIME(6)   NOT NULL,
	CONSTRAINT chk_benefits_value CHECK (value >= 0)
)`

// MySQLAdapter needs a DSN with parseTime=true so DATETIME columns scan into
// time.Time.
type MySQLAdapter struct {
	sqlAdapter
}

var _ port.BenefitRepository = (*MySQLAdapter)(nil)

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{sqlAdapter{
		db:      db,
		dialect: dialect{name: "mysql", schema: mysqlSchema, scale: 2},
	}}
}
