package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/benefit-transfer/internal/core/domain"
	"github.com/rl1809/benefit-transfer/internal/port"
)

const benefitColumns = `id, name, description, value, active, version, created_at, updated_at`

type dialect struct {
	name   string
	schema string
	// numbered placeholders ($1, $2, ...) instead of ?
	numbered bool
	// decimal places of the value column
	scale int32
}

// sqlAdapter implements port.BenefitRepository over database/sql. Queries are
// written with ? placeholders and rebound for the dialect.
type sqlAdapter struct {
	db      *sql.DB
	dialect dialect
}

func (a *sqlAdapter) q(query string) string {
	if !a.dialect.numbered {
		return query
	}

	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// EnsureSchema creates the benefits table when it does not exist yet.
func (a *sqlAdapter) EnsureSchema(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, a.dialect.schema); err != nil {
		return fmt.Errorf("ensure %s schema: %w", a.dialect.name, err)
	}
	return nil
}

// checkScale refuses values the value column would round.
func (a *sqlAdapter) checkScale(b domain.Benefit) error {
	if !b.Value.Equal(b.Value.Truncate(a.dialect.scale)) {
		return fmt.Errorf("%w: %s has more than %d decimal places", port.ErrPrecision, b.Value, a.dialect.scale)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBenefit(row rowScanner) (domain.Benefit, error) {
	var b domain.Benefit
	err := row.Scan(&b.ID, &b.Name, &b.Description, &b.Value, &b.Active, &b.Version, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

func (a *sqlAdapter) Get(ctx context.Context, id string) (*domain.Benefit, error) {
	b, err := scanBenefit(a.db.QueryRowContext(ctx, a.q(`
		SELECT `+benefitColumns+`
		FROM benefits WHERE id = ?`), id,
	))

	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query benefit: %w", err)
	}

	return &b, nil
}

func (a *sqlAdapter) List(ctx context.Context) ([]domain.Benefit, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT `+benefitColumns+`
		FROM benefits ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query benefits: %w", err)
	}
	defer rows.Close()

	benefits := make([]domain.Benefit, 0)
	for rows.Next() {
		b, err := scanBenefit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan benefit: %w", err)
		}
		benefits = append(benefits, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate benefits: %w", err)
	}

	return benefits, nil
}

func (a *sqlAdapter) Create(ctx context.Context, b domain.Benefit) (*domain.Benefit, error) {
	if err := a.checkScale(b); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	b.ID = uuid.New().String()
	b.Version = 0
	b.CreatedAt = now
	b.UpdatedAt = now

	_, err := a.db.ExecContext(ctx, a.q(`
		INSERT INTO benefits (`+benefitColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		b.ID, b.Name, b.Description, b.Value, b.Active, b.Version, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert benefit: %w", err)
	}

	return &b, nil
}

// CompareAndSwap updates every record in one transaction, each guarded by its
// expected version. Rows are touched in id order so two swaps over the same
// pair cannot deadlock.
func (a *sqlAdapter) CompareAndSwap(ctx context.Context, benefits ...domain.Benefit) error {
	for _, b := range benefits {
		if err := a.checkScale(b); err != nil {
			return err
		}
	}

	ordered := slices.Clone(benefits)
	slices.SortFunc(ordered, func(x, y domain.Benefit) int { return strings.Compare(x.ID, y.ID) })

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, b := range ordered {
		result, err := tx.ExecContext(ctx, a.q(`
			UPDATE benefits
			SET name = ?, description = ?, value = ?, active = ?, version = version + 1, updated_at = ?
			WHERE id = ? AND version = ?`),
			b.Name, b.Description, b.Value, b.Active, now, b.ID, b.Version,
		)
		if err != nil {
			return fmt.Errorf("update benefit: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if rows == 0 {
			return a.missOrConflict(ctx, tx, b.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (a *sqlAdapter) missOrConflict(ctx context.Context, tx *sql.Tx, id string) error {
	var one int
	err := tx.QueryRowContext(ctx, a.q(`SELECT 1 FROM benefits WHERE id = ?`), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return port.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("query benefit: %w", err)
	}
	return port.ErrVersionConflict
}

func (a *sqlAdapter) Delete(ctx context.Context, id string) error {
	result, err := a.db.ExecContext(ctx, a.q(`DELETE FROM benefits WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete benefit: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return port.ErrNotFound
	}
	return nil
}
