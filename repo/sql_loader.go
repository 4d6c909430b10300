// Package repo holds the loaders that write transformed records into a store.
package repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/Skryldev/hlc-import/db"
	"github.com/Skryldev/hlc-import/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// SQL constants, each in single-row form. sqlx expands the VALUES tuple
// once per record when bound against a slice.
// ─────────────────────────────────────────────────────────────────────────────

const (
	sqlInsertAccounts = `
		INSERT INTO accounts (id, fname, sname, phone, sex, birth, country, city, joined, status, premium_start, premium_end)
		VALUES (:id, :fname, :sname, :phone, :sex, :birth, :country, :city, :joined, :status, :premium_start, :premium_end)`

	sqlInsertInterests = `
		INSERT INTO interests (account_id, interest)
		VALUES (:account_id, :interest)`

	sqlInsertLikes = `
		INSERT INTO likes (account_id_from, account_id_to, ts)
		VALUES (:account_id_from, :account_id_to, :ts)`

	sqlInterestsOf = `
		SELECT interest
		FROM   interests
		WHERE  account_id = ?
		ORDER  BY interest`
)

// DefaultBatchSize is the number of records per INSERT statement.
const DefaultBatchSize = 1000

// maxPlaceholders stays under the smallest bind-variable limit of the
// supported drivers (SQLite: 32766, MySQL and PostgreSQL: 65535).
const maxPlaceholders = 32000

// SQLLoader writes records with multi-row INSERT statements through the db
// toolkit. All statements of one Load call share a transaction.
type SQLLoader struct {
	d         *db.DB
	bindType  int
	batchSize int
}

// NewSQLLoader returns a loader backed by d. batchSize <= 0 selects
// DefaultBatchSize.
func NewSQLLoader(d *db.DB, batchSize int) *SQLLoader {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &SQLLoader{
		d:         d,
		bindType:  sqlx.BindType(d.DriverName()),
		batchSize: batchSize,
	}
}

// LoadAccounts inserts accounts in input order.
func (l *SQLLoader) LoadAccounts(ctx context.Context, accounts []models.Account) error {
	return insertAll(ctx, l, models.TableAccounts, sqlInsertAccounts, len(models.AccountColumns), accounts)
}

// LoadInterests inserts interests in input order.
func (l *SQLLoader) LoadInterests(ctx context.Context, interests []models.Interest) error {
	return insertAll(ctx, l, models.TableInterests, sqlInsertInterests, len(models.InterestColumns), interests)
}

// LoadLikes inserts likes in input order.
func (l *SQLLoader) LoadLikes(ctx context.Context, likes []models.Like) error {
	return insertAll(ctx, l, models.TableLikes, sqlInsertLikes, len(models.LikeColumns), likes)
}

func insertAll[T any](ctx context.Context, l *SQLLoader, table, query string, columns int, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	size := min(l.batchSize, maxPlaceholders/columns)

	return l.d.ExecTx(ctx, func(tx *db.Tx) error {
		for start := 0; start < len(rows); start += size {
			end := min(start+size, len(rows))
			q, args, err := sqlx.Named(query, rows[start:end])
			if err != nil {
				return fmt.Errorf("repo/%s: bind rows %d-%d: %w", table, start, end-1, err)
			}
			if _, err := tx.Exec(ctx, sqlx.Rebind(l.bindType, q), args...); err != nil {
				return fmt.Errorf("repo/%s: insert rows %d-%d: %w", table, start, end-1, err)
			}
		}
		return nil
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Read helpers used to verify a load
// ─────────────────────────────────────────────────────────────────────────────

// Count returns the number of rows in one of the three tables.
func (l *SQLLoader) Count(ctx context.Context, table string) (int64, error) {
	switch table {
	case models.TableAccounts, models.TableInterests, models.TableLikes:
	default:
		return 0, fmt.Errorf("repo: unknown table %q", table)
	}
	var n int64
	if err := l.d.QueryRow(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("repo/%s: count: %w", table, err)
	}
	return n, nil
}

// InterestsOf returns the interests stored for one account, sorted.
func (l *SQLLoader) InterestsOf(ctx context.Context, accountID int64) ([]string, error) {
	rows, err := l.d.Query(ctx, sqlx.Rebind(l.bindType, sqlInterestsOf), accountID)
	if err != nil {
		return nil, fmt.Errorf("repo/interests: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("repo/interests: scan: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// columnList renders a column list for statements built outside sqlx.
func columnList(cols []string) string {
	return "(" + strings.Join(cols, ", ") + ")"
}
