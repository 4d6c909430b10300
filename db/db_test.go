// db/db_test.go: unit tests for the toolkit.
// Uses an in-memory SQLite database; no external services required.
package db_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Skryldev/hlc-import/db"
)

// ─────────────────────────────────────────────────────────────────────────────
// Test helpers
// ─────────────────────────────────────────────────────────────────────────────

func newTestDB(t *testing.T, hooks ...db.Hook) *db.DB {
	t.Helper()
	d, err := db.OpenWithDriver("sqlite3", db.DriverOptions{Database: ":memory:"}, db.Config{
		MaxOpenConns: 1, // one connection so every statement sees the same in-memory db
		Hooks:        append([]db.Hook{db.NewLogHook(db.LogHookConfig{LogArgs: true})}, hooks...),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	_, err = d.Exec(context.Background(), `
		CREATE TABLE likes (
			account_id_from INTEGER NOT NULL,
			account_id_to   INTEGER NOT NULL,
			ts              INTEGER NOT NULL,
			PRIMARY KEY (account_id_from, account_id_to)
		)`)
	if err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return d
}

func countLikes(t *testing.T, d *db.DB) int {
	t.Helper()
	var n int
	if err := d.QueryRow(context.Background(), `SELECT COUNT(*) FROM likes`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

const insertLike = `INSERT INTO likes (account_id_from, account_id_to, ts) VALUES (?, ?, ?)`

// ─────────────────────────────────────────────────────────────────────────────
// Open / Ping
// ─────────────────────────────────────────────────────────────────────────────

func TestOpen(t *testing.T) {
	d := newTestDB(t)
	if err := d.Ping(context.Background()); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
	if d.DriverName() != "sqlite3" {
		t.Fatalf("unexpected driver name %q", d.DriverName())
	}
}

func TestOpen_InvalidConfig(t *testing.T) {
	if _, err := db.Open(db.Config{DSN: "", DriverName: "sqlite3"}); err == nil {
		t.Fatal("expected error for empty DSN")
	}
	if _, err := db.Open(db.Config{DSN: ":memory:"}); err == nil {
		t.Fatal("expected error for empty driver name")
	}
	if _, err := db.OpenWithDriver("oracle", db.DriverOptions{}, db.Config{}); err == nil {
		t.Fatal("expected error for unregistered driver")
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// DSN construction
// ─────────────────────────────────────────────────────────────────────────────

func TestMySQLDriver_DSN(t *testing.T) {
	drv, err := db.LookupDriver("mysql")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	dsn, err := drv.DSN(db.DriverOptions{Host: "localhost", User: "root", Database: "hlc"})
	if err != nil {
		t.Fatalf("dsn: %v", err)
	}
	want := "root@tcp(localhost:3306)/hlc?charset=utf8mb4"
	if dsn != want {
		t.Fatalf("dsn = %q, want %q", dsn, want)
	}

	dsn, _ = drv.DSN(db.DriverOptions{Host: "db", Port: 3307, User: "u", Password: "p"})
	if !strings.HasPrefix(dsn, "u:p@tcp(db:3307)/?") {
		t.Fatalf("unexpected dsn %q", dsn)
	}

	if _, err := drv.DSN(db.DriverOptions{}); err == nil {
		t.Fatal("expected error without host")
	}
}

func TestPostgresDriver_DSN(t *testing.T) {
	drv, _ := db.LookupDriver("postgres")
	dsn, err := drv.DSN(db.DriverOptions{Host: "pg", User: "app", Password: "s3cret", Database: "hlc"})
	if err != nil {
		t.Fatalf("dsn: %v", err)
	}
	want := "postgres://app:s3cret@pg:5432/hlc?sslmode=disable"
	if dsn != want {
		t.Fatalf("dsn = %q, want %q", dsn, want)
	}
}

func TestSQLiteDriver_DSN(t *testing.T) {
	drv, _ := db.LookupDriver("sqlite3")
	dsn, _ := drv.DSN(db.DriverOptions{Database: "/tmp/x.db", Params: map[string]string{"_fk": "1"}})
	if dsn != "file:/tmp/x.db?_fk=1" {
		t.Fatalf("unexpected dsn %q", dsn)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Exec / QueryRow
// ─────────────────────────────────────────────────────────────────────────────

func TestExec_MultiRowInsert(t *testing.T) {
	d := newTestDB(t)
	res, err := d.Exec(context.Background(),
		`INSERT INTO likes (account_id_from, account_id_to, ts) VALUES (?, ?, ?), (?, ?, ?)`,
		1, 2, 100, 1, 3, 200,
	)
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	if n, _ := res.RowsAffected(); n != 2 {
		t.Fatalf("expected 2 rows affected, got %d", n)
	}
}

func TestQueryRow_NotFound(t *testing.T) {
	d := newTestDB(t)
	var ts int64
	err := d.QueryRow(context.Background(), `SELECT ts FROM likes WHERE account_id_from = ?`, 42).Scan(&ts)
	if !db.IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestQuery_MultipleRows(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	for to := 2; to <= 4; to++ {
		if _, err := d.Exec(ctx, insertLike, 1, to, to*10); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	rows, err := d.Query(ctx, `SELECT account_id_to FROM likes WHERE account_id_from = ? ORDER BY account_id_to`, 1)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer rows.Close()

	var got []int
	for rows.Next() {
		var to int
		if err := rows.Scan(&to); err != nil {
			t.Fatalf("scan: %v", err)
		}
		got = append(got, to)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows.Err: %v", err)
	}
	if len(got) != 3 || got[0] != 2 || got[2] != 4 {
		t.Fatalf("unexpected rows %v", got)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// ExecTx
// ─────────────────────────────────────────────────────────────────────────────

func TestExecTx_Commit(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	err := d.ExecTx(ctx, func(tx *db.Tx) error {
		_, err := tx.Exec(ctx, insertLike, 1, 2, 100)
		return err
	})
	if err != nil {
		t.Fatalf("tx commit: %v", err)
	}
	if n := countLikes(t, d); n != 1 {
		t.Fatalf("expected 1 committed row, got %d", n)
	}
}

func TestExecTx_RollbackOnError(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	sentinelErr := errors.New("intentional failure")

	err := d.ExecTx(ctx, func(tx *db.Tx) error {
		if _, err := tx.Exec(ctx, insertLike, 1, 2, 100); err != nil {
			return err
		}
		return sentinelErr
	})
	if !errors.Is(err, sentinelErr) {
		t.Fatalf("expected sentinelErr, got %v", err)
	}
	if n := countLikes(t, d); n != 0 {
		t.Fatalf("expected 0 rows after rollback, got %d", n)
	}
}

func TestExecTx_RollbackOnDuplicate(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	err := d.ExecTx(ctx, func(tx *db.Tx) error {
		if _, err := tx.Exec(ctx, insertLike, 1, 2, 100); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, insertLike, 1, 2, 200)
		return err
	})
	if !db.IsDuplicateKey(err) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
	if n := countLikes(t, d); n != 0 {
		t.Fatalf("expected 0 rows after rollback, got %d", n)
	}
}

func TestExecTx_RollbackOnPanic(t *testing.T) {
	d := newTestDB(t)
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic to propagate")
		}
	}()
	_ = d.ExecTx(context.Background(), func(tx *db.Tx) error {
		panic("test panic")
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Error mapping
// ─────────────────────────────────────────────────────────────────────────────

func TestErrorMapper_DuplicateKey(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	if _, err := d.Exec(ctx, insertLike, 5, 6, 1); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	_, err := d.Exec(ctx, insertLike, 5, 6, 2)
	if !db.IsDuplicateKey(err) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}

	var dbErr *db.DBError
	if !errors.As(err, &dbErr) || dbErr.Cause == nil {
		t.Fatalf("expected *DBError with cause, got %T", err)
	}
}

func TestErrorMapper_ContextCanceled(t *testing.T) {
	m := db.DefaultErrorMapper()
	if !db.IsTimeout(m.Map(context.Canceled)) {
		t.Fatal("expected context.Canceled to map to ErrTimeout")
	}
	plain := errors.New("plain")
	if m.Map(plain) != plain {
		t.Fatal("unrecognised errors must pass through unchanged")
	}
	if m.Map(nil) != nil {
		t.Fatal("nil must stay nil")
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Hooks
// ─────────────────────────────────────────────────────────────────────────────

type countingHook struct {
	before int
	after  int
}

func (h *countingHook) BeforeQuery(_ context.Context, _ string, _ []any) { h.before++ }
func (h *countingHook) AfterQuery(_ context.Context, _ string, _ []any, _ time.Duration, _ error) {
	h.after++
}

type panickyHook struct{}

func (panickyHook) BeforeQuery(_ context.Context, _ string, _ []any) { panic("before") }
func (panickyHook) AfterQuery(_ context.Context, _ string, _ []any, _ time.Duration, _ error) {
	panic("after")
}

func TestHooks_CalledOnExec(t *testing.T) {
	hook := &countingHook{}
	d := newTestDB(t, hook, panickyHook{}, nil)

	before, after := hook.before, hook.after // schema creation already ran
	_, _ = d.Exec(context.Background(), `SELECT 1`)

	if hook.before != before+1 || hook.after != after+1 {
		t.Fatalf("hook not called: before=%d after=%d", hook.before-before, hook.after-after)
	}
}

type recordingCollector struct {
	mu      sync.Mutex
	ok, bad int
}

func (c *recordingCollector) RecordQuery(_ string, _ time.Duration, success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if success {
		c.ok++
	} else {
		c.bad++
	}
}

func TestMetricsHook(t *testing.T) {
	c := &recordingCollector{}
	d := newTestDB(t, db.NewMetricsHook(c))
	ctx := context.Background()

	_, _ = d.Exec(ctx, insertLike, 1, 2, 3)
	_, _ = d.Exec(ctx, insertLike, 1, 2, 3)

	if c.bad != 1 {
		t.Fatalf("expected 1 failed statement, got %d", c.bad)
	}
	if c.ok < 2 { // schema + first insert
		t.Fatalf("expected at least 2 successful statements, got %d", c.ok)
	}
}
