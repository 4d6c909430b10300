package importer_test

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/hlc-import/archive"
	"github.com/Skryldev/hlc-import/db"
	"github.com/Skryldev/hlc-import/importer"
	"github.com/Skryldev/hlc-import/models"
	"github.com/Skryldev/hlc-import/repo"
	"github.com/Skryldev/hlc-import/transform"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fixtures
// ─────────────────────────────────────────────────────────────────────────────

const (
	member1 = `{"accounts": [
		{"id": 1, "fname": "Анна", "sname": "Иванова", "phone": "8(900)1234567", "sex": "f",
		 "birth": 631152000, "country": "Россия", "city": "Москва", "joined": 1420070400,
		 "status": "свободны", "premium_start": 1500000000, "premium_end": 1600000000,
		 "interests": ["музыка", "книги"],
		 "likes": [{"id": 2, "ts": 1500000001}, {"id": 3, "ts": 1500000002}]},
		{"id": 2, "fname": "Пётр", "sname": "Петров", "sex": "m", "birth": 600000000,
		 "joined": 1430000000, "status": "всё сложно"}
	]}`
	member2 = `{"accounts": [
		{"id": 3, "fname": "Ольга", "sname": "Смирнова", "sex": "f", "birth": 610000000,
		 "joined": 1440000000, "status": "заняты", "interests": ["спорт"]}
	]}`
	invalidMember = `{"accounts": [{"id": 4, "fname": "x", "sname": "y", "sex": "x",
		"birth": 1, "joined": 2, "status": "заняты"}]}`
)

type member struct{ name, body string }

func openArchive(t *testing.T, members ...member) *archive.Reader {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.zip")
	f, err := os.Create(path)
	require.NoError(t, err)

	zw := zip.NewWriter(f)
	for _, m := range members {
		w, err := zw.Create(m.name)
		require.NoError(t, err)
		_, err = io.WriteString(w, m.body)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	r, err := archive.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeLoader struct {
	accounts  []models.Account
	interests []models.Interest
	likes     []models.Like
	calls     []string
	failOn    string
}

func (f *fakeLoader) LoadAccounts(_ context.Context, a []models.Account) error {
	f.calls = append(f.calls, models.TableAccounts)
	if f.failOn == models.TableAccounts {
		return db.ErrDuplicateKey
	}
	f.accounts = append(f.accounts, a...)
	return nil
}

func (f *fakeLoader) LoadInterests(_ context.Context, in []models.Interest) error {
	f.calls = append(f.calls, models.TableInterests)
	if f.failOn == models.TableInterests {
		return db.ErrConnectionFailed
	}
	f.interests = append(f.interests, in...)
	return nil
}

func (f *fakeLoader) LoadLikes(_ context.Context, l []models.Like) error {
	f.calls = append(f.calls, models.TableLikes)
	if f.failOn == models.TableLikes {
		return db.ErrConnectionFailed
	}
	f.likes = append(f.likes, l...)
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────────────────

func TestRun_LoadsMembersInOrder(t *testing.T) {
	r := openArchive(t, member{"accounts_1.json", member1}, member{"accounts_2.json", member2})
	fl := &fakeLoader{}

	st, err := importer.New(fl, importer.WithLogger(quietLogger())).Run(context.Background(), r)
	require.NoError(t, err)

	assert.Equal(t, 2, st.Members)
	assert.Equal(t, 3, st.Accounts)
	assert.Equal(t, 3, st.Interests)
	assert.Equal(t, 2, st.Likes)
	assert.Zero(t, st.SkippedMembers)

	assert.Equal(t, []string{
		"accounts", "interests", "likes",
		"accounts", "interests", "likes",
	}, fl.calls)
	require.Len(t, fl.accounts, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{fl.accounts[0].ID, fl.accounts[1].ID, fl.accounts[2].ID})
	assert.Equal(t, models.Interest{AccountID: 3, Interest: "спорт"}, fl.interests[2])
}

func TestRun_InvalidMemberAborts(t *testing.T) {
	r := openArchive(t,
		member{"accounts_1.json", member1},
		member{"accounts_2.json", invalidMember},
		member{"accounts_3.json", member2},
	)
	fl := &fakeLoader{}

	st, err := importer.New(fl, importer.WithLogger(quietLogger())).Run(context.Background(), r)

	var me *importer.MemberError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "accounts_2.json", me.Member)
	assert.ErrorIs(t, err, models.ErrInvalidEnumValue)
	assert.Contains(t, err.Error(), `accounts_2.json`)
	assert.Contains(t, err.Error(), `account #0: field "sex"`)

	var ve *transform.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, 0, ve.Index)

	assert.Equal(t, 1, st.Members)
	assert.Len(t, fl.accounts, 2)
}

func TestRun_ContinueOnError(t *testing.T) {
	r := openArchive(t,
		member{"broken.json", `{"accounts": [`},
		member{"invalid.json", invalidMember},
		member{"accounts_2.json", member2},
	)
	var logs bytes.Buffer
	fl := &fakeLoader{}

	st, err := importer.New(fl,
		importer.WithLogger(slog.New(slog.NewTextHandler(&logs, nil))),
		importer.WithContinueOnError(true),
	).Run(context.Background(), r)
	require.NoError(t, err)

	assert.Equal(t, 2, st.SkippedMembers)
	assert.Equal(t, 1, st.Members)
	assert.Equal(t, 1, st.Accounts)
	assert.Contains(t, logs.String(), "member=broken.json")
	assert.Contains(t, logs.String(), "member=invalid.json")
}

func TestRun_ReadErrorAbortsByDefault(t *testing.T) {
	r := openArchive(t, member{"broken.json", `not json`})

	_, err := importer.New(&fakeLoader{}, importer.WithLogger(quietLogger())).Run(context.Background(), r)
	assert.True(t, archive.IsReadError(err))
}

func TestRun_LoadErrorAlwaysAborts(t *testing.T) {
	r := openArchive(t, member{"accounts_1.json", member1}, member{"accounts_2.json", member2})
	fl := &fakeLoader{failOn: models.TableInterests}

	st, err := importer.New(fl,
		importer.WithLogger(quietLogger()),
		importer.WithContinueOnError(true),
	).Run(context.Background(), r)

	var le *importer.LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "accounts_1.json", le.Member)
	assert.Equal(t, models.TableInterests, le.Table)
	assert.True(t, importer.IsLoadError(err))
	assert.True(t, errors.Is(err, db.ErrConnectionFailed))
	assert.Equal(t, []string{"accounts", "interests"}, fl.calls)
	assert.Zero(t, st.Members)
}

func TestRun_EndToEndSQLite(t *testing.T) {
	ctx := context.Background()
	d, err := db.OpenWithDriver("sqlite3", db.DriverOptions{Database: ":memory:"}, db.Config{MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	files, err := filepath.Glob(filepath.Join("..", "migrations", "sqlite3", "*.up.sql"))
	require.NoError(t, err)
	sort.Strings(files)
	for _, f := range files {
		ddl, err := os.ReadFile(f)
		require.NoError(t, err)
		_, err = d.Exec(ctx, string(ddl))
		require.NoError(t, err, f)
	}

	loader := repo.NewSQLLoader(d, 2)
	r := openArchive(t, member{"accounts_1.json", member1}, member{"accounts_2.json", member2})

	st, err := importer.New(loader, importer.WithLogger(quietLogger())).Run(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Accounts)

	for table, want := range map[string]int64{
		models.TableAccounts:  3,
		models.TableInterests: 3,
		models.TableLikes:     2,
	} {
		n, err := loader.Count(ctx, table)
		require.NoError(t, err)
		assert.Equal(t, want, n, table)
	}

	interests, err := loader.InterestsOf(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"книги", "музыка"}, interests)

	var status int
	require.NoError(t, d.QueryRow(ctx, `SELECT status FROM accounts WHERE id = 2`).Scan(&status))
	assert.Equal(t, int(models.StatusComplicated), status)

	// A second run hits the primary key on the first account.
	_, err = importer.New(loader, importer.WithLogger(quietLogger())).Run(ctx,
		openArchive(t, member{"accounts_1.json", member1}))
	require.Error(t, err)
	assert.True(t, db.IsDuplicateKey(err))
}
