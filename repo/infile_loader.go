package repo

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/go-sql-driver/mysql"
	"github.com/jszwec/csvutil"

	"github.com/Skryldev/hlc-import/db"
	"github.com/Skryldev/hlc-import/models"
)

// InfileLoader bulk loads records into MySQL with LOAD DATA LOCAL INFILE,
// streaming CSV from memory through a go-sql-driver/mysql reader handler.
// The server must have local_infile enabled.
type InfileLoader struct {
	q db.Querier
}

// NewInfileLoader returns a loader that executes LOAD DATA through q, which
// must be connected to MySQL.
func NewInfileLoader(q db.Querier) *InfileLoader {
	return &InfileLoader{q: q}
}

func (l *InfileLoader) LoadAccounts(ctx context.Context, accounts []models.Account) error {
	if len(accounts) == 0 {
		return nil
	}
	rows := make([]accountCSV, len(accounts))
	for i, a := range accounts {
		rows[i] = newAccountCSV(a)
	}
	return l.load(ctx, models.TableAccounts, models.AccountColumns, rows)
}

func (l *InfileLoader) LoadInterests(ctx context.Context, interests []models.Interest) error {
	if len(interests) == 0 {
		return nil
	}
	rows := make([]interestCSV, len(interests))
	for i, in := range interests {
		rows[i] = interestCSV{AccountID: in.AccountID, Interest: escapeInfile(in.Interest)}
	}
	return l.load(ctx, models.TableInterests, models.InterestColumns, rows)
}

func (l *InfileLoader) LoadLikes(ctx context.Context, likes []models.Like) error {
	if len(likes) == 0 {
		return nil
	}
	rows := make([]likeCSV, len(likes))
	for i, lk := range likes {
		rows[i] = likeCSV(lk)
	}
	return l.load(ctx, models.TableLikes, models.LikeColumns, rows)
}

var readerSeq atomic.Uint64

func (l *InfileLoader) load(ctx context.Context, table string, cols []string, rows any) error {
	data, err := encodeCSV(rows)
	if err != nil {
		return fmt.Errorf("repo/%s: encode csv: %w", table, err)
	}
	name := fmt.Sprintf("%s-%d", table, readerSeq.Add(1))
	mysql.RegisterReaderHandler(name, func() io.Reader { return bytes.NewReader(data) })
	defer mysql.DeregisterReaderHandler(name)

	if _, err := l.q.Exec(ctx, infileStatement(name, table, cols)); err != nil {
		return fmt.Errorf("repo/%s: load data: %w", table, err)
	}
	return nil
}

func infileStatement(readerName, table string, cols []string) string {
	return fmt.Sprintf(
		`LOAD DATA LOCAL INFILE 'Reader::%s' INTO TABLE %s CHARACTER SET utf8mb4 `+
			`FIELDS TERMINATED BY ',' OPTIONALLY ENCLOSED BY '"' LINES TERMINATED BY '\n' %s`,
		readerName, table, columnList(cols))
}

// encodeCSV renders rows without a header line.
func encodeCSV(rows any) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	enc := csvutil.NewEncoder(w)
	enc.AutoHeader = false
	if err := enc.Encode(rows); err != nil {
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// CSV row shapes, fields in column order
// ─────────────────────────────────────────────────────────────────────────────

// infileNull is how LOAD DATA spells NULL with the default ESCAPED BY '\\'.
const infileNull = `\N`

type accountCSV struct {
	ID           int64  `csv:"id"`
	Fname        string `csv:"fname"`
	Sname        string `csv:"sname"`
	Phone        string `csv:"phone"`
	Sex          int8   `csv:"sex"`
	Birth        int64  `csv:"birth"`
	Country      string `csv:"country"`
	City         string `csv:"city"`
	Joined       int64  `csv:"joined"`
	Status       int8   `csv:"status"`
	PremiumStart string `csv:"premium_start"`
	PremiumEnd   string `csv:"premium_end"`
}

type interestCSV struct {
	AccountID int64  `csv:"account_id"`
	Interest  string `csv:"interest"`
}

type likeCSV struct {
	AccountIDFrom int64 `csv:"account_id_from"`
	AccountIDTo   int64 `csv:"account_id_to"`
	TS            int64 `csv:"ts"`
}

func newAccountCSV(a models.Account) accountCSV {
	return accountCSV{
		ID:           a.ID,
		Fname:        escapeInfile(a.Fname),
		Sname:        escapeInfile(a.Sname),
		Phone:        nullableString(a.Phone),
		Sex:          int8(a.Sex),
		Birth:        a.Birth,
		Country:      nullableString(a.Country),
		City:         nullableString(a.City),
		Joined:       a.Joined,
		Status:       int8(a.Status),
		PremiumStart: nullableInt(a.PremiumStart),
		PremiumEnd:   nullableInt(a.PremiumEnd),
	}
}

var infileEscaper = strings.NewReplacer(`\`, `\\`)

func escapeInfile(s string) string { return infileEscaper.Replace(s) }

func nullableString(s *string) string {
	if s == nil {
		return infileNull
	}
	return escapeInfile(*s)
}

func nullableInt(n *int64) string {
	if n == nil {
		return infileNull
	}
	return fmt.Sprint(*n)
}
