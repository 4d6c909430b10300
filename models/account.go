package models

// Account represents a row in the "accounts" table.
// Fields map 1-to-1 with columns and are declared in column order.
// Optional columns are pointers; nil is stored as NULL.
type Account struct {
	ID           int64   `db:"id"`
	Fname        string  `db:"fname"`
	Sname        string  `db:"sname"`
	Phone        *string `db:"phone"`
	Sex          Sex     `db:"sex"`
	Birth        int64   `db:"birth"`
	Country      *string `db:"country"`
	City         *string `db:"city"`
	Joined       int64   `db:"joined"`
	Status       Status  `db:"status"`
	PremiumStart *int64  `db:"premium_start"`
	PremiumEnd   *int64  `db:"premium_end"`
}

// Interest represents a row in the "interests" table.
type Interest struct {
	AccountID int64  `db:"account_id"`
	Interest  string `db:"interest"`
}

// Like represents a row in the "likes" table. AccountIDTo may reference an
// account that has not been loaded yet.
type Like struct {
	AccountIDFrom int64 `db:"account_id_from"`
	AccountIDTo   int64 `db:"account_id_to"`
	TS            int64 `db:"ts"`
}

// Table names and column lists, in storage order.
const (
	TableAccounts  = "accounts"
	TableInterests = "interests"
	TableLikes     = "likes"
)

var (
	AccountColumns = []string{
		"id", "fname", "sname", "phone", "sex", "birth",
		"country", "city", "joined", "status", "premium_start", "premium_end",
	}
	InterestColumns = []string{"account_id", "interest"}
	LikeColumns     = []string{"account_id_from", "account_id_to", "ts"}
)
