// Package transform reshapes one parsed accounts document into the flat
// records stored in the accounts, interests and likes tables.
//
// Transform is a pure function: it holds no state between calls and performs
// no I/O, so documents may be transformed in any order or in parallel.
package transform

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Skryldev/hlc-import/models"
)

// Batch holds the records derived from one document, each slice in input
// order.
type Batch struct {
	Accounts  []models.Account
	Interests []models.Interest
	Likes     []models.Like
}

// Transform maps every account object of doc to an Account record and expands
// its interests and likes. The first malformed account aborts the whole
// document with a *ValidationError; no partial batch is returned.
func Transform(doc models.Document) (*Batch, error) {
	raw, ok := present(doc, models.DocumentAccountsKey)
	if !ok {
		return nil, &ValidationError{Index: -1, Field: models.DocumentAccountsKey, Err: ErrMissingField}
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, &ValidationError{Index: -1, Field: models.DocumentAccountsKey, Err: wrongType(err)}
	}

	batch := &Batch{Accounts: make([]models.Account, 0, len(items))}
	for i, item := range items {
		var f object
		if err := json.Unmarshal(item, &f); err != nil || f == nil {
			return nil, &ValidationError{Index: i, Err: fmt.Errorf("%w: account is not an object", ErrWrongType)}
		}

		acc, err := mapAccount(i, f)
		if err != nil {
			return nil, err
		}
		batch.Accounts = append(batch.Accounts, acc)

		if batch.Interests, err = appendInterests(batch.Interests, i, acc.ID, f); err != nil {
			return nil, err
		}
		if batch.Likes, err = appendLikes(batch.Likes, i, acc.ID, f); err != nil {
			return nil, err
		}
	}
	return batch, nil
}

// object is a JSON object with its values kept raw.
type object = map[string]json.RawMessage

func mapAccount(i int, f object) (models.Account, error) {
	var (
		acc         models.Account
		sex, status string
	)
	required := []struct {
		key string
		dst any
	}{
		{"id", &acc.ID},
		{"fname", &acc.Fname},
		{"sname", &acc.Sname},
		{"sex", &sex},
		{"birth", &acc.Birth},
		{"joined", &acc.Joined},
		{"status", &status},
	}
	for _, r := range required {
		if err := decodeRequired(f, i, r.key, r.dst); err != nil {
			return models.Account{}, err
		}
	}

	var err error
	if acc.Sex, err = models.ParseSex(sex); err != nil {
		return models.Account{}, &ValidationError{Index: i, Field: "sex", Err: err}
	}
	if acc.Status, err = models.ParseStatus(status); err != nil {
		return models.Account{}, &ValidationError{Index: i, Field: "status", Err: err}
	}

	if acc.Phone, err = optionalString(f, i, "phone"); err != nil {
		return models.Account{}, err
	}
	if acc.Country, err = optionalString(f, i, "country"); err != nil {
		return models.Account{}, err
	}
	if acc.City, err = optionalString(f, i, "city"); err != nil {
		return models.Account{}, err
	}
	if err := mapPremium(&acc, i, f); err != nil {
		return models.Account{}, err
	}
	return acc, nil
}

// mapPremium accepts both the flat premium_start/premium_end columns and the
// nested {"premium": {"start", "finish"}} object. Flat keys take precedence.
func mapPremium(acc *models.Account, i int, f object) error {
	var err error
	if acc.PremiumStart, err = optionalInt(f, i, "premium_start"); err != nil {
		return err
	}
	if acc.PremiumEnd, err = optionalInt(f, i, "premium_end"); err != nil {
		return err
	}

	raw, ok := present(f, "premium")
	if !ok {
		return nil
	}
	var nested object
	if err := json.Unmarshal(raw, &nested); err != nil {
		return &ValidationError{Index: i, Field: "premium", Err: wrongType(err)}
	}
	if acc.PremiumStart == nil {
		if acc.PremiumStart, err = optionalInt(nested, i, "premium.start"); err != nil {
			return err
		}
	}
	if acc.PremiumEnd == nil {
		if acc.PremiumEnd, err = optionalInt(nested, i, "premium.finish"); err != nil {
			return err
		}
	}
	return nil
}

func appendInterests(dst []models.Interest, i int, accountID int64, f object) ([]models.Interest, error) {
	items, err := optionalArray(f, i, "interests")
	if err != nil {
		return nil, err
	}
	for j, item := range items {
		field := fmt.Sprintf("interests[%d]", j)
		if isNull(item) {
			return nil, &ValidationError{Index: i, Field: field, Err: ErrMissingField}
		}
		var interest string
		if err := json.Unmarshal(item, &interest); err != nil {
			return nil, &ValidationError{Index: i, Field: field, Err: wrongType(err)}
		}
		dst = append(dst, models.Interest{AccountID: accountID, Interest: interest})
	}
	return dst, nil
}

func appendLikes(dst []models.Like, i int, accountID int64, f object) ([]models.Like, error) {
	items, err := optionalArray(f, i, "likes")
	if err != nil {
		return nil, err
	}
	for j, item := range items {
		var like object
		if err := json.Unmarshal(item, &like); err != nil || like == nil {
			return nil, &ValidationError{Index: i, Field: fmt.Sprintf("likes[%d]", j), Err: fmt.Errorf("%w: like is not an object", ErrWrongType)}
		}
		l := models.Like{AccountIDFrom: accountID}
		if err := decodeRequiredAs(like, i, "id", fmt.Sprintf("likes[%d].id", j), &l.AccountIDTo); err != nil {
			return nil, err
		}
		if err := decodeRequiredAs(like, i, "ts", fmt.Sprintf("likes[%d].ts", j), &l.TS); err != nil {
			return nil, err
		}
		dst = append(dst, l)
	}
	return dst, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Field decoding helpers
// ─────────────────────────────────────────────────────────────────────────────

var jsonNull = []byte("null")

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), jsonNull)
}

// present returns the raw value of key unless it is absent or null.
func present(f map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	raw, ok := f[key]
	if !ok || isNull(raw) {
		return nil, false
	}
	return raw, true
}

func decodeRequired(f object, i int, key string, dst any) error {
	return decodeRequiredAs(f, i, key, key, dst)
}

// decodeRequiredAs decodes f[key] into dst, reporting problems under field.
func decodeRequiredAs(f object, i int, key, field string, dst any) error {
	raw, ok := present(f, key)
	if !ok {
		return &ValidationError{Index: i, Field: field, Err: ErrMissingField}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &ValidationError{Index: i, Field: field, Err: wrongType(err)}
	}
	return nil
}

func optionalString(f object, i int, key string) (*string, error) {
	raw, ok := present(f, key)
	if !ok {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, &ValidationError{Index: i, Field: key, Err: wrongType(err)}
	}
	return &s, nil
}

// optionalInt looks up the last path segment of field ("premium.start" reads
// "start") so nested objects report their full path.
func optionalInt(f object, i int, field string) (*int64, error) {
	key := field
	if dot := strings.LastIndexByte(field, '.'); dot >= 0 {
		key = field[dot+1:]
	}
	raw, ok := present(f, key)
	if !ok {
		return nil, nil
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, &ValidationError{Index: i, Field: field, Err: wrongType(err)}
	}
	return &n, nil
}

func optionalArray(f object, i int, key string) ([]json.RawMessage, error) {
	raw, ok := present(f, key)
	if !ok {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, &ValidationError{Index: i, Field: key, Err: wrongType(err)}
	}
	return items, nil
}

func wrongType(err error) error {
	return fmt.Errorf("%w: %v", ErrWrongType, err)
}
