// Package importer drives an archive through the transformer into a Loader.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Skryldev/hlc-import/archive"
	"github.com/Skryldev/hlc-import/models"
	"github.com/Skryldev/hlc-import/transform"
)

// Loader stores one member's records. Implementations must treat an empty
// slice as a no-op.
type Loader interface {
	LoadAccounts(ctx context.Context, accounts []models.Account) error
	LoadInterests(ctx context.Context, interests []models.Interest) error
	LoadLikes(ctx context.Context, likes []models.Like) error
}

// MemberError reports a member whose document failed validation.
type MemberError struct {
	Member string
	Err    error
}

func (e *MemberError) Error() string { return fmt.Sprintf("member %q: %v", e.Member, e.Err) }
func (e *MemberError) Unwrap() error { return e.Err }

// LoadError reports a store failure while loading one member's table.
type LoadError struct {
	Member string
	Table  string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("member %q: load %s: %v", e.Member, e.Table, e.Err)
}
func (e *LoadError) Unwrap() error { return e.Err }

// Stats summarises a run.
type Stats struct {
	Members        int
	Accounts       int
	Interests      int
	Likes          int
	SkippedMembers int
	Duration       time.Duration
}

// Option configures an Importer.
type Option func(*Importer)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(im *Importer) { im.log = l }
}

// WithContinueOnError skips members that cannot be read or transformed
// instead of aborting the run. Load failures always abort.
func WithContinueOnError(on bool) Option {
	return func(im *Importer) { im.continueOnError = on }
}

// Importer processes archive members one at a time.
type Importer struct {
	loader          Loader
	log             *slog.Logger
	continueOnError bool
}

// New returns an Importer writing through loader.
func New(loader Loader, opts ...Option) *Importer {
	im := &Importer{loader: loader, log: slog.Default()}
	for _, o := range opts {
		o(im)
	}
	return im
}

// Run imports every member of r in archive order. The returned Stats are
// valid even when err is non-nil and cover the members loaded so far.
func (im *Importer) Run(ctx context.Context, r *archive.Reader) (Stats, error) {
	var st Stats
	start := time.Now()

	opts := archive.EachOptions{}
	if im.continueOnError {
		opts.OnSkip = func(re *archive.ReadError) {
			st.SkippedMembers++
			im.log.Warn("skipping unreadable member", "member", re.Member, "error", re.Err)
		}
	}

	err := r.Each(ctx, opts, func(member string, doc models.Document) error {
		batch, err := transform.Transform(doc)
		if err != nil {
			if im.continueOnError {
				st.SkippedMembers++
				im.log.Warn("skipping invalid member", "member", member, "error", err)
				return nil
			}
			return &MemberError{Member: member, Err: err}
		}

		if err := im.load(ctx, member, batch); err != nil {
			return err
		}

		st.Members++
		st.Accounts += len(batch.Accounts)
		st.Interests += len(batch.Interests)
		st.Likes += len(batch.Likes)
		im.log.Info("member loaded",
			"member", member,
			"accounts", len(batch.Accounts),
			"interests", len(batch.Interests),
			"likes", len(batch.Likes))
		return nil
	})

	st.Duration = time.Since(start)
	return st, err
}

func (im *Importer) load(ctx context.Context, member string, b *transform.Batch) error {
	if err := im.loader.LoadAccounts(ctx, b.Accounts); err != nil {
		return &LoadError{Member: member, Table: models.TableAccounts, Err: err}
	}
	if err := im.loader.LoadInterests(ctx, b.Interests); err != nil {
		return &LoadError{Member: member, Table: models.TableInterests, Err: err}
	}
	if err := im.loader.LoadLikes(ctx, b.Likes); err != nil {
		return &LoadError{Member: member, Table: models.TableLikes, Err: err}
	}
	return nil
}

// IsLoadError reports whether err carries a *LoadError.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}
