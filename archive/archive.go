// Package archive iterates the JSON members of a zip archive one at a time.
package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Skryldev/hlc-import/models"
)

// ReadError reports a member that could not be opened or decoded.
type ReadError struct {
	Member string
	Err    error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("archive member %q: %v", e.Member, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// IsReadError reports whether err carries a *ReadError.
func IsReadError(err error) bool {
	var re *ReadError
	return errors.As(err, &re)
}

// Reader walks the regular-file members of a zip archive.
type Reader struct {
	zr      *zip.ReadCloser
	members []*zip.File
}

// Open opens the archive at path. The caller must Close the Reader.
func Open(path string) (*Reader, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	r := &Reader{zr: zr}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}
		r.members = append(r.members, f)
	}
	return r, nil
}

// Close releases the archive.
func (r *Reader) Close() error { return r.zr.Close() }

// Members returns the member names in archive order.
func (r *Reader) Members() []string {
	names := make([]string, len(r.members))
	for i, f := range r.members {
		names[i] = f.Name
	}
	return names
}

// VisitFunc receives one decoded member.
type VisitFunc func(member string, doc models.Document) error

// SkipFunc is told about a member that was skipped because it was unreadable.
type SkipFunc func(err *ReadError)

// EachOptions controls iteration. With a nil OnSkip, the first *ReadError
// stops iteration.
type EachOptions struct {
	OnSkip SkipFunc
}

// Each decodes members in order and hands each to fn. A member's file handle
// is closed before fn runs, so at most one decoded document is alive at a
// time. Iteration stops at the first error returned by fn.
func (r *Reader) Each(ctx context.Context, opts EachOptions, fn VisitFunc) error {
	for _, f := range r.members {
		if err := ctx.Err(); err != nil {
			return err
		}

		doc, err := decodeMember(f)
		if err != nil {
			re := &ReadError{Member: f.Name, Err: err}
			if opts.OnSkip == nil {
				return re
			}
			opts.OnSkip(re)
			continue
		}

		if err := fn(f.Name, doc); err != nil {
			return err
		}
	}
	return nil
}

func decodeMember(f *zip.File) (models.Document, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return models.DecodeDocument(rc)
}
