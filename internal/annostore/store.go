// Package annostore persists annotations behind a backend-agnostic
// interface. Two backends exist: one encodes annotations into Paperless
// document notes, one keeps them in a local SQLite table. The choice is a
// deployment-time configuration decision; callers never see the difference.
package annostore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukerupert/annex/internal/model"
	"github.com/dukerupert/annex/internal/notecodec"
	"github.com/dukerupert/annex/internal/paperless"
)

var (
	// ErrMissingID marks an update attempted before the annotation was
	// ever persisted. That is a caller bug, not a storage condition.
	ErrMissingID = errors.New("annotation has no storage id")

	// ErrNotFound marks an update whose target record no longer exists.
	ErrNotFound = errors.New("annotation not found")

	// ErrNegativePage rejects writes with a page index below zero.
	ErrNegativePage = errors.New("page index must not be negative")
)

// Iter walks the annotations of one document. It is a single-pass,
// non-restartable sequence in the style of sql.Rows: call Next until it
// returns false, then check Err. Malformed individual records are skipped,
// never surfaced as iteration errors.
type Iter interface {
	Next() bool
	Annotation() *model.Annotation
	Err() error
	Close() error
}

// Storage is the backend-agnostic persistence contract.
type Storage interface {
	// Annotations lists a document's annotations, optionally filtered to
	// one zero-based page.
	Annotations(ctx context.Context, docID int64, page *int) (Iter, error)

	// Create persists a new annotation and assigns its storage id.
	Create(ctx context.Context, docID int64, a *model.Annotation) (*model.Annotation, error)

	// Update rewrites an existing annotation. The annotation must carry
	// the storage id of the record being replaced.
	Update(ctx context.Context, docID int64, a *model.Annotation) (*model.Annotation, error)

	// DeleteByID removes one annotation. It reports whether a record was
	// actually removed; deleting an absent id is not an error.
	DeleteByID(ctx context.Context, docID, dbID int64) (bool, error)
}

// Backend names accepted by New.
const (
	BackendNotes    = "paperless_notes"
	BackendDatabase = "database"
)

// New selects the configured storage backend. This is a startup decision:
// the returned Storage is used for the process lifetime.
func New(backend string, db *sql.DB, client *paperless.Client, codec *notecodec.Codec, logger *slog.Logger) (Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch backend {
	case BackendDatabase:
		logger.Info("using database annotation storage")
		return NewDBStorage(db, logger), nil
	case BackendNotes:
		logger.Info("using paperless notes annotation storage")
		return NewNotesStorage(client, codec, logger), nil
	default:
		return nil, fmt.Errorf("unknown annotation storage backend %q", backend)
	}
}

func checkPage(a *model.Annotation) error {
	if a.PageIndex < 0 {
		return fmt.Errorf("page index %d: %w", a.PageIndex, ErrNegativePage)
	}
	return nil
}
