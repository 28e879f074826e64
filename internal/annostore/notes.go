package annostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/dukerupert/annex/internal/model"
	"github.com/dukerupert/annex/internal/notecodec"
	"github.com/dukerupert/annex/internal/paperless"
)

// NotesStorage keeps annotations inside Paperless document notes, encoded
// by the note codec. The note id doubles as the annotation's storage id.
type NotesStorage struct {
	client *paperless.Client
	codec  *notecodec.Codec
	logger *slog.Logger
}

func NewNotesStorage(client *paperless.Client, codec *notecodec.Codec, logger *slog.Logger) *NotesStorage {
	return &NotesStorage{client: client, codec: codec, logger: logger}
}

func (s *NotesStorage) Annotations(ctx context.Context, docID int64, page *int) (Iter, error) {
	notes, err := s.client.Notes(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("list notes for doc %d: %w", docID, err)
	}
	return &notesIter{notes: notes, codec: s.codec, page: page, logger: s.logger}, nil
}

func (s *NotesStorage) Create(ctx context.Context, docID int64, a *model.Annotation) (*model.Annotation, error) {
	if err := checkPage(a); err != nil {
		return nil, err
	}
	content, err := s.codec.Encode(a)
	if err != nil {
		return nil, err
	}
	note, err := s.client.AddNote(ctx, docID, content)
	if err != nil {
		return nil, fmt.Errorf("create annotation note on doc %d: %w", docID, err)
	}
	a.DBID = &note.ID
	return a, nil
}

// Update replaces the annotation's note. Paperless has no in-place note
// edit, so this is delete-then-recreate: if the recreate fails after the
// delete succeeded, the annotation is gone and the error says so. That
// at-most-once-available window is inherent to the notes API, not hidden.
func (s *NotesStorage) Update(ctx context.Context, docID int64, a *model.Annotation) (*model.Annotation, error) {
	if a.DBID == nil {
		return nil, ErrMissingID
	}
	if err := checkPage(a); err != nil {
		return nil, err
	}

	// Encode before touching the old note so a codec failure aborts
	// before any write.
	content, err := s.codec.Encode(a)
	if err != nil {
		return nil, err
	}

	oldID := *a.DBID
	deleted, err := s.DeleteByID(ctx, docID, oldID)
	if err != nil {
		return nil, fmt.Errorf("delete note %d on doc %d: %w", oldID, docID, err)
	}
	if !deleted {
		return nil, fmt.Errorf("annotation %d on doc %d: %w", oldID, docID, ErrNotFound)
	}

	note, err := s.client.AddNote(ctx, docID, content)
	if err != nil {
		return nil, fmt.Errorf("recreate annotation note on doc %d (old note %d already deleted): %w", docID, oldID, err)
	}
	a.DBID = &note.ID
	return a, nil
}

func (s *NotesStorage) DeleteByID(ctx context.Context, docID, dbID int64) (bool, error) {
	err := s.client.DeleteNote(ctx, docID, dbID)
	if err != nil {
		var apiErr *paperless.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return false, nil
		}
		return false, fmt.Errorf("delete note %d on doc %d: %w", dbID, docID, err)
	}
	return true, nil
}

// notesIter decodes notes lazily. Notes that are not annotation records
// and notes that fail to decode are skipped; the latter are logged since
// they may indicate corruption, but one bad note must not abort the list.
type notesIter struct {
	notes   []paperless.Note
	codec   *notecodec.Codec
	page    *int
	logger  *slog.Logger
	idx     int
	current *model.Annotation
}

func (it *notesIter) Next() bool {
	for it.idx < len(it.notes) {
		note := it.notes[it.idx]
		it.idx++

		a, err := it.codec.Decode(note.Note)
		if err != nil {
			it.logger.Warn("skipping undecodable annotation note", "note_id", note.ID, "error", err)
			continue
		}
		if a == nil {
			continue
		}
		a.DBID = &note.ID
		if it.page != nil && a.PageIndex != *it.page {
			continue
		}
		it.current = a
		return true
	}
	return false
}

func (it *notesIter) Annotation() *model.Annotation { return it.current }
func (it *notesIter) Err() error                    { return nil }
func (it *notesIter) Close() error                  { return nil }
