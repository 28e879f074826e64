// Package annotator orchestrates annotation storage operations across a
// document corpus: reply cascades on delete, probing which documents carry
// annotations, and corpus-wide bulk deletion.
package annotator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukerupert/annex/internal/annostore"
	"github.com/dukerupert/annex/internal/model"
	"github.com/dukerupert/annex/internal/paperless"
)

type Annotator struct {
	client  *paperless.Client
	storage annostore.Storage
	logger  *slog.Logger
}

func New(client *paperless.Client, storage annostore.Storage, logger *slog.Logger) *Annotator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Annotator{client: client, storage: storage, logger: logger}
}

// Download returns the raw file for a document.
func (a *Annotator) Download(ctx context.Context, docID int64) ([]byte, error) {
	a.logger.Debug("downloading document", "doc_id", docID)
	return a.client.Download(ctx, docID)
}

// Annotations lists a document's annotations, optionally filtered to one
// zero-based page.
func (a *Annotator) Annotations(ctx context.Context, docID int64, page *int) ([]*model.Annotation, error) {
	it, err := a.storage.Annotations(ctx, docID, page)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var annos []*model.Annotation
	for it.Next() {
		annos = append(annos, it.Annotation())
	}
	return annos, it.Err()
}

// Create persists a new annotation.
func (a *Annotator) Create(ctx context.Context, docID int64, anno *model.Annotation) (*model.Annotation, error) {
	a.logger.Info("creating annotation", "doc_id", docID, "page", anno.PageIndex)
	return a.storage.Create(ctx, docID, anno)
}

// Update rewrites an existing annotation.
func (a *Annotator) Update(ctx context.Context, docID int64, anno *model.Annotation) (*model.Annotation, error) {
	a.logger.Info("updating annotation", "doc_id", docID, "db_id", anno.DBID)
	return a.storage.Update(ctx, docID, anno)
}

// Delete removes an annotation together with the replies on its page.
//
// The cascade is one level deep: direct replies (inReplyToId matching the
// target's domain id) are deleted, but replies to those replies are left
// orphaned. Deepening the cascade would need a second scan per reply and
// has never been required by the viewer.
func (a *Annotator) Delete(ctx context.Context, docID int64, anno *model.Annotation) (bool, error) {
	if anno.DBID == nil {
		return false, annostore.ErrMissingID
	}
	a.logger.Info("deleting annotation", "doc_id", docID, "db_id", *anno.DBID)

	if domainID := anno.DomainID(); domainID != "" {
		page := anno.PageIndex
		it, err := a.storage.Annotations(ctx, docID, &page)
		if err != nil {
			return false, fmt.Errorf("scan page %d for replies: %w", page, err)
		}
		defer it.Close()

		for it.Next() {
			other := it.Annotation()
			if other.DBID == nil || *other.DBID == *anno.DBID {
				continue
			}
			if other.InReplyToID() != domainID {
				continue
			}
			a.logger.Debug("deleting reply annotation", "doc_id", docID, "db_id", *other.DBID)
			if _, err := a.storage.DeleteByID(ctx, docID, *other.DBID); err != nil {
				return false, fmt.Errorf("delete reply %d: %w", *other.DBID, err)
			}
		}
		if err := it.Err(); err != nil {
			return false, fmt.Errorf("scan page %d for replies: %w", page, err)
		}
	}

	return a.storage.DeleteByID(ctx, docID, *anno.DBID)
}

// DocumentsWithAnnotations calls visit for every document outside skip
// that has at least one annotation. Each document costs one probe that
// stops at the first annotation found; the storage layer has no reverse
// index from annotations to documents, so O(corpus) is the floor here.
func (a *Annotator) DocumentsWithAnnotations(ctx context.Context, skip map[int64]struct{}, visit func(paperless.Document) error) error {
	pager := a.client.Documents()
	for pager.Next(ctx) {
		doc := pager.Document()
		if _, skipped := skip[doc.ID]; skipped {
			continue
		}

		found, err := a.hasAnnotations(ctx, doc.ID)
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		if err := visit(doc); err != nil {
			return err
		}
	}
	return pager.Err()
}

func (a *Annotator) hasAnnotations(ctx context.Context, docID int64) (bool, error) {
	it, err := a.storage.Annotations(ctx, docID, nil)
	if err != nil {
		return false, fmt.Errorf("probe annotations on doc %d: %w", docID, err)
	}
	defer it.Close()
	if it.Next() {
		return true, nil
	}
	return false, it.Err()
}

// DeleteAllAnnotations removes every annotation from every document not in
// skip and returns the set of document ids it touched. A failure on one
// document is logged and does not stop the remaining documents; nothing is
// retried.
func (a *Annotator) DeleteAllAnnotations(ctx context.Context, skip map[int64]struct{}) (map[int64]struct{}, error) {
	a.logger.Info("deleting all annotations")
	processed := make(map[int64]struct{})

	err := a.DocumentsWithAnnotations(ctx, skip, func(doc paperless.Document) error {
		if err := a.deleteDocAnnotations(ctx, doc.ID); err != nil {
			a.logger.Error("delete annotations failed, continuing", "doc_id", doc.ID, "error", err)
			return nil
		}
		processed[doc.ID] = struct{}{}
		return nil
	})
	if err != nil {
		return processed, err
	}

	a.logger.Info("deleted annotations", "documents", len(processed))
	return processed, nil
}

func (a *Annotator) deleteDocAnnotations(ctx context.Context, docID int64) error {
	annos, err := a.Annotations(ctx, docID, nil)
	if err != nil {
		return err
	}
	for _, anno := range annos {
		if anno.DBID == nil {
			continue
		}
		if _, err := a.storage.DeleteByID(ctx, docID, *anno.DBID); err != nil {
			return err
		}
	}
	return nil
}
