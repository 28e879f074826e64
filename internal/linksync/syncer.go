// Package linksync maintains a custom field on every Paperless document
// whose value links back to this system's viewer for that document. A
// periodic scheduler reconciles the corpus against drift: documents
// missing the field get it, documents with a stale value get rewritten.
package linksync

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/dukerupert/annex/internal/paperless"
)

// Syncer reconciles the link field through a Paperless client. The
// resolved field definition is cached for the process lifetime; the cache
// is shared across users and scan cycles since the field is global.
type Syncer struct {
	fieldName string
	baseURL   string
	logger    *slog.Logger

	// mu guards cached and serializes first-time resolution, so two
	// concurrent callers cannot both create the field remotely.
	mu     sync.Mutex
	cached *paperless.CustomField
}

func NewSyncer(fieldName, baseURL string, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{fieldName: fieldName, baseURL: baseURL, logger: logger}
}

// ViewURL is the canonical viewer link written into the custom field.
func (s *Syncer) ViewURL(docID int64) string {
	return s.baseURL + "/view/" + strconv.FormatInt(docID, 10)
}

// viewPrefix is what a current link must start with. The prefix check is
// an approximation of "link is up to date"; it lives in one place so the
// staleness predicate can be replaced without touching the scan loop.
func (s *Syncer) viewPrefix() string {
	return s.baseURL + "/view/"
}

// ensureField resolves the custom field by name, creating it (data type
// url) when absent. Resolution happens at most once per process.
func (s *Syncer) ensureField(ctx context.Context, client *paperless.Client) (*paperless.CustomField, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil {
		return s.cached, nil
	}

	cf, err := client.CustomFieldByName(ctx, s.fieldName)
	if err != nil {
		return nil, fmt.Errorf("look up custom field %q: %w", s.fieldName, err)
	}
	if cf == nil {
		s.logger.Info("creating link custom field", "name", s.fieldName)
		cf, err = client.CreateCustomField(ctx, s.fieldName, "url")
		if err != nil {
			return nil, fmt.Errorf("create custom field %q: %w", s.fieldName, err)
		}
	} else {
		s.logger.Debug("found link custom field", "name", s.fieldName, "id", cf.ID)
	}
	s.cached = cf
	return cf, nil
}

// UpdateLinks runs one reconciliation pass: attach the link to documents
// missing it, then rewrite documents whose link is stale. Documents in
// skip are left alone; the returned set holds the ids touched by this
// call, so callers scanning with multiple credentials can compose skip
// sets and avoid duplicate writes within one cycle. The same document can
// match both queries when the external index lags, which is why both
// passes share one accounting.
func (s *Syncer) UpdateLinks(ctx context.Context, client *paperless.Client, skip map[int64]struct{}) (map[int64]struct{}, error) {
	field, err := s.ensureField(ctx, client)
	if err != nil {
		return nil, err
	}
	touched := make(map[int64]struct{})

	fill := func(pager *paperless.DocumentPager, reason string) error {
		for pager.Next(ctx) {
			doc := pager.Document()
			if _, done := skip[doc.ID]; done {
				continue
			}
			if _, done := touched[doc.ID]; done {
				continue
			}
			s.logger.Info("writing document link", "doc_id", doc.ID, "reason", reason)
			if _, err := client.SetCustomField(ctx, &doc, field.ID, s.ViewURL(doc.ID)); err != nil {
				return fmt.Errorf("set link on doc %d: %w", doc.ID, err)
			}
			touched[doc.ID] = struct{}{}
		}
		return pager.Err()
	}

	missing, err := client.QueryDocuments(paperless.FieldExists(s.fieldName, false))
	if err != nil {
		return touched, err
	}
	if err := fill(missing, "missing"); err != nil {
		return touched, err
	}

	outdated, err := client.QueryDocuments(paperless.Not(paperless.FieldIStartsWith(s.fieldName, s.viewPrefix())))
	if err != nil {
		return touched, err
	}
	if err := fill(outdated, "outdated"); err != nil {
		return touched, err
	}

	return touched, nil
}

// SetLink writes the canonical link onto one document, used when a new
// document arrives and the next scan cycle is too far away.
func (s *Syncer) SetLink(ctx context.Context, client *paperless.Client, docID int64) error {
	field, err := s.ensureField(ctx, client)
	if err != nil {
		return err
	}
	doc, err := client.Document(ctx, docID)
	if err != nil {
		return fmt.Errorf("fetch doc %d: %w", docID, err)
	}
	if _, err := client.SetCustomField(ctx, doc, field.ID, s.ViewURL(docID)); err != nil {
		return fmt.Errorf("set link on doc %d: %w", docID, err)
	}
	s.logger.Info("linked new document", "doc_id", docID)
	return nil
}

// DeleteAllLinks removes the link field instance from every document that
// has one and returns how many were removed.
func (s *Syncer) DeleteAllLinks(ctx context.Context, client *paperless.Client) (int, error) {
	field, err := s.ensureField(ctx, client)
	if err != nil {
		return 0, err
	}

	removed := 0
	pager, err := client.QueryDocuments(paperless.FieldExists(s.fieldName, true))
	if err != nil {
		return 0, err
	}
	for pager.Next(ctx) {
		doc := pager.Document()
		if _, err := client.RemoveCustomField(ctx, &doc, field.ID); err != nil {
			return removed, fmt.Errorf("remove link from doc %d: %w", doc.ID, err)
		}
		removed++
	}
	if err := pager.Err(); err != nil {
		return removed, err
	}
	s.logger.Info("removed document links", "count", removed)
	return removed, nil
}
