package annostore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dukerupert/annex/internal/model"
)

// DBStorage keeps annotations in a local SQLite table: one row per
// annotation with the document id, the viewer's domain id, the page index,
// and the full field map as a JSON payload. Unlike the notes backend,
// updates rewrite the row in place.
type DBStorage struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewDBStorage(db *sql.DB, logger *slog.Logger) *DBStorage {
	return &DBStorage{db: db, logger: logger}
}

func (s *DBStorage) Annotations(ctx context.Context, docID int64, page *int) (Iter, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if page != nil {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, payload FROM annotations WHERE doc_id = ? AND page_index = ? ORDER BY id`,
			docID, *page)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, payload FROM annotations WHERE doc_id = ? ORDER BY id`,
			docID)
	}
	if err != nil {
		return nil, fmt.Errorf("query annotations for doc %d: %w", docID, err)
	}
	return &dbIter{rows: rows, page: page, logger: s.logger}, nil
}

func (s *DBStorage) Create(ctx context.Context, docID int64, a *model.Annotation) (*model.Annotation, error) {
	if err := checkPage(a); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal annotation payload: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO annotations (doc_id, domain_id, page_index, payload) VALUES (?, ?, ?, ?)`,
		docID, a.DomainID(), a.PageIndex, string(payload))
	if err != nil {
		return nil, fmt.Errorf("insert annotation: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	a.DBID = &id
	return a, nil
}

func (s *DBStorage) Update(ctx context.Context, docID int64, a *model.Annotation) (*model.Annotation, error) {
	if a.DBID == nil {
		return nil, ErrMissingID
	}
	if err := checkPage(a); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal annotation payload: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE annotations SET domain_id = ?, page_index = ?, payload = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND doc_id = ?`,
		a.DomainID(), a.PageIndex, string(payload), *a.DBID, docID)
	if err != nil {
		return nil, fmt.Errorf("update annotation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("annotation %d on doc %d: %w", *a.DBID, docID, ErrNotFound)
	}
	return a, nil
}

func (s *DBStorage) DeleteByID(ctx context.Context, docID, dbID int64) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM annotations WHERE id = ? AND doc_id = ?`, dbID, docID)
	if err != nil {
		return false, fmt.Errorf("delete annotation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

type dbIter struct {
	rows    *sql.Rows
	page    *int
	logger  *slog.Logger
	current *model.Annotation
	err     error
}

func (it *dbIter) Next() bool {
	for it.rows.Next() {
		var (
			id      int64
			payload string
		)
		if err := it.rows.Scan(&id, &payload); err != nil {
			it.err = fmt.Errorf("scan annotation: %w", err)
			return false
		}

		var a model.Annotation
		if err := json.Unmarshal([]byte(payload), &a); err != nil {
			it.logger.Warn("skipping undecodable annotation row", "row_id", id, "error", err)
			continue
		}
		a.DBID = &id
		if it.page != nil && a.PageIndex != *it.page {
			continue
		}
		it.current = &a
		return true
	}
	if err := it.rows.Err(); err != nil {
		it.err = err
	}
	return false
}

func (it *dbIter) Annotation() *model.Annotation { return it.current }
func (it *dbIter) Err() error                    { return it.err }
func (it *dbIter) Close() error                  { return it.rows.Close() }
