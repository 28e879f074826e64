package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/dukerupert/annex/internal/annostore"
	"github.com/dukerupert/annex/internal/annotator"
	"github.com/dukerupert/annex/internal/database"
	"github.com/dukerupert/annex/internal/event"
	"github.com/dukerupert/annex/internal/model"
)

func setupAnnotationHandler(t *testing.T) (*AnnotationHandler, *http.ServeMux) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	storage := annostore.NewDBStorage(db, slog.Default())
	a := annotator.New(nil, storage, slog.Default())
	h := NewAnnotationHandler(a, event.NewHub(slog.Default()), slog.Default())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/documents/{doc_id}/annotations", h.List)
	mux.HandleFunc("POST /api/documents/{doc_id}/annotations", h.Create)
	mux.HandleFunc("PATCH /api/documents/{doc_id}/annotations/{db_id}", h.Update)
	mux.HandleFunc("DELETE /api/documents/{doc_id}/annotations/{db_id}", h.Delete)
	return h, mux
}

const annoBody = `{"created":"2024-03-01T10:00:00Z","author":"alice","type":1,"pageIndex":2,"db_id":null,"contents":"hi","id":"anno-A"}`

func TestAnnotationCreateAndList(t *testing.T) {
	_, mux := setupAnnotationHandler(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/documents/7/annotations", strings.NewReader(annoBody)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201: %s", rec.Code, rec.Body)
	}

	var created model.Annotation
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal created: %v", err)
	}
	if created.DBID == nil {
		t.Fatal("created annotation has no db_id")
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/documents/7/annotations", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", rec.Code)
	}
	var listed []model.Annotation
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(listed) != 1 || listed[0].Author != "alice" {
		t.Errorf("listed = %+v, want one annotation by alice", listed)
	}
}

func TestAnnotationListPageFilter(t *testing.T) {
	_, mux := setupAnnotationHandler(t)

	for _, body := range []string{
		`{"created":"c","author":"a","type":1,"pageIndex":0,"db_id":null,"contents":null,"id":"x"}`,
		`{"created":"c","author":"a","type":1,"pageIndex":3,"db_id":null,"contents":null,"id":"y"}`,
	} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/documents/7/annotations", strings.NewReader(body)))
		if rec.Code != http.StatusCreated {
			t.Fatalf("create status = %d", rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/documents/7/annotations?page=3", nil))
	var listed []model.Annotation
	json.Unmarshal(rec.Body.Bytes(), &listed)
	if len(listed) != 1 || listed[0].PageIndex != 3 {
		t.Errorf("filtered list = %+v, want only page 3", listed)
	}
}

func TestAnnotationUpdateNotFound(t *testing.T) {
	_, mux := setupAnnotationHandler(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/api/documents/7/annotations/99", strings.NewReader(annoBody)))
	if rec.Code != http.StatusNotFound {
		t.Errorf("update status = %d, want 404", rec.Code)
	}
}

func TestAnnotationDelete(t *testing.T) {
	_, mux := setupAnnotationHandler(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/documents/7/annotations", strings.NewReader(annoBody)))
	var created model.Annotation
	json.Unmarshal(rec.Body.Bytes(), &created)

	url := "/api/documents/7/annotations/" + strconv.FormatInt(*created.DBID, 10)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, url, nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204: %s", rec.Code, rec.Body)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, url, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestAnnotationBadRequests(t *testing.T) {
	_, mux := setupAnnotationHandler(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/documents/abc/annotations", strings.NewReader(annoBody)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad doc id status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/documents/7/annotations", strings.NewReader("{not json")))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad body status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/documents/7/annotations?page=x", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad page status = %d, want 400", rec.Code)
	}
}
