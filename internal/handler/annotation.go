package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/dukerupert/annex/internal/annotator"
	"github.com/dukerupert/annex/internal/event"
	"github.com/dukerupert/annex/internal/model"
)

type AnnotationHandler struct {
	annotator *annotator.Annotator
	hub       *event.Hub
	logger    *slog.Logger
}

func NewAnnotationHandler(a *annotator.Annotator, hub *event.Hub, logger *slog.Logger) *AnnotationHandler {
	return &AnnotationHandler{annotator: a, hub: hub, logger: logger}
}

func (h *AnnotationHandler) broadcast(ev event.Event) {
	if h.hub != nil {
		h.hub.Broadcast(ev)
	}
}

// List returns a document's annotations, optionally filtered to one
// zero-based page via ?page=N.
func (h *AnnotationHandler) List(w http.ResponseWriter, r *http.Request) {
	docID, err := pathID(r, "doc_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return
	}

	var page *int
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := pathInt(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid page")
			return
		}
		page = &n
	}

	annos, err := h.annotator.Annotations(r.Context(), docID, page)
	if err != nil {
		h.logger.Error("list annotations", "doc_id", docID, "error", err)
		writeError(w, storeStatus(err), "failed to list annotations")
		return
	}
	if annos == nil {
		annos = []*model.Annotation{}
	}
	writeJSON(w, http.StatusOK, annos)
}

func (h *AnnotationHandler) Create(w http.ResponseWriter, r *http.Request) {
	docID, err := pathID(r, "doc_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return
	}

	var anno model.Annotation
	if err := json.NewDecoder(r.Body).Decode(&anno); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	created, err := h.annotator.Create(r.Context(), docID, &anno)
	if err != nil {
		h.logger.Error("create annotation", "doc_id", docID, "error", err)
		writeError(w, storeStatus(err), "failed to create annotation")
		return
	}

	h.broadcast(event.AnnotationCreated(docID, created.PageIndex, *created.DBID, created.DomainID()))
	writeJSON(w, http.StatusCreated, created)
}

func (h *AnnotationHandler) Update(w http.ResponseWriter, r *http.Request) {
	docID, err := pathID(r, "doc_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return
	}
	dbID, err := pathID(r, "db_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid annotation id")
		return
	}

	var anno model.Annotation
	if err := json.NewDecoder(r.Body).Decode(&anno); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	anno.DBID = &dbID

	updated, err := h.annotator.Update(r.Context(), docID, &anno)
	if err != nil {
		h.logger.Error("update annotation", "doc_id", docID, "db_id", dbID, "error", err)
		writeError(w, storeStatus(err), "failed to update annotation")
		return
	}

	h.broadcast(event.AnnotationUpdated(docID, updated.PageIndex, *updated.DBID, updated.DomainID()))
	writeJSON(w, http.StatusOK, updated)
}

func (h *AnnotationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	docID, err := pathID(r, "doc_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return
	}
	dbID, err := pathID(r, "db_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid annotation id")
		return
	}

	annos, err := h.annotator.Annotations(r.Context(), docID, nil)
	if err != nil {
		h.logger.Error("load annotations", "doc_id", docID, "error", err)
		writeError(w, storeStatus(err), "failed to load annotations")
		return
	}
	var target *model.Annotation
	for _, a := range annos {
		if a.DBID != nil && *a.DBID == dbID {
			target = a
			break
		}
	}
	if target == nil {
		writeError(w, http.StatusNotFound, "annotation not found")
		return
	}

	deleted, err := h.annotator.Delete(r.Context(), docID, target)
	if err != nil {
		h.logger.Error("delete annotation", "doc_id", docID, "db_id", dbID, "error", err)
		writeError(w, storeStatus(err), "failed to delete annotation")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "annotation not found")
		return
	}

	h.broadcast(event.AnnotationDeleted(docID, target.PageIndex, dbID))
	w.WriteHeader(http.StatusNoContent)
}

// Download streams the raw document file through to the caller.
func (h *AnnotationHandler) Download(w http.ResponseWriter, r *http.Request) {
	docID, err := pathID(r, "doc_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return
	}

	data, err := h.annotator.Download(r.Context(), docID)
	if err != nil {
		h.logger.Error("download document", "doc_id", docID, "error", err)
		writeError(w, http.StatusBadGateway, "failed to download document")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("document-%d.pdf", docID)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
