package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dukerupert/annex/internal/annotator"
	"github.com/dukerupert/annex/internal/linksync"
	"github.com/dukerupert/annex/internal/paperless"
)

// AdminHandler exposes the corpus-wide maintenance operations: link
// reconciliation, bulk deletions, and the document-added webhook. It runs
// against the server's own Paperless credentials.
type AdminHandler struct {
	annotator *annotator.Annotator
	syncer    *linksync.Syncer
	client    *paperless.Client
	logger    *slog.Logger
}

func NewAdminHandler(a *annotator.Annotator, syncer *linksync.Syncer, client *paperless.Client, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{annotator: a, syncer: syncer, client: client, logger: logger}
}

// SyncLinks runs one reconciliation pass immediately.
func (h *AdminHandler) SyncLinks(w http.ResponseWriter, r *http.Request) {
	touched, err := h.syncer.UpdateLinks(r.Context(), h.client, nil)
	if err != nil {
		h.logger.Error("sync links", "error", err)
		writeError(w, http.StatusInternalServerError, "link sync failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"documents_updated": len(touched)})
}

// DeleteLinks removes the link field from every document.
func (h *AdminHandler) DeleteLinks(w http.ResponseWriter, r *http.Request) {
	removed, err := h.syncer.DeleteAllLinks(r.Context(), h.client)
	if err != nil {
		h.logger.Error("delete links", "error", err)
		writeError(w, http.StatusInternalServerError, "link deletion failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"documents_updated": removed})
}

// DeleteAnnotations removes every annotation from every document.
func (h *AdminHandler) DeleteAnnotations(w http.ResponseWriter, r *http.Request) {
	processed, err := h.annotator.DeleteAllAnnotations(r.Context(), nil)
	if err != nil {
		h.logger.Error("delete annotations", "error", err)
		writeError(w, http.StatusInternalServerError, "annotation deletion failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"documents_processed": len(processed)})
}

type webhookRequest struct {
	DocID int64 `json:"doc_id"`
}

// DocumentAdded handles the Paperless post-consume webhook by linking the
// new document right away.
func (h *AdminHandler) DocumentAdded(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DocID == 0 {
		writeError(w, http.StatusBadRequest, "doc_id is required")
		return
	}

	if err := h.syncer.SetLink(r.Context(), h.client, req.DocID); err != nil {
		h.logger.Error("link new document", "doc_id", req.DocID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to link document")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "linked"})
}
