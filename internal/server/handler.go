// Package server exposes a remote record store over the placekit record API.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"placekit/internal/codec"
	"placekit/internal/core"
	"placekit/internal/remote"
	"placekit/pkg/domain"
)

const (
	recordsPrefix = "/v1/records/"
	maxBodyBytes  = 1 << 20
)

// Handler serves /v1/records/ over a remote.Store.
type Handler struct {
	Records remote.Store
	Logger  core.Logger
}

// NewHandler constructs a record API handler. A nil logger is replaced with a
// no-op implementation.
func NewHandler(records remote.Store, logger core.Logger) *Handler {
	if logger == nil {
		logger = core.NewNoopLogger()
	}
	return &Handler{Records: records, Logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Records == nil {
		writeError(w, http.StatusInternalServerError, "record store not configured")
		return
	}
	path := strings.TrimSuffix(r.URL.EscapedPath(), "/")
	if !strings.HasPrefix(path+"/", recordsPrefix) {
		http.NotFound(w, r)
		return
	}
	segments, err := splitSegments(strings.TrimPrefix(path+"/", recordsPrefix))
	if err != nil || len(segments) == 0 || len(segments) > 2 {
		writeError(w, http.StatusNotFound, "record endpoint not found")
		return
	}
	recordType := segments[0]
	if len(segments) == 1 {
		switch r.Method {
		case http.MethodGet:
			h.handleList(w, r, recordType)
		case http.MethodDelete:
			h.handleDeleteAll(w, r, recordType)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}
	id := segments[1]
	switch r.Method {
	case http.MethodPut:
		h.handlePut(w, r, recordType, id)
	case http.MethodDelete:
		h.handleDelete(w, r, recordType, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func splitSegments(rest string) ([]string, error) {
	rest = strings.TrimSuffix(rest, "/")
	if rest == "" {
		return nil, nil
	}
	raw := strings.Split(rest, "/")
	out := make([]string, 0, len(raw))
	for _, seg := range raw {
		s, err := url.PathUnescape(seg)
		if err != nil {
			return nil, err
		}
		if s == "" {
			return nil, errors.New("empty path segment")
		}
		out = append(out, s)
	}
	return out, nil
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request, recordType string) {
	records, err := h.Records.FetchAll(r.Context(), recordType)
	if err != nil {
		h.writeStoreError(w, "fetch", err)
		return
	}
	if records == nil {
		records = []domain.PlacedObject{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request, recordType, id string) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "record payload too large")
		return
	}
	if err := codec.ValidateRecord(raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid record payload: "+err.Error())
		return
	}
	var obj domain.PlacedObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		writeError(w, http.StatusBadRequest, "invalid record payload")
		return
	}
	if obj.ID != id {
		writeError(w, http.StatusBadRequest, "record id does not match path")
		return
	}
	if err := obj.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.Records.Upsert(r.Context(), recordType, obj); err != nil {
		h.writeStoreError(w, "upsert", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request, recordType, id string) {
	ok, err := h.Records.Delete(r.Context(), recordType, id)
	if err != nil {
		h.writeStoreError(w, "delete", err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeleteAll(w http.ResponseWriter, r *http.Request, recordType string) {
	n, err := h.Records.DeleteAll(r.Context(), recordType)
	if err != nil {
		h.writeStoreError(w, "delete_all", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": n})
}

func (h *Handler) writeStoreError(w http.ResponseWriter, op string, err error) {
	h.Logger.Warn("record store operation failed", "op", op, "driver", string(h.Records.Driver()), "error", err)
	switch {
	case errors.Is(err, domain.ErrRemoteUnavailable):
		writeError(w, http.StatusServiceUnavailable, "record store unavailable")
	case errors.Is(err, domain.ErrSerialization):
		writeError(w, http.StatusBadGateway, "record store returned malformed data")
	default:
		writeError(w, http.StatusInternalServerError, "record store failure")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
