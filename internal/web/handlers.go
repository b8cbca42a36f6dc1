package web

import (
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/zombor/doc-capture/internal/capture"
	"github.com/zombor/doc-capture/internal/extraction"
	"github.com/zombor/doc-capture/internal/logger"
)

// maxFormSize bounds uploads; high-resolution phone photos fit comfortably
const maxFormSize = int64(50 << 20)

// stateResponse is the JSON form of a capture.State
type stateResponse struct {
	Filename       string             `json:"filename,omitempty"`
	Preview        string             `json:"preview,omitempty"`
	PreviewPending bool               `json:"preview_pending"`
	Submission     string             `json:"submission"`
	CanSubmit      bool               `json:"can_submit"`
	SubmitLabel    string             `json:"submit_label"`
	Result         *extraction.Result `json:"result,omitempty"`
	ResultFilename string             `json:"result_filename,omitempty"`
	Error          string             `json:"error,omitempty"`
}

func newStateResponse(state capture.State) stateResponse {
	return stateResponse{
		Filename:       state.Filename,
		Preview:        state.Preview,
		PreviewPending: state.PreviewPending,
		Submission:     state.Submission.String(),
		CanSubmit:      state.CanSubmit(),
		SubmitLabel:    state.SubmitLabel(),
		Result:         state.Result,
		ResultFilename: state.ResultFilename,
		Error:          state.Error,
	}
}

// pageView feeds the index template
type pageView struct {
	State   capture.State
	Preview template.URL
	Refresh bool
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// wantsJSON reports whether the caller asked for JSON instead of a redirect
func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// respondWithState answers a state-changing request
func (s *Server) respondWithState(w http.ResponseWriter, r *http.Request) {
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, newStateResponse(s.controller.Snapshot()))
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleIndex renders the capture page
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	state := s.controller.Snapshot()
	view := pageView{
		State: state,
		// The preview is a data URL produced by our own encoder
		Preview: template.URL(state.Preview),
		Refresh: state.Submission == capture.Submitting || state.PreviewPending,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	if err := s.page.Execute(w, view); err != nil {
		logger.WithContext(r.Context()).Error("Error rendering page", "error", err)
	}
}

// handleState returns the current state as JSON
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newStateResponse(s.controller.Snapshot()))
}

// handleSelect replaces the selected document with the uploaded file
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	log := logger.WithContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		log.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			errorMsg = "File is too large. Maximum size is 50MB. Please compress or resize your image."
		}
		writeError(w, http.StatusBadRequest, errorMsg)
		return
	}

	f, header, err := r.FormFile(extraction.FormField)
	if errors.Is(err, http.ErrMissingFile) {
		// An empty pick leaves the current selection alone
		s.respondWithState(w, r)
		return
	}
	if err != nil {
		log.Error("Error getting file from form", "error", err)
		writeError(w, http.StatusBadRequest, "Error reading upload")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		log.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, http.StatusInternalServerError, "Error reading file. Please try again.")
		return
	}

	contentType := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = capture.ContentTypeFromFilename(header.Filename)
	}

	s.controller.SelectFile(extraction.Document{
		Filename:    header.Filename,
		ContentType: contentType,
		Data:        data,
	})
	log.Info("Document selected", "filename", header.Filename, "content_type", contentType, "size", len(data))

	s.respondWithState(w, r)
}

// handleSubmit starts an extraction of the selected document
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if started := s.controller.Submit(); !started {
		logger.WithContext(r.Context()).Debug("Submit did not start a request")
	}
	s.respondWithState(w, r)
}

// handleHistory returns recent outcomes, newest first
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := s.historyLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	outcomes := []*capture.Outcome{}
	if s.history != nil {
		listed, err := s.history.List(limit)
		if err != nil {
			logger.WithContext(r.Context()).Error("Error listing history", "error", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		if listed != nil {
			outcomes = listed
		}
	}

	writeJSON(w, http.StatusOK, outcomes)
}

// handleHealth reports liveness
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
