package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/haidar/ragchat/pkg/responder"
	"github.com/haidar/ragchat/pkg/store"
)

type uploadResponse struct {
	Message   string `json:"message"`
	Filename  string `json:"filename"`
	Pages     int    `json:"pages"`
	Chunks    int    `json:"chunks"`
	SessionID string `json:"session_id"`
}

type chatResponse struct {
	Answer    string   `json:"answer"`
	Sources   []string `json:"sources,omitempty"`
	SessionID string   `json:"session_id"`
}

type sessionInfoResponse struct {
	SessionID      string         `json:"session_id"`
	PDFInfo        map[string]any `json:"pdf_info,omitempty"`
	MessageCount   int            `json:"message_count"`
	HasVectorstore bool           `json:"has_vectorstore"`
}

type sessionListEntry struct {
	SessionID      string `json:"session_id"`
	HasVectorstore bool   `json:"has_vectorstore"`
	MessageCount   int    `json:"message_count"`
}

// handleHealth probes the embedding backend and reports service status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if _, err := s.embedder.Embed(ctx, "test"); err != nil {
		s.logger.Error().Err(err).Msg("Health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unhealthy",
			"error":  err.Error(),
			"note":   fmt.Sprintf("Make sure the embedding backend is reachable and %q is available", s.options.EmbeddingModel),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "healthy",
		"embedding_status": "connected",
		"embedding_model":  s.options.EmbeddingModel,
		"llm_model":        s.options.LLMModel,
		"active_sessions":  s.store.ActiveSessions(),
	})
}

// handleUpload accepts a multipart PDF upload and indexes it for the session
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	r.Body = http.MaxBytesReader(w, r.Body, s.options.MaxFileBytes+64*1024)
	if err := r.ParseMultipartForm(s.options.MaxFileBytes); err != nil {
		s.uploadFailed(w, http.StatusBadRequest, "failed to parse multipart form: file may exceed the size limit")
		return
	}

	sessionID := r.FormValue("session_id")
	if !validSessionID(sessionID) {
		s.uploadFailed(w, http.StatusBadRequest, "Invalid session ID format. Must start with 'session_' or 'portfolio_'")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.uploadFailed(w, http.StatusBadRequest, "PDF file is required")
		return
	}
	defer file.Close()

	if err := validateUpload(header.Filename, header.Size, s.options.MaxFileBytes); err != nil {
		s.uploadFailed(w, http.StatusBadRequest, err.Error())
		return
	}

	tempPath, err := s.saveTempUpload(file, header.Filename)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to save uploaded file")
		s.uploadFailed(w, http.StatusInternalServerError, "Failed to save uploaded file")
		return
	}
	defer s.cleanupTempFile(tempPath)

	s.logger.Info().
		Str("session_key", sessionID).
		Str("filename", header.Filename).
		Int64("bytes", header.Size).
		Msg("Processing PDF upload")

	unlock := s.store.LockSession(sessionID)
	meta, err := s.store.BuildIndex(r.Context(), tempPath, sessionID)
	unlock()
	if err != nil {
		s.logger.Error().Err(err).Str("session_key", sessionID).Msg("Failed to process PDF")
		s.uploadFailed(w, http.StatusInternalServerError, err.Error())
		return
	}

	if s.metrics != nil {
		s.metrics.UploadsTotal.WithLabelValues("success").Inc()
		s.metrics.UploadDuration.Observe(time.Since(start).Seconds())
		s.metrics.PagesIndexed.Add(float64(meta.Pages))
		s.metrics.ChunksIndexed.Add(float64(meta.Chunks))
		s.metrics.SessionsActive.Set(float64(s.store.ActiveSessions()))
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		Message:   fmt.Sprintf("Successfully uploaded and processed %s", header.Filename),
		Filename:  header.Filename,
		Pages:     meta.Pages,
		Chunks:    meta.Chunks,
		SessionID: sessionID,
	})
}

func (s *Server) uploadFailed(w http.ResponseWriter, status int, detail string) {
	if s.metrics != nil {
		s.metrics.UploadsTotal.WithLabelValues("error").Inc()
	}
	writeError(w, status, detail)
}

// saveTempUpload writes the upload to a uniquely named temp file
func (s *Server) saveTempUpload(file io.Reader, filename string) (string, error) {
	if err := os.MkdirAll(s.options.TempUploadDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create temp upload directory: %w", err)
	}

	name := uuid.New().String() + "_" + filepath.Base(filename)
	path := filepath.Join(s.options.TempUploadDir, name)

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	return path, nil
}

func (s *Server) cleanupTempFile(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn().Err(err).Str("file", path).Msg("Could not delete temp file")
	}
}

// handleChat answers a prompt against the session's uploaded document
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		s.chatFailed(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	req, err := parseChatRequest(body)
	if err != nil {
		s.chatFailed(w, http.StatusBadRequest, err.Error())
		return
	}

	if !validSessionID(req.SessionID) {
		s.chatFailed(w, http.StatusBadRequest, "Invalid session ID format. Must start with 'session_' or 'portfolio_'")
		return
	}

	prompt, err := validatePrompt(req.Prompt)
	if err != nil {
		s.chatFailed(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.chat.Respond(r.Context(), req.SessionID, prompt)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			s.chatFailed(w, http.StatusBadRequest, "No PDF has been uploaded for this session. Please upload a PDF first.")
			return
		}

		var genErr *responder.GenerationError
		if errors.As(err, &genErr) {
			s.logger.Error().Err(err).Str("session_key", req.SessionID).Msg("Failed to generate response")
			s.chatFailed(w, http.StatusInternalServerError, err.Error())
			return
		}

		s.chatFailed(w, http.StatusBadRequest, err.Error())
		return
	}

	if s.metrics != nil {
		s.metrics.ChatRequestsTotal.WithLabelValues("success").Inc()
		s.metrics.ChatDuration.Observe(time.Since(start).Seconds())
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Answer:    result.Answer,
		Sources:   result.Sources,
		SessionID: req.SessionID,
	})
}

func (s *Server) chatFailed(w http.ResponseWriter, status int, detail string) {
	if s.metrics != nil {
		s.metrics.ChatRequestsTotal.WithLabelValues("error").Inc()
	}
	writeError(w, status, detail)
}

// handleSessionInfo reports metadata for a single session
func (s *Server) handleSessionInfo(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	if !s.store.HasIndex(sessionID) {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}

	resp := sessionInfoResponse{
		SessionID:      sessionID,
		MessageCount:   s.store.CountMessages(sessionID),
		HasVectorstore: true,
	}

	if ix, err := s.store.GetIndex(sessionID); err == nil {
		meta := ix.Meta()
		resp.PDFInfo = map[string]any{
			"pages":      meta.Pages,
			"chunks":     meta.Chunks,
			"dimension":  meta.Dimension,
			"created_at": meta.CreatedAt,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleDeleteSession removes a session's index and history
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	if err := s.store.Delete(sessionID); err != nil {
		s.logger.Error().Err(err).Str("session_key", sessionID).Msg("Failed to delete session")
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to delete session: %v", err))
		return
	}

	if s.metrics != nil {
		s.metrics.SessionsDeleted.Inc()
		s.metrics.SessionsActive.Set(float64(s.store.ActiveSessions()))
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Session %s deleted successfully", sessionID),
	})
}

// handleClearHistory wipes a session's conversation but keeps its index
func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	if !s.store.Exists(sessionID) {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}

	s.store.ClearHistory(sessionID)

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Chat history cleared successfully",
	})
}

// handleListSessions lists sessions that have a durable index
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	keys, err := s.store.ListSessions()
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list sessions")
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	sessions := make([]sessionListEntry, 0, len(keys))
	for _, key := range keys {
		sessions = append(sessions, sessionListEntry{
			SessionID:      key,
			HasVectorstore: true,
			MessageCount:   s.store.CountMessages(key),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
	})
}
