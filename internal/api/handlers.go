package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/flaggdavid-source/lifeboat/internal/chat"
	"github.com/flaggdavid-source/lifeboat/internal/events"
	"github.com/flaggdavid-source/lifeboat/internal/extract"
	"github.com/flaggdavid-source/lifeboat/internal/parse"
	"github.com/flaggdavid-source/lifeboat/internal/profile"
	"github.com/flaggdavid-source/lifeboat/internal/store"
)

// Uploads larger than this are rejected before parsing.
const maxUploadBytes = 256 << 20

type conversationSummary struct {
	ID           int       `json:"id"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
	TextSize     int       `json:"text_size"`
	Created      time.Time `json:"created,omitempty"`
	Updated      time.Time `json:"updated,omitempty"`
}

// parseUpload accepts a raw export file (body bytes, filename hint in the
// "filename" query parameter) and holds the parsed batch for a following
// extraction call.
func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("read upload: %w", err))
		return
	}

	convs, err := parse.Parse(data, r.URL.Query().Get("filename"))
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, parse.ErrUnsupportedFormat) {
			status = http.StatusUnsupportedMediaType
		}
		writeError(w, status, err)
		return
	}
	parse.SortForDisplay(convs)

	s.mu.Lock()
	s.batch = convs
	s.mu.Unlock()

	summaries := make([]conversationSummary, len(convs))
	for i, c := range convs {
		summaries[i] = conversationSummary{
			ID:           c.ID,
			Title:        c.Title,
			MessageCount: c.MessageCount(),
			TextSize:     c.TextSize(),
			Created:      c.Created,
			Updated:      c.Updated,
		}
	}
	s.logger.Info("export parsed", "conversations", len(convs))
	writeJSON(w, http.StatusOK, map[string]any{"conversations": summaries})
}

type extractRequest struct {
	// ConversationIDs selects conversations from the last parsed batch.
	// Empty means all of them.
	ConversationIDs []int `json:"conversation_ids"`
}

// runExtraction executes the full pipeline synchronously and returns the
// finished profile. Progress is observable via the status endpoint and the
// event stream; cancellation via the cancel endpoint.
func (s *Server) runExtraction(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	selected, err := s.selectConversations(req.ConversationIDs)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.events.Publish(events.SubjectExtractionStarted, map[string]any{
		"conversations": len(selected),
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	})

	result, err := s.pipeline.Run(r.Context(), selected)
	switch {
	case errors.Is(err, extract.ErrBusy):
		writeError(w, http.StatusConflict, err)
		return
	case errors.Is(err, extract.ErrCancelled):
		s.events.Publish(events.SubjectExtractionFailed, map[string]string{"reason": "cancelled"})
		writeError(w, http.StatusConflict, err)
		return
	case err != nil:
		s.events.Publish(events.SubjectExtractionFailed, map[string]string{"reason": err.Error()})
		writeError(w, http.StatusBadGateway, err)
		return
	}

	s.events.Publish(events.SubjectExtractionCompleted, map[string]any{
		"source_messages": result.SourceMessages,
		"name":            result.Name,
	})
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) selectConversations(ids []int) ([]parse.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.batch) == 0 {
		return nil, errors.New("no parsed export available; upload one first")
	}
	if len(ids) == 0 {
		out := make([]parse.Conversation, len(s.batch))
		copy(out, s.batch)
		return out, nil
	}

	byID := make(map[int]parse.Conversation, len(s.batch))
	for _, c := range s.batch {
		byID[c.ID] = c
	}
	var out []parse.Conversation
	for _, id := range ids {
		c, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("unknown conversation id %d", id)
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *Server) extractionStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.pipeline.Status())
}

func (s *Server) cancelExtraction(w http.ResponseWriter, r *http.Request) {
	s.pipeline.Cancel()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}

func (s *Server) listProfiles(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profiles": records})
}

// saveProfile persists a profile produced by this service (an extraction
// result round-tripped by the client). External documents go through the
// import endpoint instead.
func (s *Server) saveProfile(w http.ResponseWriter, r *http.Request) {
	var p profile.CompanionProfile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode profile: %w", err))
		return
	}

	id, err := s.store.Save(r.Context(), "", &p)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.events.Publish(events.SubjectProfileSaved, map[string]string{"id": id, "name": p.Name})
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

// importProfile validates an arbitrary external document. When injection
// findings exist the caller must resubmit with acknowledge_findings=true;
// nothing is persisted until then.
func (s *Server) importProfile(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("read upload: %w", err))
		return
	}

	imp, err := store.PrepareImport(data)
	if errors.Is(err, store.ErrInvalidImport) {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	acknowledged := r.URL.Query().Get("acknowledge_findings") == "true"
	if len(imp.Findings) > 0 && !acknowledged {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":    "injection patterns detected; resubmit with acknowledge_findings=true to import anyway",
			"findings": imp.Findings,
		})
		return
	}

	id, err := s.store.Save(r.Context(), imp.ID, imp.Profile)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.events.Publish(events.SubjectProfileSaved, map[string]string{"id": id, "name": imp.Profile.Name})
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "findings": imp.Findings})
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) deleteProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.store.Delete(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.mu.Lock()
	delete(s.chats, id)
	s.mu.Unlock()

	s.events.Publish(events.SubjectProfileDeleted, map[string]string{"id": id})
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// exportProfile returns the profile as a pretty-printed JSON document, or
// just the system prompt as plain text with format=prompt.
func (s *Server) exportProfile(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if r.URL.Query().Get("format") == "prompt" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, rec.Profile.SystemPrompt)
		return
	}

	data, err := profile.ExportJSON(rec.Profile)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

type chatRequest struct {
	ProfileID string `json:"profile_id"`
	Message   string `json:"message"`
}

// chatSend streams the companion's reply as plain text chunks.
func (s *Server) chatSend(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, errors.New("message is required"))
		return
	}

	session, err := s.chatSession(r, req.ProfileID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusBadRequest, err)
		return
	}

	// The success header is written on the first delta, so failures that
	// happen before any output can still pick their own status.
	flusher, _ := w.(http.Flusher)
	headerSent := false
	_, err = session.Send(r.Context(), req.Message, func(delta string) {
		if !headerSent {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			headerSent = true
		}
		io.WriteString(w, delta)
		if flusher != nil {
			flusher.Flush()
		}
	})
	if err != nil {
		if headerSent {
			// Mid-stream failure; the status is already on the wire.
			s.logger.Error("chat reply failed", "profile_id", req.ProfileID, "error", err)
			return
		}
		if errors.Is(err, chat.ErrReplyInFlight) {
			writeError(w, http.StatusConflict, err)
			return
		}
		writeError(w, http.StatusBadGateway, err)
		return
	}
	if !headerSent {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
	}
}

func (s *Server) chatSession(r *http.Request, profileID string) (*chat.Session, error) {
	s.mu.Lock()
	if session, ok := s.chats[profileID]; ok {
		s.mu.Unlock()
		return session, nil
	}
	s.mu.Unlock()

	rec, err := s.store.Get(r.Context(), profileID)
	if err != nil {
		return nil, err
	}
	session, err := chat.NewSession(s.llm, rec.Profile)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.chats[profileID] = session
	s.mu.Unlock()
	return session, nil
}
