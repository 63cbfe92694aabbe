package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/liaisonhq/liaison/internal/agent"
	"github.com/liaisonhq/liaison/internal/extract"
	"github.com/liaisonhq/liaison/internal/memory"
	"github.com/liaisonhq/liaison/internal/search"
	"github.com/liaisonhq/liaison/internal/storage"
	"github.com/liaisonhq/liaison/pkg/types"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeStorageError maps domain errors to HTTP statuses.
func writeStorageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, storage.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, agent.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

type executeRequest struct {
	Instruction string `json:"instruction"`
	PropertyID  string `json:"property_id"`
	ContactID   string `json:"contact_id"`
	InitiatedBy string `json:"initiated_by"`
	AutoExecute *bool  `json:"auto_execute"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	autoExecute := s.cfg.Agent.AutoExecute
	if req.AutoExecute != nil {
		autoExecute = *req.AutoExecute
	}

	task, err := s.orchestrator.Execute(r.Context(), agent.ExecuteRequest{
		Instruction: req.Instruction,
		Scope:       types.Scope{PropertyID: req.PropertyID, ContactID: req.ContactID},
		InitiatedBy: req.InitiatedBy,
		AutoExecute: autoExecute,
	})
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

type previewRequest struct {
	PropertyID string `json:"property_id"`
	ContactID  string `json:"contact_id"`
	Purpose    string `json:"purpose"`
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	agentCtx := s.assembler.Build(r.Context(),
		types.Scope{PropertyID: req.PropertyID, ContactID: req.ContactID}, req.Purpose)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"context": agentCtx,
		"prompt":  agent.FormatPrompt(agentCtx),
	})
}

type interactionCompletedRequest struct {
	CallID     string `json:"call_id"`
	SMSID      string `json:"sms_id"`
	Transcript string `json:"transcript"`
}

func (s *Server) handleInteractionCompleted(w http.ResponseWriter, r *http.Request) {
	var req interactionCompletedRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.CallID == "" && req.SMSID == "" {
		writeError(w, http.StatusBadRequest, "call_id or sms_id is required")
		return
	}

	task, err := s.orchestrator.OnInteractionCompleted(r.Context(), req.CallID, req.SMSID, req.Transcript)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

type createMemoryRequest struct {
	PropertyID string                 `json:"property_id"`
	ContactID  string                 `json:"contact_id"`
	MemoryType string                 `json:"memory_type"`
	Content    string                 `json:"content"`
	SourceType string                 `json:"source_type"`
	SourceID   string                 `json:"source_id"`
	Confidence float64                `json:"confidence"`
	Importance float64                `json:"importance"`
	ExpiresAt  *time.Time             `json:"expires_at"`
	Metadata   map[string]interface{} `json:"metadata"`
	CreatedBy  string                 `json:"created_by"`
}

func (s *Server) handleCreateMemory(w http.ResponseWriter, r *http.Request) {
	var req createMemoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	mem, err := s.memories.CreateMemory(r.Context(), memory.CreateMemoryInput{
		Scope:      types.Scope{PropertyID: req.PropertyID, ContactID: req.ContactID},
		Type:       types.MemoryType(req.MemoryType),
		Content:    req.Content,
		SourceType: types.SourceType(req.SourceType),
		SourceID:   req.SourceID,
		Confidence: req.Confidence,
		Importance: req.Importance,
		ExpiresAt:  req.ExpiresAt,
		Metadata:   req.Metadata,
		CreatedBy:  req.CreatedBy,
	})
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, mem)
}

func (s *Server) handleListMemories(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.MemoryFilter{
		Scope: types.Scope{
			PropertyID: q.Get("property_id"),
			ContactID:  q.Get("contact_id"),
		},
		Status: types.MemoryStatus(q.Get("status")),
	}
	if t := q.Get("type"); t != "" {
		filter.Types = []types.MemoryType{types.MemoryType(t)}
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(q.Get("offset")); err == nil {
		filter.Offset = offset
	}

	memories, err := s.memories.ListMemories(r.Context(), filter)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"memories": memories})
}

func (s *Server) handleGetMemory(w http.ResponseWriter, r *http.Request) {
	mem, err := s.memories.GetMemory(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mem)
}

type updateMemoryRequest struct {
	Content    *string                `json:"content"`
	MemoryType *string                `json:"memory_type"`
	Confidence *float64               `json:"confidence"`
	Importance *float64               `json:"importance"`
	Status     *string                `json:"status"`
	ExpiresAt  *time.Time             `json:"expires_at"`
	Metadata   map[string]interface{} `json:"metadata"`
}

func (s *Server) handleUpdateMemory(w http.ResponseWriter, r *http.Request) {
	var req updateMemoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	input := memory.UpdateMemoryInput{
		Content:    req.Content,
		Confidence: req.Confidence,
		Importance: req.Importance,
		ExpiresAt:  req.ExpiresAt,
		Metadata:   req.Metadata,
	}
	if req.MemoryType != nil {
		mt := types.MemoryType(*req.MemoryType)
		input.Type = &mt
	}
	if req.Status != nil {
		st := types.MemoryStatus(*req.Status)
		input.Status = &st
	}

	mem, err := s.memories.UpdateMemory(r.Context(), r.PathValue("id"), input)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mem)
}

func (s *Server) handleDeleteMemory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	// Archive by default; hard delete only on explicit request.
	var err error
	if r.URL.Query().Get("hard") == "true" {
		err = s.memories.DeleteMemory(r.Context(), id)
	} else {
		err = s.memories.ArchiveMemory(r.Context(), id)
	}
	if err != nil {
		writeStorageError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type searchRequest struct {
	Query         string   `json:"query"`
	PropertyID    string   `json:"property_id"`
	ContactID     string   `json:"contact_id"`
	Types         []string `json:"types"`
	Limit         int      `json:"limit"`
	MinSimilarity float64  `json:"min_similarity"`
}

func (s *Server) handleSearchMemories(w http.ResponseWriter, r *http.Request) {
	if s.searchEngine == nil {
		writeError(w, http.StatusServiceUnavailable, "semantic search is not configured")
		return
	}

	var req searchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	searchReq := search.Request{
		Query:         req.Query,
		Scope:         types.Scope{PropertyID: req.PropertyID, ContactID: req.ContactID},
		Limit:         req.Limit,
		MinSimilarity: req.MinSimilarity,
	}
	for _, t := range req.Types {
		searchReq.Types = append(searchReq.Types, types.MemoryType(t))
	}

	results, err := s.searchEngine.Search(r.Context(), searchReq)
	if err != nil {
		if errors.Is(err, search.ErrEmbeddingUnavailable) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeStorageError(w, err)
		return
	}

	type resultPayload struct {
		Memory     types.Memory `json:"memory"`
		Similarity float64      `json:"similarity"`
	}
	payload := make([]resultPayload, 0, len(results))
	for _, res := range results {
		payload = append(payload, resultPayload{Memory: res.Memory, Similarity: res.Similarity})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": payload})
}

type extractRequest struct {
	PropertyID string     `json:"property_id"`
	ContactID  string     `json:"contact_id"`
	SourceType string     `json:"source_type"`
	SourceID   string     `json:"source_id"`
	Transcript string     `json:"transcript"`
	OccurredAt *time.Time `json:"occurred_at"`
	CreatedBy  string     `json:"created_by"`
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	if s.extractor == nil {
		writeError(w, http.StatusServiceUnavailable, "extraction is not configured")
		return
	}

	var req extractRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Transcript == "" || req.SourceID == "" {
		writeError(w, http.StatusBadRequest, "transcript and source_id are required")
		return
	}

	job := extract.Job{
		Scope:      types.Scope{PropertyID: req.PropertyID, ContactID: req.ContactID},
		SourceType: types.SourceType(req.SourceType),
		SourceID:   req.SourceID,
		Transcript: req.Transcript,
		CreatedBy:  req.CreatedBy,
	}
	if req.OccurredAt != nil {
		job.OccurredAt = *req.OccurredAt
	}

	if err := s.extractor.Submit(job); err != nil {
		if errors.Is(err, extract.ErrQueueFull) {
			writeError(w, http.StatusTooManyRequests, err.Error())
			return
		}
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "source_id": req.SourceID})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.TaskFilter{
		Scope: types.Scope{
			PropertyID: q.Get("property_id"),
			ContactID:  q.Get("contact_id"),
		},
		Status:      types.TaskStatus(q.Get("status")),
		TaskType:    types.TaskType(q.Get("type")),
		InitiatedBy: q.Get("initiated_by"),
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(q.Get("offset")); err == nil {
		filter.Offset = offset
	}

	tasks, err := s.orchestrator.ListTasks(r.Context(), filter)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tasks": tasks})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.orchestrator.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleTaskSteps(w http.ResponseWriter, r *http.Request) {
	steps, err := s.orchestrator.TaskSteps(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"steps": steps})
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.orchestrator.Cancel(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.memories.GetOrCreatePreferences(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

type updatePreferencesRequest struct {
	PreferredChannel *string  `json:"preferred_channel"`
	PreferredTime    *string  `json:"preferred_time"`
	PreferredDays    []string `json:"preferred_days"`
	Timezone         *string  `json:"timezone"`
	FormalityLevel   *string  `json:"formality_level"`
	Language         *string  `json:"language"`
	DoNotCall        *bool    `json:"do_not_call"`
	DoNotText        *bool    `json:"do_not_text"`
	DoNotEmail       *bool    `json:"do_not_email"`
	Notes            *string  `json:"notes"`
}

func (s *Server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var req updatePreferencesRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	prefs, err := s.memories.GetOrCreatePreferences(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStorageError(w, err)
		return
	}

	if req.PreferredChannel != nil {
		prefs.PreferredChannel = *req.PreferredChannel
	}
	if req.PreferredTime != nil {
		prefs.PreferredTime = *req.PreferredTime
	}
	if req.PreferredDays != nil {
		prefs.PreferredDays = req.PreferredDays
	}
	if req.Timezone != nil {
		prefs.Timezone = *req.Timezone
	}
	if req.FormalityLevel != nil {
		prefs.FormalityLevel = *req.FormalityLevel
	}
	if req.Language != nil {
		prefs.Language = *req.Language
	}
	if req.DoNotCall != nil {
		prefs.DoNotCall = *req.DoNotCall
	}
	if req.DoNotText != nil {
		prefs.DoNotText = *req.DoNotText
	}
	if req.DoNotEmail != nil {
		prefs.DoNotEmail = *req.DoNotEmail
	}
	if req.Notes != nil {
		prefs.Notes = *req.Notes
	}

	if err := s.memories.UpdatePreferences(r.Context(), prefs); err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}
