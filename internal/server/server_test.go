package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liaisonhq/liaison/internal/agent"
	"github.com/liaisonhq/liaison/internal/config"
	"github.com/liaisonhq/liaison/internal/extract"
	"github.com/liaisonhq/liaison/internal/memory"
	"github.com/liaisonhq/liaison/internal/storage/sqlite"
	"github.com/liaisonhq/liaison/pkg/types"
)

type stubGenerator struct{ intentJSON string }

func (s *stubGenerator) Complete(_ context.Context, prompt string) (string, error) {
	if strings.Contains(prompt, "parses user instructions") {
		return s.intentJSON, nil
	}
	return "{}", nil
}

func (s *stubGenerator) GetModel() string { return "stub-model" }

type stubContacts struct{ contact *types.ContactInfo }

func (s *stubContacts) GetContact(_ context.Context, _ string) (*types.ContactInfo, error) {
	return s.contact, nil
}

type stubCalls struct{ callID string }

func (s *stubCalls) Place(_ context.Context, _, _, _ string) (string, error) {
	return s.callID, nil
}

type stubMessages struct{ smsID string }

func (s *stubMessages) Send(_ context.Context, _, _ string) (string, error) {
	return s.smsID, nil
}

type stubExtractor struct {
	jobs []extract.Job
	err  error
}

func (s *stubExtractor) Submit(job extract.Job) error {
	if s.err != nil {
		return s.err
	}
	s.jobs = append(s.jobs, job)
	return nil
}

type serverFixture struct {
	ts        *httptest.Server
	store     *sqlite.Store
	extractor *stubExtractor
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cfg := &config.Config{
		Server: config.ServerConfig{RateLimit: 1000, RateBurst: 1000},
		Agent:  config.AgentConfig{AutoExecute: true},
	}

	gen := &stubGenerator{intentJSON: `{
		"task_type": "call",
		"action": "make_call",
		"target": "John Smith",
		"purpose": "discuss the inspection",
		"requires_contact": true
	}`}
	contacts := &stubContacts{contact: &types.ContactInfo{
		ID: "contact-1", Name: "John Smith", Phone: "+15550001111",
	}}

	svc := memory.NewService(store, nil, nil)
	assembler := agent.NewAssembler(svc, nil, nil, contacts, nil)
	extractor := &stubExtractor{}
	orch := agent.NewOrchestrator(store.Tasks(), assembler, gen,
		&stubCalls{callID: "call-abc"}, &stubMessages{smsID: "sms-abc"}, extractor, nil)

	srv := New(cfg, Deps{
		Memories:     svc,
		Assembler:    assembler,
		Orchestrator: orch,
		Extractor:    extractor,
	}, nil)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &serverFixture{ts: ts, store: store, extractor: extractor}
}

func (f *serverFixture) request(t *testing.T, method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.ts.URL+path, &buf)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var decoded map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestHealthEndpoint(t *testing.T) {
	f := newServerFixture(t)

	resp, body := f.request(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["embedding_available"])
}

func TestMemoryCRUDOverHTTP(t *testing.T) {
	f := newServerFixture(t)

	resp, created := f.request(t, http.MethodPost, "/api/v1/memories", map[string]interface{}{
		"property_id": "prop-1",
		"memory_type": "fact",
		"content":     "Roof was replaced in 2024",
		"source_type": "note",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)

	resp, got := f.request(t, http.MethodGet, "/api/v1/memories/"+id, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Roof was replaced in 2024", got["content"])

	resp, updated := f.request(t, http.MethodPatch, "/api/v1/memories/"+id, map[string]interface{}{
		"importance": 0.9,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0.9, updated["importance"])

	resp, listed := f.request(t, http.MethodGet, "/api/v1/memories?property_id=prop-1", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, listed["memories"], 1)

	resp, _ = f.request(t, http.MethodDelete, "/api/v1/memories/"+id, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Archived rows drop out of the default listing but remain fetchable.
	resp, listed = f.request(t, http.MethodGet, "/api/v1/memories?property_id=prop-1", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, listed["memories"])
	resp, _ = f.request(t, http.MethodGet, "/api/v1/memories/"+id, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMemoryNotFound(t *testing.T) {
	f := newServerFixture(t)

	resp, _ := f.request(t, http.MethodGet, "/api/v1/memories/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExecuteEndpoint(t *testing.T) {
	f := newServerFixture(t)

	resp, task := f.request(t, http.MethodPost, "/api/v1/agent/execute", map[string]interface{}{
		"instruction":  "Call John about the inspection",
		"contact_id":   "contact-1",
		"initiated_by": "user-1",
		"auto_execute": true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "waiting", task["status"])
	assert.Equal(t, "call-abc", task["call_id"])
}

func TestExecuteDefaultsToAutoExecute(t *testing.T) {
	f := newServerFixture(t)

	// A request that omits auto_execute performs the action immediately.
	resp, task := f.request(t, http.MethodPost, "/api/v1/agent/execute", map[string]interface{}{
		"instruction": "Call John about the inspection",
		"contact_id":  "contact-1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "waiting", task["status"])
	assert.Equal(t, "call-abc", task["call_id"])
}

func TestExecuteExplicitPreview(t *testing.T) {
	f := newServerFixture(t)

	resp, task := f.request(t, http.MethodPost, "/api/v1/agent/execute", map[string]interface{}{
		"instruction":  "Call John about the inspection",
		"contact_id":   "contact-1",
		"auto_execute": false,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pending", task["status"])
	assert.Equal(t, "Ready for execution", task["status_message"])
}

func TestPreviewEndpoint(t *testing.T) {
	f := newServerFixture(t)

	resp, body := f.request(t, http.MethodPost, "/api/v1/agent/preview", map[string]interface{}{
		"contact_id": "contact-1",
		"purpose":    "discuss the inspection",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	prompt, _ := body["prompt"].(string)
	assert.Contains(t, prompt, "=== Contact Information ===")
	assert.Contains(t, prompt, "John Smith")
}

func TestInteractionCompletedFlow(t *testing.T) {
	f := newServerFixture(t)

	resp, task := f.request(t, http.MethodPost, "/api/v1/agent/execute", map[string]interface{}{
		"instruction":  "Call John about the inspection",
		"contact_id":   "contact-1",
		"auto_execute": true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	callID, _ := task["call_id"].(string)
	require.NotEmpty(t, callID)

	resp, done := f.request(t, http.MethodPost, "/api/v1/interactions/completed", map[string]interface{}{
		"call_id":    callID,
		"transcript": "John said the report is coming Friday.",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "completed", done["status"])
	require.Len(t, f.extractor.jobs, 1)
	assert.Equal(t, callID, f.extractor.jobs[0].SourceID)
}

func TestCancelConflict(t *testing.T) {
	f := newServerFixture(t)

	resp, task := f.request(t, http.MethodPost, "/api/v1/agent/execute", map[string]interface{}{
		"instruction":  "Call John about the inspection",
		"contact_id":   "contact-1",
		"auto_execute": true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	id, _ := task["id"].(string)

	// Waiting tasks can be cancelled once; a second cancel conflicts.
	resp, _ = f.request(t, http.MethodPost, fmt.Sprintf("/api/v1/tasks/%s/cancel", id), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = f.request(t, http.MethodPost, fmt.Sprintf("/api/v1/tasks/%s/cancel", id), nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestSearchUnconfigured(t *testing.T) {
	f := newServerFixture(t)

	resp, _ := f.request(t, http.MethodPost, "/api/v1/memories/search", map[string]interface{}{
		"query": "roof",
	})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestExtractEndpointQueuesJob(t *testing.T) {
	f := newServerFixture(t)

	resp, _ := f.request(t, http.MethodPost, "/api/v1/extract", map[string]interface{}{
		"property_id": "prop-1",
		"source_type": "phone_call",
		"source_id":   "call-9",
		"transcript":  "Discussed the lease renewal.",
	})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Len(t, f.extractor.jobs, 1)
	assert.Equal(t, "call-9", f.extractor.jobs[0].SourceID)
}

func TestExtractQueueFull(t *testing.T) {
	f := newServerFixture(t)
	f.extractor.err = extract.ErrQueueFull

	resp, _ := f.request(t, http.MethodPost, "/api/v1/extract", map[string]interface{}{
		"source_id":  "call-9",
		"transcript": "text",
	})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestPreferencesRoundTrip(t *testing.T) {
	f := newServerFixture(t)

	resp, prefs := f.request(t, http.MethodGet, "/api/v1/contacts/contact-1/preferences", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, prefs["do_not_call"])

	resp, updated := f.request(t, http.MethodPut, "/api/v1/contacts/contact-1/preferences", map[string]interface{}{
		"do_not_call":    true,
		"preferred_time": "after 5pm",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, updated["do_not_call"])
	assert.Equal(t, "after 5pm", updated["preferred_time"])

	// Execute against the gated contact fails without dialing.
	resp, task := f.request(t, http.MethodPost, "/api/v1/agent/execute", map[string]interface{}{
		"instruction":  "Call John about the inspection",
		"contact_id":   "contact-1",
		"auto_execute": true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "failed", task["status"])
	assert.Equal(t, "Contact has requested no phone calls", task["status_message"])
}

func TestRateLimiting(t *testing.T) {
	f := newServerFixture(t)

	// Rebuild with a tiny limit to exercise the middleware.
	cfg := &config.Config{Server: config.ServerConfig{RateLimit: 1, RateBurst: 1}}
	svc := memory.NewService(f.store, nil, nil)
	srv := New(cfg, Deps{Memories: svc}, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	first, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	_ = first.Body.Close()
	assert.Equal(t, http.StatusOK, first.StatusCode)

	second, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	_ = second.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
}
