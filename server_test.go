package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type runnerFunc func(ctx context.Context, articles []RawArticle) (*WorkflowResult, error)

func (f runnerFunc) Run(ctx context.Context, articles []RawArticle) (*WorkflowResult, error) {
	return f(ctx, articles)
}

func TestNewServerRequiresRunner(t *testing.T) {
	if _, err := NewServer(nil, nil); err == nil {
		t.Error("NewServer(nil) expected error")
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := NewServer(runnerFunc(nil), discardLogger())

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("healthz = %d %q", rec.Code, rec.Body.String())
	}
}

func TestDigestCreate(t *testing.T) {
	backend := &scriptedBackend{
		structured: replies(storyJSON("Daily AI digest", "1", "2")),
		text:       replies("Shorter please.", "APPROVED"),
	}
	srv, err := NewServer(newTestWorkflow(backend, nil), discardLogger())
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	body, _ := json.Marshal(digestCreateReq{Articles: testArticles()})
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/digests", strings.NewReader(string(body))))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var result WorkflowResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if result.Story == nil || result.Story.Title != "Daily AI digest" {
		t.Errorf("story = %+v", result.Story)
	}
	if !result.Approved || result.Forced || result.Iterations != 2 || len(result.Rounds) != 2 {
		t.Errorf("result = %+v", result)
	}
	if result.Rounds[0].Feedback != "Shorter please." {
		t.Errorf("first round feedback = %q", result.Rounds[0].Feedback)
	}
}

func TestDigestCreateMalformedModelOutput(t *testing.T) {
	backend := &scriptedBackend{structured: replies("```json\n{\"title\": \"Digest\"}\n```")}
	srv, _ := NewServer(newTestWorkflow(backend, nil), discardLogger())

	body, _ := json.Marshal(digestCreateReq{Articles: testArticles()})
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/digests", strings.NewReader(string(body))))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusBadGateway, rec.Body.String())
	}
	var resp errorResp
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding error response: %v", err)
	}
	if resp.Kind != ValidationError {
		t.Errorf("kind = %q, want %q", resp.Kind, ValidationError)
	}
}

func TestDigestCreateErrors(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		body       string
		runErr     error
		wantStatus int
		wantKind   ErrorKind
	}{
		{"wrong method", http.MethodGet, "", nil, http.StatusMethodNotAllowed, ""},
		{"malformed body", http.MethodPost, "{", nil, http.StatusBadRequest, ""},
		{"empty articles", http.MethodPost, `{"articles": []}`, newWorkflowError(InputError, AwaitingResearch, errNoArticles), http.StatusBadRequest, InputError},
		{"invalid draft", http.MethodPost, `{"articles": [{"id": "1"}]}`, newWorkflowError(ValidationError, AwaitingResearch, errors.New("story title is empty")), http.StatusBadGateway, ValidationError},
		{"model failure", http.MethodPost, `{"articles": [{"id": "1"}]}`, newWorkflowError(GenerationError, AwaitingReview, errors.New("boom")), http.StatusBadGateway, GenerationError},
		{"model timeout", http.MethodPost, `{"articles": [{"id": "1"}]}`, newWorkflowError(GenerationError, AwaitingResearch, fmt.Errorf("researcher agent failed: %w", context.DeadlineExceeded)), http.StatusGatewayTimeout, GenerationError},
		{"precondition", http.MethodPost, `{"articles": [{"id": "1"}]}`, newWorkflowError(PreconditionError, AwaitingReview, errors.New("no draft")), http.StatusInternalServerError, PreconditionError},
		{"canceled", http.MethodPost, `{"articles": [{"id": "1"}]}`, context.Canceled, http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := runnerFunc(func(ctx context.Context, articles []RawArticle) (*WorkflowResult, error) {
				if tt.runErr == nil {
					t.Error("runner called for a rejected request")
					return nil, errors.New("unexpected call")
				}
				return nil, tt.runErr
			})
			srv, _ := NewServer(runner, discardLogger())

			rec := httptest.NewRecorder()
			srv.Routes().ServeHTTP(rec, httptest.NewRequest(tt.method, "/api/digests", strings.NewReader(tt.body)))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus == http.StatusMethodNotAllowed {
				return
			}

			var resp errorResp
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decoding error response: %v", err)
			}
			if resp.Error == "" {
				t.Error("error message is empty")
			}
			if resp.Kind != tt.wantKind {
				t.Errorf("kind = %q, want %q", resp.Kind, tt.wantKind)
			}
		})
	}
}
