package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// newJiraFake serves the Jira endpoints the REST handlers touch
func newJiraFake(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/rest/api/3/field", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id": "customfield_10001", "name": "Severity", "custom": true,
			 "schema": {"type": "option", "custom": "com.atlassian.jira.plugin.system.customfieldtypes:select"}}
		]`))
	})
	mux.HandleFunc("/rest/api/3/field/customfield_10001/context", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"values": [{"id": "ctx-1", "name": "Default"}]}`))
	})
	mux.HandleFunc("/rest/api/3/field/customfield_10001/context/ctx-1/option", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"values": [{"id": "9001", "value": "Critical"}]}`))
	})
	mux.HandleFunc("/rest/api/3/search", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"issues": [
			{"id": "10042", "key": "DEMO-1", "fields": {"summary": "Login fails", "status": {"name": "Open"}}}
		], "total": 1, "startAt": 0, "maxResults": 50}`))
	})
	mux.HandleFunc("/rest/api/3/issue/DEMO-1", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "PUT" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "10042", "key": "DEMO-1", "fields": {
			"summary": "Login fails", "status": {"name": "Open"},
			"customfield_10001": {"value": "Critical"}
		}}`))
	})
	mux.HandleFunc("/rest/api/3/issue/DEMO-1/comment", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "POST" {
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id": "1"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"comments": []}`))
	})

	return httptest.NewServer(mux)
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	jiraFake := newJiraFake(t)
	t.Cleanup(jiraFake.Close)
	return NewServer(Config{
		JiraURL: jiraFake.URL,
		Port:    8080,
	})
}

// doAPI runs a request with Jira credentials against the router
func doAPI(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("X-Jira-Email", "a@example.com")
	req.Header.Set("X-Jira-API-Token", "test-token")

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var data map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &data); err != nil {
		t.Fatalf("response is not valid JSON: %v\n%s", err, w.Body.String())
	}
	return data
}

func TestHealthCheck(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if w.Body.String() != "OK" {
		t.Errorf("expected body 'OK', got '%s'", w.Body.String())
	}
}

func TestAuthMiddleware_MissingHeaders(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/fields", nil)
	w := httptest.NewRecorder()

	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestSearchIssuesEndpoint(t *testing.T) {
	server := newTestServer(t)

	w := doAPI(t, server, http.MethodGet, "/api/v1/issues?jql=project%3DDEMO", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	data := decodeBody(t, w)
	if data["total"] != float64(1) {
		t.Errorf("total = %v", data["total"])
	}

	// Missing jql is a client error
	w = doAPI(t, server, http.MethodGet, "/api/v1/issues", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status %d without jql, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestGetIssueEndpoint(t *testing.T) {
	server := newTestServer(t)

	w := doAPI(t, server, http.MethodGet, "/api/v1/issues/DEMO-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	data := decodeBody(t, w)
	if data["key"] != "DEMO-1" || data["status"] != "Open" {
		t.Errorf("unexpected issue: %v", data)
	}
	custom := data["customFields"].(map[string]any)
	if _, ok := custom["customfield_10001"]; !ok {
		t.Errorf("custom fields missing: %v", custom)
	}
}

func TestIssueSummaryEndpoint(t *testing.T) {
	server := newTestServer(t)

	w := doAPI(t, server, http.MethodGet, "/api/v1/issues/DEMO-1/summary", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	data := decodeBody(t, w)
	basic := data["basicInfo"].(map[string]any)
	if basic["summary"] != "Login fails" {
		t.Errorf("summary = %v", basic["summary"])
	}
}

func TestAddCommentEndpoint(t *testing.T) {
	server := newTestServer(t)

	w := doAPI(t, server, http.MethodPost, "/api/v1/issues/DEMO-1/comments", `{"comment": "hello"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, w.Code, w.Body.String())
	}

	// Empty body is rejected
	w = doAPI(t, server, http.MethodPost, "/api/v1/issues/DEMO-1/comments", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status %d for empty comment, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestUpdateIssueEndpoint(t *testing.T) {
	server := newTestServer(t)

	w := doAPI(t, server, http.MethodPost, "/api/v1/issues/DEMO-1/update",
		`{"summary": "New title", "addComment": false}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	data := decodeBody(t, w)
	if data["issueKey"] != "DEMO-1" || data["fieldCount"] != float64(1) {
		t.Errorf("unexpected result: %v", data)
	}
}

func TestUpdateIssueEndpoint_DryRun(t *testing.T) {
	server := newTestServer(t)

	w := doAPI(t, server, http.MethodPost, "/api/v1/issues/DEMO-1/update",
		`{"summary": "New title", "dryRun": true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	data := decodeBody(t, w)
	preview := data["previewFields"].(map[string]any)
	if preview["summary"] != "New title" {
		t.Errorf("previewFields = %v", preview)
	}
}

func TestUpdateIssueEndpoint_InvalidDropdown(t *testing.T) {
	server := newTestServer(t)

	w := doAPI(t, server, http.MethodPost, "/api/v1/issues/DEMO-1/update",
		`{"customFields": {"customfield_10001": "Bogus"}}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status %d, got %d: %s", http.StatusUnprocessableEntity, w.Code, w.Body.String())
	}

	data := decodeBody(t, w)
	if data["fieldId"] != "customfield_10001" {
		t.Errorf("fieldId = %v", data["fieldId"])
	}
}

func TestFieldsEndpoints(t *testing.T) {
	server := newTestServer(t)

	w := doAPI(t, server, http.MethodGet, "/api/v1/fields", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	data := decodeBody(t, w)
	if data["count"] != float64(1) {
		t.Errorf("count = %v", data["count"])
	}

	w = doAPI(t, server, http.MethodGet, "/api/v1/fields/customfield_10001/options", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	data = decodeBody(t, w)
	if data["fieldName"] != "Severity" || data["count"] != float64(1) {
		t.Errorf("unexpected options: %v", data)
	}

	w = doAPI(t, server, http.MethodGet, "/api/v1/fields/customfield_99999/options", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status %d for unknown field, got %d", http.StatusNotFound, w.Code)
	}
}

func TestRepositoriesEndpoint_NotConfigured(t *testing.T) {
	server := newTestServer(t)

	w := doAPI(t, server, http.MethodGet, "/api/v1/repositories", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}

	data := decodeBody(t, w)
	if msg, _ := data["error"].(string); !strings.Contains(msg, "not configured") {
		t.Errorf("error should hint at configuration: %v", data)
	}
}

func TestCacheEndpoints(t *testing.T) {
	server := newTestServer(t)

	// Warm the field cache
	w := doAPI(t, server, http.MethodGet, "/api/v1/fields", "")
	if w.Code != http.StatusOK {
		t.Fatalf("warm-up failed: %d", w.Code)
	}

	w = doAPI(t, server, http.MethodGet, "/api/v1/cache/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	stats := decodeBody(t, w)
	fields := stats["fields"].(map[string]any)
	if fields["size"] != float64(1) {
		t.Errorf("fields.size = %v", fields["size"])
	}

	w = doAPI(t, server, http.MethodDelete, "/api/v1/cache", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	result := decodeBody(t, w)
	after := result["after"].(map[string]any)
	afterFields := after["fields"].(map[string]any)
	if afterFields["size"] != float64(0) {
		t.Errorf("fields.size after clear = %v", afterFields["size"])
	}
}

func TestSessionReuse(t *testing.T) {
	server := newTestServer(t)

	// Same credentials share one service bundle
	doAPI(t, server, http.MethodGet, "/api/v1/fields", "")
	doAPI(t, server, http.MethodGet, "/api/v1/fields", "")

	server.mu.Lock()
	count := len(server.sessions)
	server.mu.Unlock()
	if count != 1 {
		t.Errorf("expected 1 session, got %d", count)
	}

	// Different token means a separate bundle
	req := httptest.NewRequest(http.MethodGet, "/api/v1/fields", nil)
	req.Header.Set("X-Jira-Email", "a@example.com")
	req.Header.Set("X-Jira-API-Token", "another-token")
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	server.mu.Lock()
	count = len(server.sessions)
	server.mu.Unlock()
	if count != 2 {
		t.Errorf("expected 2 sessions, got %d", count)
	}
}

func TestSwaggerDocs(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil)
	w := httptest.NewRecorder()

	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	contentType := w.Header().Get("Content-Type")
	if contentType != "application/yaml" {
		t.Errorf("expected Content-Type 'application/yaml', got '%s'", contentType)
	}
	if !strings.Contains(w.Body.String(), "/issues/{key}/update") {
		t.Error("spec should document the update endpoint")
	}
}
