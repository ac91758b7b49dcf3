package bitbucket

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestListRepositoriesQuery(t *testing.T) {
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"pagelen": r.URL.Query().Get("pagelen"),
			"fields":  r.URL.Query().Get("fields"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"values": []}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "a@example.com", "key", "acme")

	if _, err := client.ListRepositories(0); err != nil {
		t.Fatalf("ListRepositories() error = %v", err)
	}
	if gotQuery["pagelen"] != "50" {
		t.Errorf("pagelen should default to 50, got %s", gotQuery["pagelen"])
	}
	if !strings.Contains(gotQuery["fields"], "values.slug") {
		t.Errorf("listing should request a trimmed field set, got %s", gotQuery["fields"])
	}
}

func TestGetPullRequestDiff(t *testing.T) {
	const rawDiff = "diff --git a/main.go b/main.go\n--- a/main.go\n+++ b/main.go\n@@ -1 +1 @@\n-old\n+new\n"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repositories/acme/backend/pullrequests/123/diff" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(rawDiff))
	}))
	defer server.Close()

	client := NewClient(server.URL, "a@example.com", "key", "acme")

	diff, err := client.GetPullRequestDiff(PullRequestRef{Workspace: "acme", Repository: "backend", ID: "123"})
	if err != nil {
		t.Fatalf("GetPullRequestDiff() error = %v", err)
	}
	if diff != rawDiff {
		t.Errorf("diff = %q, want raw body unchanged", diff)
	}
}

func TestAddPullRequestComment(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/repositories/acme/backend/pullrequests/123/comments" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 42, "content": {"raw": "looks good"},
			"links": {"html": {"href": "https://bitbucket.org/acme/backend/pull-requests/123#comment-42"}}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "a@example.com", "key", "acme")
	ref := PullRequestRef{Workspace: "acme", Repository: "backend", ID: "123"}

	comment, err := client.AddPullRequestComment(ref, "looks good")
	if err != nil {
		t.Fatalf("AddPullRequestComment() error = %v", err)
	}
	if comment.ID != 42 || comment.Content.Raw != "looks good" {
		t.Errorf("unexpected comment: %+v", comment)
	}

	content, _ := gotBody["content"].(map[string]any)
	if content["raw"] != "looks good" {
		t.Errorf("request body = %v, want content.raw", gotBody)
	}
}

func TestClientErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error": {"message": "Access denied"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "a@example.com", "key", "acme")

	_, err := client.ListRepositories(10)
	if err == nil {
		t.Fatal("expected error on 403")
	}
	if !strings.Contains(err.Error(), "status 403") {
		t.Errorf("error should carry the status, got %v", err)
	}

	_, err = client.GetPullRequestDiff(PullRequestRef{Workspace: "acme", Repository: "backend", ID: "1"})
	if err == nil || !strings.Contains(err.Error(), "status 403") {
		t.Errorf("diff error should carry the status, got %v", err)
	}
}
