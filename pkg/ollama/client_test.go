package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClientInvalidURL(t *testing.T) {
	if _, err := NewClient("localhost", 0); err == nil {
		t.Error("Expected error for URL without scheme")
	}
}

func TestQuery(t *testing.T) {
	var req map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Bad request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model":"llava","message":{"role":"assistant","content":"{\"objects\":[]}"},"done":true}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL+"/api/chat", 0)
	if err != nil {
		t.Fatal(err)
	}
	answer, err := c.Query(context.Background(), "llava", "find cats", "QUJD")
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if answer != `{"objects":[]}` {
		t.Errorf("Unexpected answer %q", answer)
	}
	if req["model"] != "llava" || req["format"] != "json" {
		t.Errorf("Unexpected request %v", req)
	}
}

func TestQueryBadImage(t *testing.T) {
	c, _ := NewClient("http://localhost:1", 0)
	if _, err := c.Query(context.Background(), "m", "p", "%%%"); err == nil {
		t.Error("Expected base64 decode error")
	}
}

func TestModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"models":[{"name":"llava:7b"},{"name":"moondream:latest"}]}`))
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, 0)
	models, err := c.Models(context.Background())
	if err != nil {
		t.Fatalf("Models() error: %v", err)
	}
	if len(models) != 2 || models[0] != "llava:7b" {
		t.Errorf("Unexpected models %v", models)
	}
}
