package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestResolveTarget(t *testing.T) {
	id := func(v int64) *int64 { return &v }

	tests := []struct {
		name string
		in   *int64
		want int64
	}{
		{"nil falls back", nil, 1},
		{"zero falls back", id(0), 1},
		{"negative falls back", id(-5), 1},
		{"lower bound addressable", id(1), 1},
		{"mid range addressable", id(50), 50},
		{"upper bound addressable", id(100), 100},
		{"just above range falls back", id(101), 1},
		{"server-assigned id falls back", id(250), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveTarget(tt.in); got != tt.want {
				t.Errorf("ResolveTarget(%v) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestCreateNote(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/posts" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id": 42}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	id, err := c.CreateNote(context.Background(), "hello", 7)
	if err != nil {
		t.Fatalf("CreateNote failed: %v", err)
	}
	if id != 42 {
		t.Errorf("id = %d, want 42", id)
	}
	if gotBody["title"] != "note" || gotBody["body"] != "hello" || gotBody["userId"] != float64(7) {
		t.Errorf("unexpected request body: %v", gotBody)
	}
}

func TestCreateNote_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	if _, err := c.CreateNote(context.Background(), "hello", 0); err == nil {
		t.Fatal("expected error on 500 response")
	}
}

func TestUpdateNote(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	if err := c.UpdateNote(context.Background(), 13, "text", 0); err != nil {
		t.Fatalf("UpdateNote failed: %v", err)
	}
	if gotMethod != http.MethodPatch || gotPath != "/posts/13" {
		t.Errorf("request = %s %s, want PATCH /posts/13", gotMethod, gotPath)
	}
}

func TestDeleteNote(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	if err := c.DeleteNote(context.Background(), 1); err != nil {
		t.Fatalf("DeleteNote failed: %v", err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/posts/1" {
		t.Errorf("request = %s %s, want DELETE /posts/1", gotMethod, gotPath)
	}
}

func TestTransportFailureReturnsError(t *testing.T) {
	// Closed server: connection refused
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewClient(srv.URL, time.Second)
	if err := c.DeleteNote(context.Background(), 1); err == nil {
		t.Fatal("expected transport error")
	}
}
