// Command notestub is a local stand-in for the demo notes backend. It
// speaks the same posts-collection contract the sync engine replays
// against, assigns create ids from 101 upward, and forgets everything on
// restart — just like the hosted demo service does between requests.
package main

import (
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type post struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	UserID int64  `json:"userId"`
}

func main() {
	addr := flag.String("addr", ":8089", "listen address")
	failEvery := flag.Int("fail-every", 0, "return 500 for every Nth request (0 disables)")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	var nextID atomic.Int64
	nextID.Store(100)
	var requests atomic.Int64

	r := chi.NewRouter()
	r.Use(middleware.Logger)

	if *failEvery > 0 {
		n := int64(*failEvery)
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				if requests.Add(1)%n == 0 {
					http.Error(w, "injected failure", http.StatusInternalServerError)
					return
				}
				next.ServeHTTP(w, req)
			})
		})
	}

	r.Post("/posts", func(w http.ResponseWriter, req *http.Request) {
		var p post
		if err := json.NewDecoder(req.Body).Decode(&p); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		p.ID = nextID.Add(1)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(p)
	})

	r.Patch("/posts/{id}", func(w http.ResponseWriter, req *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(req, "id"), 10, 64)
		if err != nil || id < 1 || id > 100 {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}

		var p post
		if err := json.NewDecoder(req.Body).Decode(&p); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		p.ID = id

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(p)
	})

	r.Delete("/posts/{id}", func(w http.ResponseWriter, req *http.Request) {
		if _, err := strconv.ParseInt(chi.URLParam(req, "id"), 10, 64); err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("{}"))
	})

	// Reachability probes land here
	r.Head("/", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	slog.Info("notestub listening", "addr", *addr)
	if err := http.ListenAndServe(*addr, r); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
