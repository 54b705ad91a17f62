package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stayguide/guide-cli/internal/model"
	"github.com/stayguide/guide-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for discovery requests",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins(),
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))

		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/discover", func(w http.ResponseWriter, req *http.Request) {
			handleDiscover(ctx, e, w, req)
		})

		r.Get("/runs", func(w http.ResponseWriter, req *http.Request) {
			runs, err := e.store.ListRuns(req.Context(), store.RunFilter{
				OwnerID: req.URL.Query().Get("owner"),
				Status:  model.RunStatus(req.URL.Query().Get("status")),
			})
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list runs failed"})
				return
			}
			writeJSON(w, http.StatusOK, runs)
		})

		r.Get("/runs/{id}", func(w http.ResponseWriter, req *http.Request) {
			id := chi.URLParam(req, "id")
			run, err := e.store.GetRun(req.Context(), id)
			if err != nil {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
				return
			}
			items, err := e.store.ListItems(req.Context(), id)
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list items failed"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"run": run, "items": items})
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

type discoverRequest struct {
	OwnerID      string   `json:"owner_id"`
	Address      string   `json:"address"`
	Lat          float64  `json:"lat"`
	Lng          float64  `json:"lng"`
	RadiusMeters int      `json:"radius_meters"`
	Categories   []string `json:"categories"`
	MinRating    float64  `json:"min_rating"`
	Describe     bool     `json:"describe"`
}

// handleDiscover runs the whole workflow server-side with auto-curation:
// every non-duplicate candidate above the rating floor is imported. The
// import runs in the background and the response carries the run id to poll.
func handleDiscover(ctx context.Context, e *env, w http.ResponseWriter, req *http.Request) {
	var body discoverRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if body.OwnerID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "owner_id is required"})
		return
	}

	m := e.newMachine(body.OwnerID, body.Describe)

	origin := model.Coordinates{Lat: body.Lat, Lng: body.Lng}
	if origin.IsZero() {
		if body.Address == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "address or lat/lng is required"})
			return
		}
		var err error
		origin, err = m.ResolveOrigin(req.Context(), body.Address)
		if err != nil {
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "geocoding failed"})
			return
		}
	}

	radius := body.RadiusMeters
	if radius <= 0 {
		radius = cfg.Search.RadiusMeters
	}
	tags := e.catalog.DefaultTags()
	if len(body.Categories) > 0 {
		tags = tags[:0]
		for _, c := range body.Categories {
			tags = append(tags, model.CategoryTag(c))
		}
	}

	if err := m.SetCriteria(model.Criteria{Origin: origin, RadiusMeters: radius, Categories: tags}); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := m.Search(req.Context()); err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}

	cur := m.Curation()
	if body.MinRating > 0 {
		for _, cand := range cur.Candidates() {
			if cand.Selected && cand.Rating < body.MinRating {
				cur.ToggleSelection(cand.ExternalID)
			}
		}
	}

	if err := m.Confirm(); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}

	// Import detached from the request context so a closed connection
	// cannot interrupt a batch mid-write.
	go func() {
		outcome, err := m.Import(ctx)
		if err != nil {
			zap.L().Error("background import failed",
				zap.String("owner", body.OwnerID),
				zap.Error(err))
			return
		}
		zap.L().Info("background import complete",
			zap.String("run_id", outcome.RunID),
			zap.Int("imported", outcome.Imported),
			zap.Int("skipped", outcome.SkippedDuplicates),
			zap.Int("errors", len(outcome.Errors)))
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":     "accepted",
		"candidates": len(cur.Candidates()),
		"selected":   len(cur.SelectedNonDuplicates()),
	})
}

func allowedOrigins() []string {
	if len(cfg.Server.AllowedOrigins) > 0 {
		return cfg.Server.AllowedOrigins
	}
	return []string{"*"}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
