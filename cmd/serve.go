package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/health-atlas/atlas-cli/internal/model"
	"github.com/health-atlas/atlas-cli/internal/pipeline"
	"github.com/health-atlas/atlas-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the validation HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(env.Store, env.Pipeline),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// newRouter wires the API endpoints. Handlers stay thin: decode, delegate to
// the pipeline or store, encode.
func newRouter(st store.Store, pl *pipeline.Pipeline) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/validate", handleValidate(st, pl))
		r.Get("/analytics/dashboard-stats", handleDashboardStats(st))

		r.Get("/runs", handleListRuns(st))
		r.Get("/runs/{id}", handleGetRun(st))

		r.Get("/review", handleListReview(st))
		r.Post("/review/{id}/resolve", handleResolveReview(st))
	})

	return r
}

func handleValidate(st store.Store, pl *pipeline.Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var raw map[string]string
		if err := json.NewDecoder(req.Body).Decode(&raw); err != nil {
			writeAPIError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		provider := model.NormalizeProvider(raw)
		if provider.FullName == "" && provider.NPI == "" {
			writeAPIError(w, http.StatusBadRequest, "full_name or npi is required")
			return
		}

		outcome := pl.Validate(req.Context(), provider)

		record, err := st.SaveValidation(req.Context(), outcome)
		if err != nil {
			zap.L().Error("save validation failed", zap.Error(err))
			writeAPIError(w, http.StatusInternalServerError, "failed to persist outcome")
			return
		}
		if outcome.RequiresHumanReview {
			if _, err := st.EnqueueReview(req.Context(), record.ID, outcome.ReviewReason); err != nil {
				zap.L().Warn("enqueue review failed", zap.Error(err))
			}
		}

		writeJSON(w, http.StatusOK, record)
	}
}

func handleDashboardStats(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		stats, err := st.DashboardStats(req.Context())
		if err != nil {
			zap.L().Error("dashboard stats failed", zap.Error(err))
			writeAPIError(w, http.StatusInternalServerError, "failed to compute stats")
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func handleListRuns(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		filter := store.RecordFilter{
			Path:  model.Path(q.Get("path")),
			Tier:  model.Tier(q.Get("tier")),
			State: q.Get("state"),
			Limit: queryInt(q.Get("limit"), 50),
		}
		if v := q.Get("requires_review"); v != "" {
			b := v == "true"
			filter.RequiresReview = &b
		}

		records, err := st.ListValidations(req.Context(), filter)
		if err != nil {
			zap.L().Error("list validations failed", zap.Error(err))
			writeAPIError(w, http.StatusInternalServerError, "failed to list validations")
			return
		}
		writeJSON(w, http.StatusOK, records)
	}
}

func handleGetRun(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		record, err := st.GetValidation(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			zap.L().Error("get validation failed", zap.Error(err))
			writeAPIError(w, http.StatusInternalServerError, "failed to load validation")
			return
		}
		if record == nil {
			writeAPIError(w, http.StatusNotFound, "validation not found")
			return
		}
		writeJSON(w, http.StatusOK, record)
	}
}

func handleListReview(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		status := model.ReviewStatus(req.URL.Query().Get("status"))
		if status == "" {
			status = model.ReviewPending
		}
		limit := queryInt(req.URL.Query().Get("limit"), 50)

		entries, err := st.ListReviewQueue(req.Context(), status, limit)
		if err != nil {
			zap.L().Error("list review queue failed", zap.Error(err))
			writeAPIError(w, http.StatusInternalServerError, "failed to list review queue")
			return
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

func handleResolveReview(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		if err := st.ResolveReview(req.Context(), id); err != nil {
			writeAPIError(w, http.StatusConflict, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "resolved", "id": id})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func queryInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
