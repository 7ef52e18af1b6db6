// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danielhkuo/topic-polls/handlers"
	"github.com/danielhkuo/topic-polls/middleware"
	"github.com/danielhkuo/topic-polls/models"
	"github.com/danielhkuo/topic-polls/polls"
)

func NewRouter(svc *polls.Service, db *sql.DB, gatherer prometheus.Gatherer) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS)

	// Initialize handlers
	pollHandler := handlers.NewPollHandler(svc)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(middleware.WithLogging)

		r.Post("/form-tokens", pollHandler.IssueFormToken)

		// Poll actions on a topic
		r.Route("/topics/{topicID}/poll", func(r chi.Router) {
			r.Get("/", pollHandler.Handle(models.ActionView))
			r.Post("/", pollHandler.Handle(models.ActionAdd))
			r.Patch("/", pollHandler.Handle(models.ActionEdit))
			r.Delete("/", pollHandler.Handle(models.ActionRemove))

			r.Post("/votes", pollHandler.Handle(models.ActionVote))
			r.Delete("/votes", pollHandler.Handle(models.ActionWithdraw))
			r.Post("/lock", pollHandler.Handle(models.ActionLock))
			r.Post("/reset", pollHandler.Handle(models.ActionReset))
		})
	})

	// Root endpoint
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("topic-polls API v1"))
	})

	return r
}
