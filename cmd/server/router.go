package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/framecast/render-api/internal/api"
	apiMiddleware "github.com/framecast/render-api/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes
// and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	// Apply standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	handler := api.NewGenerationHandler(
		app.scheduler,
		app.taskStore,
		app.artifacts,
		app.logger,
	)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/generate", handler.Generate)
		r.Get("/status/{taskID}", handler.Status)
		r.Get("/download/{taskID}", handler.Download)
		r.Post("/tasks/{taskID}/cancel", handler.CancelTask)
	})

	r.Get("/health", handler.Health)

	return r
}
