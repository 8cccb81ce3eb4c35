package web

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mww/global_leaderboard/controller"
	"github.com/unrolled/render"
)

func getRouter(ctrl controller.C, render *render.Render, admin Admin) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", rootHandler(ctrl, render))

	r.Group(func(r chi.Router) {
		// Set a timeout value on the request context (ctx), that will signal
		// through ctx.Done() that the request has timed out and further
		// processing should be stopped.
		r.Use(middleware.Timeout(10 * time.Second))

		r.Route("/leaderboards", func(r chi.Router) {
			r.Get("/", listLeaderboardsHandler(ctrl, render))
			r.Get("/{date:\\d\\d\\d\\d-\\d\\d-\\d\\d}", getLeaderboardHandler(ctrl, render))
		})
	})

	if admin.Password != "" {
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.BasicAuth("leaderboard", map[string]string{admin.User: admin.Password}))
			r.Use(middleware.Timeout(30 * time.Minute)) // a computation over many dates takes a while

			r.Post("/compute", computeHandler(ctrl, render))
		})
	}

	return r
}
