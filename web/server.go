package web

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/mww/global_leaderboard/controller"
	"github.com/unrolled/render"
)

// Requests still running after this are abandoned.
const shutdownGrace = 10 * time.Second

// Admin holds the basic auth credentials of the /admin routes. The routes are
// not served when Password is empty.
type Admin struct {
	User     string
	Password string
}

// Server serves the stored global leaderboards and, when enabled, the admin
// recompute trigger.
type Server struct {
	server *http.Server
}

func NewServer(port int, ctrl controller.C, admin Admin) (*Server, error) {
	if admin.Password != "" && admin.User == "" {
		return nil, fmt.Errorf("an admin user is required with an admin password")
	}

	return &Server{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           getRouter(ctrl, newRender(), admin),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

// ListenAndServe blocks until the server stops. Closing or sending on shutdown
// drains in-flight requests for up to shutdownGrace, then marks wg done.
func (s *Server) ListenAndServe(shutdown chan bool, wg *sync.WaitGroup) {
	go func() {
		defer wg.Done()
		<-shutdown

		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			log.Fatalf("fatal error shutting down leaderboard server: %v", err)
		}
	}()

	log.Printf("leaderboard server is listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("fatal error with leaderboard server: %v", err)
	}
}

func newRender() *render.Render {
	return render.New(render.Options{
		IndentJSON: true,
	})
}

func dateFormatter(t time.Time) string {
	if t.IsZero() {
		return "Never"
	}
	return t.Format(time.DateOnly)
}
