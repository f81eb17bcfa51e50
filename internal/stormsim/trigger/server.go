package trigger

import (
	"context"
	"fmt"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"
)

// Server is the HTTP front of the trigger. Schedulers POST trigger requests;
// anything else is answered OK so upstream health checks pass.
//
// Malformed bodies are logged and answered OK rather than erroring: the
// callers are fire-and-forget schedulers that would otherwise retry the same
// broken payload forever.
type Server struct {
	publisher EventPublisher
}

// EventPublisher fans a trigger request out as per-trial events.
type EventPublisher interface {
	Publish(ctx context.Context, request Request) (int, error)
}

func NewServer(publisher EventPublisher) *Server {
	return &Server{publisher: publisher}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		fmt.Fprint(w, "OK")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.WithError(err).Error("Failed reading trigger request body")
		fmt.Fprint(w, "OK")
		return
	}

	request, err := ParseRequest(body)
	if err != nil {
		log.WithError(err).Errorf("Ignoring malformed trigger request: %s", body)
		fmt.Fprint(w, "OK")
		return
	}

	published, err := s.publisher.Publish(r.Context(), request)
	if err != nil {
		log.WithError(err).Error("Failed publishing simulation events")
		http.Error(w, "failed publishing simulation events", http.StatusInternalServerError)
		return
	}
	fmt.Fprintf(w, "Triggered %d %s simulations", published, request.StormType)
}
