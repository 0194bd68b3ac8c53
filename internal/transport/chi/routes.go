package chi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Handler mounts the API routes on r.
func Handler(s *Server, r chi.Router) http.Handler {
	r.Post("/sessions", s.CreateSession)
	r.Route("/sessions/{session}", func(r chi.Router) {
		r.Get("/", withSession(s.GetSession))
		r.Delete("/", withSession(s.DeleteSession))
		r.Post("/documents", withSession(s.UploadDocuments))
		r.Post("/questions", withSession(s.AskQuestion))
		r.Get("/transcript", withSession(s.GetTranscript))
	})
	r.Post("/analyze", s.AnalyzeImage)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	return r
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, session string)

func withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := bindSessionID(w, r, chi.URLParam(r, "session"))
		if !ok {
			return
		}
		h(w, r, id)
	}
}
