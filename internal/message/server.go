package message

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/changepilot/changepilot/pkg/cerr"
)

const defaultListLimit = 50

type Server struct {
	repo Repository
}

func NewServer(repo Repository) *Server {
	return &Server{repo: repo}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Get("/messages", s.listMessages)
}

func (s *Server) listMessages(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q := Query{
		Sender: r.URL.Query().Get("sender"),
		Limit:  defaultListLimit,
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			cerr.SetNewJSONError(ctx, cerr.InvalidArgument, fmt.Sprintf("invalid limit: %s", raw), err)
			return
		}
		q.Limit = limit
	}
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			cerr.SetNewJSONError(ctx, cerr.InvalidArgument, fmt.Sprintf("invalid since timestamp: %s", raw), err)
			return
		}
		q.Since = since
	}

	messages, err := s.repo.List(ctx, q)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]any{
		"messages": messages,
		"count":    len(messages),
	})
}
