package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/entrhq/robotdriver/pkg/driver"
	"github.com/entrhq/robotdriver/pkg/goal"
)

// PageTimeout bounds navigation for /context.
const PageTimeout = driver.GoalPageTimeout

type contextRequest struct {
	URL string `json:"url"`
}

type searchRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Product  string `json:"product"`
}

type goalRequest struct {
	Goal string `json:"goal"`
}

// decode reads a size-limited JSON body into v, writing the error response
// itself when it fails.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return false
		}
		jsonError(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	if s.pages == nil {
		jsonError(w, "snapshots are not enabled", http.StatusNotImplemented)
		return
	}
	var req contextRequest
	if !s.decode(w, r, &req) {
		return
	}
	u, err := url.Parse(strings.TrimSpace(req.URL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		jsonError(w, "url must be an absolute http(s) URL", http.StatusBadRequest)
		return
	}

	nav, release, err := s.pages.Open(r.Context())
	if err != nil {
		jsonError(w, "open browser page: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer release()

	if err := nav.Goto(r.Context(), u.String(), PageTimeout); err != nil {
		jsonError(w, fmt.Sprintf("open %s: %v", u, err), http.StatusBadGateway)
		return
	}

	snap, warnings := s.builder.Build(r.Context(), nav)
	for _, warn := range warnings {
		s.log.Warnf("snapshot of %s: %s", u, warn)
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.search == nil {
		jsonError(w, "search is not enabled", http.StatusNotImplemented)
		return
	}
	var req searchRequest
	if !s.decode(w, r, &req) {
		return
	}
	switch {
	case strings.TrimSpace(req.Product) == "":
		jsonError(w, "product is required", http.StatusBadRequest)
		return
	case req.Username == "" || req.Password == "":
		jsonError(w, "username and password are required", http.StatusBadRequest)
		return
	}

	res := s.search.Run(r.Context(), driver.Credentials{Username: req.Username, Password: req.Password}, strings.TrimSpace(req.Product))
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGoal(w http.ResponseWriter, r *http.Request) {
	if s.goals == nil {
		jsonError(w, "goals are not enabled", http.StatusNotImplemented)
		return
	}
	var req goalRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Goal) == "" {
		jsonError(w, "goal is required", http.StatusBadRequest)
		return
	}

	out, err := s.goals.Run(r.Context(), req.Goal)
	if err != nil {
		var unparseable *goal.UnparseableGoalError
		if errors.As(err, &unparseable) {
			jsonError(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
