package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ppiankov/claimstore/internal/index"
	"github.com/ppiankov/claimstore/internal/model"
	"github.com/ppiankov/claimstore/internal/query"
	"github.com/ppiankov/claimstore/internal/store"
	"github.com/ppiankov/claimstore/internal/validate"
)

// Largest accepted request body
const maxBodyBytes = 1 << 20

// errorResponse is the body of every non-2xx reply
type errorResponse struct {
	Error       string               `json:"error"`
	Violations  []validate.Violation `json:"violations,omitempty"`
	Suggestions []string             `json:"suggestions,omitempty"`
	ExistingID  string               `json:"existing_id,omitempty"`
	Details     []string             `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

// writeError maps the store's error taxonomy onto HTTP statuses
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	body := errorResponse{Error: err.Error()}
	status := http.StatusInternalServerError

	var (
		ve *store.ValidationError
		nf *store.NotFoundError
		de *store.DuplicateError
		ie *store.InconsistencyError
	)
	switch {
	case errors.As(err, &ve):
		status = http.StatusBadRequest
		body.Violations = ve.Violations
	case errors.As(err, &nf):
		status = http.StatusNotFound
		body.Suggestions = nf.Suggestions
	case errors.As(err, &de):
		status = http.StatusConflict
		body.ExistingID = de.ExistingID
	case errors.As(err, &ie):
		body.Details = ie.Details
	}

	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "path", r.URL.Path, "error", err)
	}
	respondJSON(w, status, body)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleFind(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	entries, err := s.engine.Find(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []*model.Entry{}
	}
	respondJSON(w, http.StatusOK, entries)
}

// parseFilter reads find predicates from query parameters
func parseFilter(q url.Values) (query.Filter, error) {
	f := query.Filter{
		Topic:   q.Get("topic"),
		Speaker: q.Get("speaker"),
		Kind:    model.ClaimKind(strings.ToLower(q.Get("kind"))),
		Text:    q.Get("text"),
	}

	var vs []validate.Violation
	date := func(name string) time.Time {
		v := q.Get(name)
		if v == "" {
			return time.Time{}
		}
		d, err := model.ParseDate(v)
		if err != nil {
			vs = append(vs, validate.Violation{Field: name, Rule: "calendar_date", Message: "must be a YYYY-MM-DD date"})
		}
		return d
	}
	f.From = date("from")
	f.To = date("to")

	switch strings.ToLower(q.Get("order")) {
	case "", "asc":
	case "desc":
		f.Descending = true
	default:
		vs = append(vs, validate.Violation{Field: "order", Rule: "oneof", Message: "must be asc or desc"})
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			vs = append(vs, validate.Violation{Field: "limit", Rule: "number", Message: "must be an integer"})
		}
		f.Limit = n
	}

	if len(vs) > 0 {
		return f, &store.ValidationError{Violations: vs}
	}
	return f, nil
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var c model.Candidate
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	res, err := s.repo.Ingest(r.Context(), &c)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	status := http.StatusCreated
	if res.Duplicate {
		status = http.StatusOK
	}
	respondJSON(w, status, res)
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	e, err := s.repo.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, e)
}

func (s *Server) handleRelationships(w http.ResponseWriter, r *http.Request) {
	views, err := s.engine.RelationshipsOf(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if views == nil {
		views = []model.EdgeView{}
	}
	respondJSON(w, http.StatusOK, views)
}

// attachRequest names an edge by claim references ("<entry>#<claim>")
type attachRequest struct {
	From string `json:"from"`
	Kind string `json:"kind"`
	To   string `json:"to"`
}

func (s *Server) handleAttach(w http.ResponseWriter, r *http.Request) {
	var req attachRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	var vs []validate.Violation
	from, err := model.ParseClaimRef(req.From)
	if err != nil {
		vs = append(vs, validate.Violation{Field: "from", Rule: "claim_ref", Message: err.Error()})
	}
	to, err := model.ParseClaimRef(req.To)
	if err != nil {
		vs = append(vs, validate.Violation{Field: "to", Rule: "claim_ref", Message: err.Error()})
	}
	kind, err := model.ParseRelationKind(req.Kind)
	if err != nil {
		vs = append(vs, validate.Violation{Field: "kind", Rule: "relation_kind", Message: err.Error()})
	}
	if len(vs) > 0 {
		s.writeError(w, r, &store.ValidationError{Violations: vs})
		return
	}

	res, err := s.repo.Attach(r.Context(), from, kind, to)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	status := http.StatusCreated
	if !res.Changed {
		status = http.StatusOK
	}
	respondJSON(w, status, res.Relationship)
}

func (s *Server) handleEvolution(w http.ResponseWriter, r *http.Request) {
	speaker, topic := r.URL.Query().Get("speaker"), r.URL.Query().Get("topic")
	var vs []validate.Violation
	if strings.TrimSpace(speaker) == "" {
		vs = append(vs, validate.Violation{Field: "speaker", Rule: "required", Message: "is required"})
	}
	if strings.TrimSpace(topic) == "" {
		vs = append(vs, validate.Violation{Field: "topic", Rule: "required", Message: "is required"})
	}
	if len(vs) > 0 {
		s.writeError(w, r, &store.ValidationError{Violations: vs})
		return
	}

	ev, err := s.engine.Evolution(r.Context(), speaker, topic)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ev)
}

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := s.engine.ListTopics(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if topics == nil {
		topics = []index.KeyCount{}
	}
	respondJSON(w, http.StatusOK, topics)
}

func (s *Server) handleSpeakers(w http.ResponseWriter, r *http.Request) {
	speakers, err := s.engine.ListSpeakers(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if speakers == nil {
		speakers = []index.KeyCount{}
	}
	respondJSON(w, http.StatusOK, speakers)
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	report, err := s.repo.Rebuild(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.Verify(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"consistent": true})
}
