// Package beemindertest provides an in-memory Beeminder datapoint API for
// tests, with fault injection.
package beemindertest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"

	"github.com/gorilla/mux"

	"github.com/agentstation/nightsync/pkg/records"
)

// Server is a fake Beeminder API serving one user's goals.
type Server struct {
	*httptest.Server

	Token string

	mu       sync.Mutex
	nextID   int
	points   map[string]map[string]*wirePoint // goal -> id -> point
	faults   []fault
	failDays map[string]int
	calls    map[string]int
	onList   func(page int)
}

type fault struct {
	method string
	status int
	times  int
}

type wirePoint struct {
	ID        string  `json:"id"`
	Timestamp int64   `json:"timestamp"`
	Daystamp  string  `json:"daystamp"`
	Value     float64 `json:"value"`
	Comment   string  `json:"comment"`
	RequestID string  `json:"requestid,omitempty"`
	UpdatedAt int64   `json:"updated_at"`
}

type writeBody struct {
	Value     *float64 `json:"value"`
	Timestamp int64    `json:"timestamp"`
	Daystamp  string   `json:"daystamp"`
	Comment   *string  `json:"comment"`
	RequestID string   `json:"requestid"`
}

// NewServer starts a fake server. token, when non-empty, must be sent as
// the auth_token query parameter.
func NewServer(token string) *Server {
	s := &Server{
		Token:    token,
		nextID:   1000,
		points:   make(map[string]map[string]*wirePoint),
		failDays: make(map[string]int),
		calls:    make(map[string]int),
	}

	r := mux.NewRouter()
	r.Use(s.authenticate)
	r.HandleFunc("/users/{user}/goals/{goal}/datapoints.json", s.list).Methods(http.MethodGet)
	r.HandleFunc("/users/{user}/goals/{goal}/datapoints.json", s.create).Methods(http.MethodPost)
	r.HandleFunc("/users/{user}/goals/{goal}/datapoints/{id:[^/.]+}.json", s.update).Methods(http.MethodPut)
	r.HandleFunc("/users/{user}/goals/{goal}/datapoints/{id:[^/.]+}.json", s.remove).Methods(http.MethodDelete)

	s.Server = httptest.NewServer(r)
	return s
}

// Seed stores datapoints for goal as they are, assigning ids to those
// without one.
func (s *Server) Seed(goal string, points ...records.Datapoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range points {
		id := p.ID
		if id == "" {
			id = s.newID()
		}
		wp := &wirePoint{
			ID:        id,
			Timestamp: p.Timestamp,
			Value:     p.Value,
			Comment:   p.Comment,
			RequestID: p.RequestID,
		}
		if !p.Date.IsZero() {
			wp.Daystamp = p.Date.Daystamp()
		}
		s.goal(goal)[id] = wp
	}
}

// Points returns the goal's datapoints sorted by date then id.
func (s *Server) Points(goal string) []records.Datapoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]records.Datapoint, 0, len(s.points[goal]))
	for _, p := range s.points[goal] {
		dp := records.Datapoint{ID: p.ID, Value: p.Value, Comment: p.Comment, Timestamp: p.Timestamp, RequestID: p.RequestID}
		if d, err := records.ParseDate(p.Daystamp); err == nil {
			dp.Date = d
		}
		out = append(out, dp)
	}
	records.SortDatapoints(out)
	return out
}

// FailNext makes the next times requests with method answer status.
func (s *Server) FailNext(method string, status, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, fault{method: method, status: status, times: times})
}

// FailCreates rejects every create for date with 422.
func (s *Server) FailCreates(date records.Date) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failDays[date.Daystamp()] = http.StatusUnprocessableEntity
}

// OnList registers a hook run before each list page is served.
func (s *Server) OnList(fn func(page int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onList = fn
}

// Calls returns how many requests with method reached a handler.
func (s *Server) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// Mutations returns the number of create, update and delete requests.
func (s *Server) Mutations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[http.MethodPost] + s.calls[http.MethodPut] + s.calls[http.MethodDelete]
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Token != "" && r.URL.Query().Get("auth_token") != s.Token {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"errors": "bad auth_token"})
			return
		}

		s.mu.Lock()
		s.calls[r.Method]++
		for i := range s.faults {
			f := &s.faults[i]
			if f.method == r.Method && f.times > 0 {
				f.times--
				s.mu.Unlock()
				writeJSON(w, f.status, map[string]string{"errors": "injected"})
				return
			}
		}
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	goal := mux.Vars(r)["goal"]
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))

	s.mu.Lock()
	hook := s.onList
	s.mu.Unlock()
	if hook != nil {
		hook(page)
	}

	s.mu.Lock()
	all := make([]wirePoint, 0, len(s.points[goal]))
	for _, p := range s.points[goal] {
		all = append(all, *p)
	}
	s.mu.Unlock()
	sort.Slice(all, func(i, j int) bool { return records.CompareIDs(all[i].ID, all[j].ID) < 0 })

	if page < 1 || perPage < 1 {
		writeJSON(w, http.StatusOK, all)
		return
	}
	start := (page - 1) * perPage
	if start >= len(all) {
		writeJSON(w, http.StatusOK, []wirePoint{})
		return
	}
	end := start + perPage
	if end > len(all) {
		end = len(all)
	}
	writeJSON(w, http.StatusOK, all[start:end])
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	goal := mux.Vars(r)["goal"]
	var body writeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Value == nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"errors": "value is required"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if status, ok := s.failDays[body.Daystamp]; ok {
		writeJSON(w, status, map[string]string{"errors": "rejected"})
		return
	}

	points := s.goal(goal)
	if body.RequestID != "" {
		for _, p := range points {
			if p.RequestID == body.RequestID {
				apply(p, body)
				writeJSON(w, http.StatusOK, p)
				return
			}
		}
	}
	p := &wirePoint{ID: s.newID(), RequestID: body.RequestID}
	apply(p, body)
	points[p.ID] = p
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var body writeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"errors": "bad body"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.goal(vars["goal"])[vars["id"]]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"errors": "not found"})
		return
	}
	apply(p, body)
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) remove(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	points := s.goal(vars["goal"])
	p, ok := points[vars["id"]]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"errors": "not found"})
		return
	}
	delete(points, vars["id"])
	writeJSON(w, http.StatusOK, p)
}

// goal returns the goal's point map. Callers hold s.mu.
func (s *Server) goal(name string) map[string]*wirePoint {
	m, ok := s.points[name]
	if !ok {
		m = make(map[string]*wirePoint)
		s.points[name] = m
	}
	return m
}

// newID returns the next id. Callers hold s.mu.
func (s *Server) newID() string {
	s.nextID++
	return strconv.Itoa(s.nextID)
}

func apply(p *wirePoint, body writeBody) {
	if body.Value != nil {
		p.Value = *body.Value
	}
	if body.Comment != nil {
		p.Comment = *body.Comment
	}
	if body.Timestamp != 0 {
		p.Timestamp = body.Timestamp
	}
	if body.Daystamp != "" {
		p.Daystamp = body.Daystamp
	}
	p.UpdatedAt++
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
