// Package fredtest serves a canned FRED observations endpoint for tests.
package fredtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"
)

type Server struct {
	*httptest.Server

	mu       sync.Mutex
	requests map[string]int
	fail     map[string]int
	months   int
}

// NewServer returns a server answering every series with months of monthly
// observations ending at the first of the current month. Values count up
// from 100 in steps of 1.
func NewServer(t *testing.T, months int) *Server {
	t.Helper()
	s := &Server{
		requests: make(map[string]int),
		fail:     make(map[string]int),
		months:   months,
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// FailSeries makes requests for seriesID answer with status.
func (s *Server) FailSeries(seriesID string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[seriesID] = status
}

func (s *Server) Requests(seriesID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[seriesID]
}

type observation struct {
	Date  string `json:"date"`
	Value string `json:"value"`
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	seriesID := r.URL.Query().Get("series_id")

	s.mu.Lock()
	s.requests[seriesID]++
	status := s.fail[seriesID]
	s.mu.Unlock()

	if status != 0 {
		http.Error(w, "internal error", status)
		return
	}

	now := time.Now().UTC()
	last := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	rows := make([]observation, 0, s.months)
	for i := 0; i < s.months; i++ {
		date := last.AddDate(0, i-s.months+1, 0)
		rows = append(rows, observation{
			Date:  date.Format("2006-01-02"),
			Value: strconv.Itoa(100 + i),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"count":        len(rows),
		"offset":       0,
		"limit":        100000,
		"observations": rows,
	})
}
