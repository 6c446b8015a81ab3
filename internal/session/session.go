// Package session keeps per-session chat state between requests.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/sqlagent/sqlagent/internal/pipeline"
	"github.com/sqlagent/sqlagent/internal/warehouse"
)

var ErrNotFound = errors.New("session not found")

type Session struct {
	ID            string          `json:"session_id"`
	ChatHistory   []string        `json:"chat_history"`
	UserQuery     string          `json:"user_query"`
	SQLQuery      string          `json:"sql_query"`
	QueryResults  []warehouse.Row `json:"query_results"`
	QueryError    string          `json:"query_error,omitempty"`
	FinalResponse string          `json:"final_response"`
	History       []string        `json:"history"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// New returns an empty session for id.
func New(id string) Session {
	return Session{
		ID:           id,
		ChatHistory:  []string{},
		QueryResults: []warehouse.Row{},
		History:      []string{},
	}
}

// Store serializes updates per session id. Update creates the session on
// first use and persists the mutation only when fn returns nil.
type Store interface {
	Get(ctx context.Context, id string) (Session, error)
	Update(ctx context.Context, id string, fn func(*Session) error) (Session, error)
}

// RecordMessage appends message to the chat history and makes it the
// current query.
func (s *Session) RecordMessage(message string) {
	s.ChatHistory = append(s.ChatHistory, message)
	s.UserQuery = message
}

// ApplyRun copies the outputs of a pipeline run, complete or partial.
func (s *Session) ApplyRun(state pipeline.State, now time.Time) {
	state = state.Clone()
	s.SQLQuery = state.SQLQuery
	s.QueryResults = state.QueryResults
	if s.QueryResults == nil {
		s.QueryResults = []warehouse.Row{}
	}
	s.QueryError = state.QueryError
	s.FinalResponse = state.FinalResponse
	s.History = state.History
	if s.History == nil {
		s.History = []string{}
	}
	s.UpdatedAt = now.UTC()
}

// Clone deep-copies the slices held by s.
func (s Session) Clone() Session {
	out := s
	out.ChatHistory = append([]string{}, s.ChatHistory...)
	out.History = append([]string{}, s.History...)
	out.QueryResults = warehouse.CloneRows(s.QueryResults)
	if out.QueryResults == nil {
		out.QueryResults = []warehouse.Row{}
	}
	return out
}
