package pipeline

import "github.com/sqlagent/sqlagent/internal/warehouse"

// State is the record threaded through one run. Stages never modify it in
// place; they return a Patch that Merge applies.
type State struct {
	UserInput     string          `json:"user_input"`
	TableContext  string          `json:"table_context"`
	SQLQuery      string          `json:"sql_query"`
	QueryResults  []warehouse.Row `json:"query_results"`
	QueryError    string          `json:"query_error,omitempty"`
	FinalResponse string          `json:"final_response"`
	History       []string        `json:"history"`
}

// Update is an optional field assignment. The zero value leaves the field
// untouched.
type Update[T any] struct {
	Value T
	Set   bool
}

func Set[T any](value T) Update[T] {
	return Update[T]{Value: value, Set: true}
}

// Patch is the partial result of a stage. History messages are appended.
type Patch struct {
	TableContext  Update[string]
	SQLQuery      Update[string]
	QueryResults  Update[[]warehouse.Row]
	QueryError    Update[string]
	FinalResponse Update[string]
	History       []string
}

// Merge returns a new state with patch applied. The result never shares its
// history slice with state.
func Merge(state State, patch Patch) State {
	next := state
	if patch.TableContext.Set {
		next.TableContext = patch.TableContext.Value
	}
	if patch.SQLQuery.Set {
		next.SQLQuery = patch.SQLQuery.Value
	}
	if patch.QueryResults.Set {
		next.QueryResults = patch.QueryResults.Value
	}
	if patch.QueryError.Set {
		next.QueryError = patch.QueryError.Value
	}
	if patch.FinalResponse.Set {
		next.FinalResponse = patch.FinalResponse.Value
	}

	history := make([]string, 0, len(state.History)+len(patch.History))
	history = append(history, state.History...)
	history = append(history, patch.History...)
	next.History = history
	return next
}

// Clone deep-copies the slices held by s.
func (s State) Clone() State {
	out := s
	out.QueryResults = warehouse.CloneRows(s.QueryResults)
	if s.History != nil {
		out.History = append([]string(nil), s.History...)
	}
	return out
}
