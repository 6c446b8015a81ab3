// Package sqlguard is a lexical read-only filter for generated SQL.
//
// It is not a parser. Keywords inside string literals are rejected
// ("select id from t where name = 'UPDATE'"), statements chained after a
// leading SELECT with semicolons are accepted, and comments are not
// understood. The database session is still opened read-only.
package sqlguard

import (
	"errors"
	"fmt"
	"strings"
)

var ErrNotSelect = errors.New("query does not start with SELECT")

var denylist = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER",
	"TRUNCATE", "GRANT", "REVOKE", "EXEC", "EXECUTE",
}

// KeywordError reports the denied keyword that caused a rejection.
type KeywordError struct {
	Keyword string
}

func (e *KeywordError) Error() string {
	return fmt.Sprintf("query contains denied keyword %s", e.Keyword)
}

// Denylist returns a copy of the rejected keywords in check order.
func Denylist() []string {
	out := make([]string, len(denylist))
	copy(out, denylist)
	return out
}

// Normalize collapses whitespace runs to single spaces, uppercases and trims.
func Normalize(sql string) string {
	return strings.TrimSpace(strings.ToUpper(strings.Join(strings.Fields(sql), " ")))
}

// Validate returns nil when sql passes the read-only check, ErrNotSelect when
// it does not start with SELECT, or a *KeywordError for the first denied
// keyword found as a space-delimited token.
func Validate(sql string) error {
	normalized := Normalize(sql)
	if !strings.HasPrefix(normalized, "SELECT") {
		return ErrNotSelect
	}
	for _, keyword := range denylist {
		token := " " + keyword
		if strings.Contains(normalized, token+" ") || strings.HasSuffix(normalized, token) {
			return &KeywordError{Keyword: keyword}
		}
	}
	return nil
}

func IsReadOnly(sql string) bool {
	return Validate(sql) == nil
}
