package dbtypes

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// StringArray maps a Postgres text[] column onto a string slice.
type StringArray []string

func (a *StringArray) Scan(src any) error {
	if src == nil {
		*a = StringArray{}
		return nil
	}

	switch v := src.(type) {
	case string:
		return a.parseFromString(v)
	case []byte:
		return a.parseFromString(string(v))
	default:
		return fmt.Errorf("StringArray: unsupported Scan type %T", src)
	}
}

func (a StringArray) Value() (driver.Value, error) {
	// Postgres array literal: {"a","b"}
	if len(a) == 0 {
		return "{}", nil
	}
	parts := make([]string, 0, len(a))
	for _, s := range a {
		s = strings.ReplaceAll(s, `\`, `\\`)
		s = strings.ReplaceAll(s, `"`, `\"`)
		parts = append(parts, `"`+s+`"`)
	}
	return "{" + strings.Join(parts, ",") + "}", nil
}

func (a *StringArray) parseFromString(s string) error {
	s = strings.TrimSpace(s)
	if s == "{}" || s == "" {
		*a = StringArray{}
		return nil
	}
	if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		return fmt.Errorf("StringArray: malformed array literal %q", s)
	}
	s = s[1 : len(s)-1]

	var (
		out      []string
		current  strings.Builder
		inQuotes bool
		escaped  bool
	)
	flush := func() {
		elem := current.String()
		if !inQuotes {
			elem = strings.TrimSpace(elem)
		}
		out = append(out, elem)
		current.Reset()
	}
	for _, r := range s {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '"':
			inQuotes = !inQuotes
		case r == ',' && !inQuotes:
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()
	*a = StringArray(out)
	return nil
}
