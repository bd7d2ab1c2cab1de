package dbtypes

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// UUIDArray maps a Postgres uuid[] column. SQLite stores the same array
// literal as text, so tests round-trip through the identical format.
type UUIDArray []uuid.UUID

func (a *UUIDArray) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = UUIDArray{}
		return nil
	case string:
		return a.parse(v)
	case []byte:
		return a.parse(string(v))
	default:
		return fmt.Errorf("uuid array: unsupported scan type %T", src)
	}
}

// Value renders the array literal with duplicates removed, first occurrence wins.
func (a UUIDArray) Value() (driver.Value, error) {
	var b strings.Builder
	b.WriteByte('{')
	seen := make(map[uuid.UUID]struct{}, len(a))
	for _, id := range a {
		if _, dup := seen[id]; dup {
			continue
		}
		if len(seen) > 0 {
			b.WriteByte(',')
		}
		seen[id] = struct{}{}
		b.WriteString(id.String())
	}
	b.WriteByte('}')
	return b.String(), nil
}

func (a UUIDArray) Contains(id uuid.UUID) bool {
	for _, candidate := range a {
		if candidate == id {
			return true
		}
	}
	return false
}

func (a *UUIDArray) parse(s string) error {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		return fmt.Errorf("uuid array: malformed literal %q", s)
	}
	body := strings.TrimSpace(s[1 : len(s)-1])
	if body == "" {
		*a = UUIDArray{}
		return nil
	}
	parts := strings.Split(body, ",")
	out := make(UUIDArray, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(strings.Trim(part, `"`))
		if strings.EqualFold(part, "NULL") {
			return fmt.Errorf("uuid array: NULL element")
		}
		id, err := uuid.Parse(part)
		if err != nil {
			return fmt.Errorf("uuid array: parse %q: %w", part, err)
		}
		out = append(out, id)
	}
	*a = out
	return nil
}
