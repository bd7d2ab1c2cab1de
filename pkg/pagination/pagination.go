// Package pagination implements descending keyset pages over (timestamp, id).
package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

var ErrInvalidCursor = errors.New("invalid cursor")

// Params is the page request as read from ?limit&cursor.
type Params struct {
	Limit  int
	Cursor string
}

// Validate reports a cursor that cannot be decoded.
func (p Params) Validate() error {
	_, err := ParseCursor(p.Cursor)
	return err
}

// Cursor is the key of the last row on a page.
type Cursor struct {
	At time.Time
	ID uuid.UUID
}

func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// EncodeCursor returns an opaque, URL-safe token.
func EncodeCursor(c Cursor) string {
	payload := c.At.UTC().Format(time.RFC3339Nano) + "|" + c.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

// ParseCursor returns nil for an empty value.
func ParseCursor(value string) (*Cursor, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	at, id, ok := strings.Cut(string(decoded), "|")
	if !ok {
		return nil, ErrInvalidCursor
	}
	t, err := time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return nil, fmt.Errorf("%w: timestamp: %v", ErrInvalidCursor, err)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: id: %v", ErrInvalidCursor, err)
	}
	return &Cursor{At: t, ID: parsed}, nil
}

// Find loads one page of q ordered by column DESC, id DESC. It fetches one
// extra row to decide whether a next cursor exists.
func Find[T any](q *gorm.DB, column string, params Params, key func(T) Cursor) ([]T, string, error) {
	cursor, err := ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}
	limit := NormalizeLimit(params.Limit)

	if cursor != nil {
		q = q.Where(fmt.Sprintf("((%[1]s < ?) OR (%[1]s = ? AND id < ?))", column), cursor.At, cursor.At, cursor.ID)
	}
	var rows []T
	if err := q.Order(column + " DESC").Order("id DESC").Limit(limit + 1).Find(&rows).Error; err != nil {
		return nil, "", err
	}
	if len(rows) <= limit {
		return rows, "", nil
	}
	rows = rows[:limit]
	return rows, EncodeCursor(key(rows[limit-1])), nil
}
