package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/packdrop-backend/pkg/errors"
	"github.com/angelmondragon/packdrop-backend/pkg/pagination"
)

// ParseQueryInt reads an optional bounded integer query parameter.
func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, queryError(key, "must be an integer")
	}
	if value < min || value > max {
		return 0, queryError(key, "out of range").WithDetails(map[string]any{"field": key, "min": min, "max": max})
	}
	return value, nil
}

// ParsePage reads ?limit and ?cursor, rejecting undecodable cursors up front.
func ParsePage(r *http.Request) (pagination.Params, error) {
	limit, err := ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	params := pagination.Params{Limit: limit, Cursor: strings.TrimSpace(r.URL.Query().Get("cursor"))}
	if err := params.Validate(); err != nil {
		return pagination.Params{}, queryError("cursor", "is not a valid page cursor")
	}
	return params, nil
}

// ParseQueryEnum reads an optional enum filter through parse. An absent
// parameter yields nil.
func ParseQueryEnum[T ~string](r *http.Request, key string, parse func(string) (T, error)) (*T, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	value, err := parse(raw)
	if err != nil {
		return nil, queryError(key, "has an unsupported value")
	}
	return &value, nil
}

func queryError(key, problem string) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeValidation, "query parameter "+key+" "+problem).
		WithDetails(map[string]any{"field": key})
}
