// Package extract pulls handler inputs out of requests: query parameters,
// route parameters and fields of JSON bodies.
package extract

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/tidwall/gjson"
)

// DefaultBodyLimit caps JSON request bodies.
const DefaultBodyLimit = 1 << 20

// ErrInvalidJSON is returned for bodies that are not well-formed JSON.
var ErrInvalidJSON = errors.New("invalid JSON body")

// Func extracts a value from a request.
type Func func(r *http.Request) string

// Build returns an extractor for a "kind:name" source: "query:type" reads a
// query parameter and "param:id" a route parameter. Other kinds yield "".
func Build(source string) Func {
	kind, name, _ := strings.Cut(source, ":")
	switch kind {
	case "query":
		return func(r *http.Request) string {
			return r.URL.Query().Get(name)
		}
	case "param":
		return func(r *http.Request) string {
			return httprouter.ParamsFromContext(r.Context()).ByName(name)
		}
	}
	return func(*http.Request) string { return "" }
}

// JSONBody reads at most limit bytes of r's body and parses it. An empty
// body yields an empty result and no error.
func JSONBody(w http.ResponseWriter, r *http.Request, limit int64) (gjson.Result, error) {
	if limit <= 0 {
		limit = DefaultBodyLimit
	}
	if r.Body == nil {
		return gjson.Result{}, nil
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("read body: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return gjson.Result{}, nil
	}
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, ErrInvalidJSON
	}
	return gjson.ParseBytes(data), nil
}

// PositiveInt returns the field at path as a positive integer. Missing,
// non-numeric, fractional or non-positive values yield def.
func PositiveInt(body gjson.Result, path string, def int) int {
	v := body.Get(path)
	var n int64
	switch v.Type {
	case gjson.Number:
		if v.Num != float64(int64(v.Num)) {
			return def
		}
		n = v.Int()
	case gjson.String:
		parsed, err := strconv.ParseInt(strings.TrimSpace(v.Str), 10, 64)
		if err != nil {
			return def
		}
		n = parsed
	default:
		return def
	}
	if n <= 0 {
		return def
	}
	return int(n)
}

// QueryInt parses a query value as a non-negative integer, returning def
// when the value is absent or malformed.
func QueryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
