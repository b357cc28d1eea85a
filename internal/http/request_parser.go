// Package http provides HTTP server and handler implementations.
//
// This file parses the dashboard controls from query strings and forms.

package http

import (
	"errors"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"apbn/internal/view"
)

// ParseInputs reads the dashboard controls from query values. Missing or
// malformed values fall back to the initial state; range checks happen in
// view.Normalize.
func ParseInputs(q url.Values) view.Inputs {
	in := view.Inputs{
		Year:    sanitizeInput(q.Get("year")),
		Debug:   parseFlag(q.Get("debug")),
		ShowRaw: parseFlag(q.Get("raw")),
	}
	if v := strings.TrimSpace(q.Get("min_revenue")); v != "" {
		// Both parsers return the saturated value along with ErrRange.
		if n, err := strconv.ParseInt(v, 10, 64); err == nil || errors.Is(err, strconv.ErrRange) {
			in.MinRevenue = n
		} else if f, err := strconv.ParseFloat(v, 64); (err == nil || errors.Is(err, strconv.ErrRange)) && !math.IsNaN(f) {
			in.MinRevenue = saturateInt64(f)
		}
	}
	return in
}

// saturateInt64 converts f, pinning values outside the int64 range to its
// bounds so a larger threshold never wraps into a smaller one.
func saturateInt64(f float64) int64 {
	switch {
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	}
	return int64(f)
}

// parseFlag accepts the values HTML checkboxes and humans send.
func parseFlag(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "on", "true", "yes":
		return true
	}
	return false
}

// EncodeInputs is the inverse of ParseInputs, used for push-url and links.
func EncodeInputs(in view.Inputs) string {
	q := url.Values{}
	if in.Year != "" {
		q.Set("year", in.Year)
	}
	if in.MinRevenue > 0 {
		q.Set("min_revenue", strconv.FormatInt(in.MinRevenue, 10))
	}
	if in.Debug {
		q.Set("debug", "1")
	}
	if in.ShowRaw {
		q.Set("raw", "1")
	}
	return q.Encode()
}

// isHTMX reports whether the request was issued by htmx.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// sanitizeInput removes control characters and trims whitespace
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
