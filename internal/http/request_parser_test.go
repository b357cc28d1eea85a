package http

import (
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"apbn/internal/view"
)

func TestParseInputs(t *testing.T) {
	tests := []struct {
		name  string
		query url.Values
		want  view.Inputs
	}{
		{
			name:  "empty query is the initial state",
			query: url.Values{},
			want:  view.Inputs{},
		},
		{
			name:  "all values provided",
			query: url.Values{"year": {"2014"}, "min_revenue": {"1500"}, "debug": {"on"}, "raw": {"1"}},
			want:  view.Inputs{Year: "2014", MinRevenue: 1500, Debug: true, ShowRaw: true},
		},
		{
			name:  "decimal threshold is truncated",
			query: url.Values{"min_revenue": {"99.9"}},
			want:  view.Inputs{MinRevenue: 99},
		},
		{
			name:  "invalid values are ignored",
			query: url.Values{"min_revenue": {"abc"}, "debug": {"maybe"}},
			want:  view.Inputs{},
		},
		{
			name:  "negative threshold passes through",
			query: url.Values{"min_revenue": {"-5"}},
			want:  view.Inputs{MinRevenue: -5},
		},
		{
			name:  "year is trimmed and stripped of control characters",
			query: url.Values{"year": {" 20\x0015 "}},
			want:  view.Inputs{Year: "2015"},
		},
		{
			name:  "integer beyond int64 saturates",
			query: url.Values{"min_revenue": {"99999999999999999999"}},
			want:  view.Inputs{MinRevenue: math.MaxInt64},
		},
		{
			name:  "huge float saturates",
			query: url.Values{"min_revenue": {"1e30"}},
			want:  view.Inputs{MinRevenue: math.MaxInt64},
		},
		{
			name:  "float overflow saturates",
			query: url.Values{"min_revenue": {"1e400"}},
			want:  view.Inputs{MinRevenue: math.MaxInt64},
		},
		{
			name:  "huge negative float saturates low",
			query: url.Values{"min_revenue": {"-1e30"}},
			want:  view.Inputs{MinRevenue: math.MinInt64},
		},
		{
			name:  "NaN threshold is ignored",
			query: url.Values{"min_revenue": {"NaN"}},
			want:  view.Inputs{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseInputs(tt.query)
			if got != tt.want {
				t.Errorf("ParseInputs() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestEncodeInputs_RoundTrip(t *testing.T) {
	in := view.Inputs{Year: "2013", MinRevenue: 42, Debug: true}
	q, err := url.ParseQuery(EncodeInputs(in))
	if err != nil {
		t.Fatalf("ParseQuery: %v", err)
	}
	if got := ParseInputs(q); got != in {
		t.Errorf("round trip = %+v, want %+v", got, in)
	}
	if EncodeInputs(view.Inputs{}) != "" {
		t.Error("initial state should encode to an empty query")
	}
}

func TestIsHTMX(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if isHTMX(r) {
		t.Error("plain request reported as htmx")
	}
	r.Header.Set("HX-Request", "true")
	if !isHTMX(r) {
		t.Error("htmx request not detected")
	}
}
