package google

import (
	"fmt"
	"strconv"
	"strings"

	ports "apbn/internal/sheets"
)

// defaultRange addresses the first sheet when the location names none.
const defaultRange = "A:ZZ"

// ParseLocation splits "gsheets://<id>/<sheet>" into the spreadsheet id and
// the A1 range to read.
func ParseLocation(location string) (id, rng string, err error) {
	scheme, rest, ok := ports.SplitScheme(location)
	if !ok || scheme != Scheme {
		return "", "", fmt.Errorf("not a %s location: %q", Scheme, location)
	}
	id, sheet, _ := strings.Cut(rest, "/")
	id = strings.TrimSpace(id)
	if id == "" {
		return "", "", fmt.Errorf("missing spreadsheet id in %q", location)
	}
	sheet = strings.TrimSpace(sheet)
	if sheet == "" {
		return id, defaultRange, nil
	}
	return id, "'" + strings.ReplaceAll(sheet, "'", "''") + "'", nil
}

// toStrings converts one row of API values. Numbers are printed without
// exponent so they parse back exactly.
func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		switch n := v.(type) {
		case nil:
			out[i] = ""
		case float64:
			out[i] = strconv.FormatFloat(n, 'f', -1, 64)
		case bool:
			out[i] = strings.ToUpper(strconv.FormatBool(n))
		default:
			out[i] = fmt.Sprint(v)
		}
	}
	return out
}
