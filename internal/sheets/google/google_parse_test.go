package google

import (
	"context"
	"testing"

	"apbn/internal/core"
)

func TestParseLocation(t *testing.T) {
	cases := []struct {
		in      string
		id, rng string
		ok      bool
	}{
		{"gsheets://abc123/2014", "abc123", "'2014'", true},
		{"GSHEETS://abc123/Realisasi APBN", "abc123", "'Realisasi APBN'", true},
		{"gsheets://abc123/Bob's", "abc123", "'Bob''s'", true},
		{"gsheets://abc123", "abc123", defaultRange, true},
		{"gsheets://abc123/", "abc123", defaultRange, true},
		{"gsheets:///Sheet1", "", "", false},
		{"mem://2014", "", "", false},
		{"realisasi.xlsx", "", "", false},
	}
	for _, tc := range cases {
		id, rng, err := ParseLocation(tc.in)
		if tc.ok {
			if err != nil || id != tc.id || rng != tc.rng {
				t.Fatalf("%q: got (%q, %q, %v), want (%q, %q)", tc.in, id, rng, err, tc.id, tc.rng)
			}
		} else if err == nil {
			t.Fatalf("%q: expected error", tc.in)
		}
	}
}

// Emulates an UNFORMATTED_VALUE response for a budget sheet.
func TestToStringsFeedsTable(t *testing.T) {
	values := [][]interface{}{
		{"Satker ", "Realisasi Keuangan (Rp)", "Anggaran (Rp)", "Aktif"},
		{"Setjen", 15000000.0, 2.5e7, true},
		{"Itjen", 300.5, nil},
	}
	rows := make([][]string, len(values))
	for i, v := range values {
		rows[i] = toStrings(v)
	}
	if rows[1][1] != "15000000" || rows[1][2] != "25000000" || rows[1][3] != "TRUE" {
		t.Fatalf("unexpected conversion: %v", rows[1])
	}

	tbl := core.NewTable(rows)
	if !tbl.HasColumn("Satker") || tbl.Len() != 2 {
		t.Fatalf("unexpected table: %+v", tbl)
	}
	f, ok := tbl.Records[1].Get(core.RevenueColumn).Float()
	if !ok || f != 300.5 {
		t.Fatalf("revenue = %v %v", f, ok)
	}
	if tbl.Records[1].Get(core.ExpenditureColumn).Kind != core.KindEmpty {
		t.Fatalf("nil cell should be empty")
	}
}

func TestReadRowsWithoutService(t *testing.T) {
	c := &Client{}
	if _, err := c.ReadRows(context.Background(), "gsheets://x/y"); err == nil {
		t.Fatalf("expected error without service")
	}
}
