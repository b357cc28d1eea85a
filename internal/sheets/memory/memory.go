package memory

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"sync"

	"apbn/internal/core"
	ports "apbn/internal/sheets"
)

// Scheme addresses in-memory sources: mem://<name>.
const Scheme = "mem"

// Store is an in-memory RowReader keyed by location.
type Store struct {
	mu     sync.Mutex
	sheets map[string][][]string
	fails  map[string]error
}

var _ ports.RowReader = (*Store)(nil)

func New() *Store {
	return &Store{sheets: make(map[string][][]string), fails: make(map[string]error)}
}

// Put stores a copy of rows under location.
func (s *Store) Put(location string, rows [][]string) {
	cp := make([][]string, len(rows))
	for i, r := range rows {
		cp[i] = append([]string(nil), r...)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sheets[location] = cp
	delete(s.fails, location)
}

// Fail makes reads of location return err.
func (s *Store) Fail(location string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fails[location] = err
}

func (s *Store) ReadRows(ctx context.Context, location string) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.fails[location]; ok {
		return nil, err
	}
	rows, ok := s.sheets[location]
	if !ok {
		return nil, fmt.Errorf("no such sheet: %s", location)
	}
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out, nil
}

// Demo returns a store seeded with deterministic budget rows for each year,
// addressed as mem://<year>.
func Demo(years []string, rowsPerYear int) *Store {
	s := New()
	units := []string{"Sekretariat Jenderal", "Inspektorat Jenderal", "Ditjen Anggaran", "Ditjen Pajak", "Ditjen Bea dan Cukai", "Ditjen Perbendaharaan"}
	for _, y := range years {
		seed, _ := strconv.ParseInt(y, 10, 64)
		rng := rand.New(rand.NewSource(seed))
		rows := [][]string{{"No", "Satuan Kerja", core.ExpenditureColumn, core.RevenueColumn}}
		for i := 0; i < rowsPerYear; i++ {
			budget := int64(500+rng.Intn(9500)) * 1_000_000
			realized := budget * int64(60+rng.Intn(40)) / 100
			rows = append(rows, []string{
				strconv.Itoa(i + 1),
				units[i%len(units)],
				strconv.FormatInt(budget, 10),
				strconv.FormatInt(realized, 10),
			})
		}
		s.Put(Scheme+"://"+y, rows)
	}
	return s
}
