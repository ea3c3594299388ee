package memory

import (
	"context"
	"sort"
	"sync"

	"wallet/internal/ledger"
)

type key struct {
	owner string
	id    int64
}

// Store is an in-process ledger used for development and tests.
type Store struct {
	mu   sync.Mutex
	rows map[key]ledger.Row
}

var (
	_ ledger.Writer = (*Store)(nil)
	_ ledger.Reader = (*Store)(nil)
)

func New() *Store {
	return &Store{rows: make(map[key]ledger.Row)}
}

func (s *Store) Upsert(_ context.Context, row ledger.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[key{row.Owner, row.ID}] = row
	return nil
}

func (s *Store) Delete(_ context.Context, owner string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{owner, id}
	if _, ok := s.rows[k]; !ok {
		return ledger.ErrRowNotFound
	}
	delete(s.rows, k)
	return nil
}

func (s *Store) ReplaceAll(_ context.Context, rows []ledger.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = make(map[key]ledger.Row, len(rows))
	for _, r := range rows {
		s.rows[key{r.Owner, r.ID}] = r
	}
	return nil
}

// Rows returns the rows in ledger order.
func (s *Store) Rows(_ context.Context) ([]ledger.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ledger.Row, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return ledger.Less(out[i], out[j]) })
	return out, nil
}
