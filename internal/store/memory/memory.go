package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"casebook/internal/core"
	"casebook/internal/serial"
	"casebook/internal/store"
)

var (
	_ store.CaseStore      = (*Store)(nil)
	_ store.HospitalLister = (*Store)(nil)
)

// Store keeps cases in process memory. The mutex is the transaction
// boundary: serial allocation and insert happen under the same lock.
type Store struct {
	mu        sync.Mutex
	hospitals []string
	items     []core.CaseEntry
	now       func() time.Time
}

func New(hospitals []string) *Store {
	return &Store{hospitals: dedupe(hospitals), now: time.Now}
}

// NewFromFiles seeds the recommended hospitals from base/seed_hospitals.txt.
func NewFromFiles(base string) *Store {
	hospitals := readLines(filepath.Join(base, "seed_hospitals.txt"))
	if len(hospitals) == 0 {
		hospitals = []string{"City Hospital", "Wellness Clinic", "Sunrise Medical Center", "General Hospital"}
	}
	return New(hospitals)
}

// maxSerial must be called with s.mu held.
func (s *Store) maxSerial(_ context.Context, ownerID, date string) (int, bool, error) {
	max, found := 0, false
	for _, c := range s.items {
		if c.OwnerID == ownerID && c.Date == date && c.SerialNumber > max {
			max, found = c.SerialNumber, true
		}
	}
	return max, found, nil
}

func (s *Store) List(_ context.Context, ownerID string, limit int) ([]core.CaseEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.CaseEntry, 0)
	for _, c := range s.items {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	slices.SortStableFunc(out, func(a, b core.CaseEntry) int {
		switch {
		case core.Less(a, b):
			return -1
		case core.Less(b, a):
			return 1
		}
		return 0
	})
	if limit = store.ClampLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Create(ctx context.Context, ownerID string, f core.CaseFields) (core.CaseEntry, error) {
	if ownerID == "" {
		return core.CaseEntry{}, core.ErrNoOwner
	}
	f, err := store.PrepareFields(f)
	if err != nil {
		return core.CaseEntry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sn, err := serial.Next(ctx, serial.SourceFunc(s.maxSerial), ownerID, f.Date)
	if err != nil {
		return core.CaseEntry{}, err
	}
	now := s.now().UTC()
	c := core.CaseEntry{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		SerialNumber: sn,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	c.Apply(f)
	s.items = append(s.items, c)
	return c, nil
}

func (s *Store) Update(ctx context.Context, ownerID, id string, f core.CaseFields) (core.CaseEntry, error) {
	f, err := store.PrepareFields(f)
	if err != nil {
		return core.CaseEntry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(ownerID, id)
	if idx < 0 {
		return core.CaseEntry{}, core.ErrNotFound
	}
	c := s.items[idx]
	sn, err := serial.ForUpdate(ctx, serial.SourceFunc(s.maxSerial), c, f.Date)
	if err != nil {
		return core.CaseEntry{}, err
	}
	c.Apply(f)
	c.SerialNumber = sn
	c.UpdatedAt = s.now().UTC()
	s.items[idx] = c
	return c, nil
}

func (s *Store) Delete(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(ownerID, id)
	if idx < 0 {
		return core.ErrNotFound
	}
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	return nil
}

// Hospitals returns the recommended hospital names.
func (s *Store) Hospitals(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.hospitals...), nil
}

func (s *Store) indexOf(ownerID, id string) int {
	for i, c := range s.items {
		if c.ID == id && c.OwnerID == ownerID {
			return i
		}
	}
	return -1
}

// String is used by log lines that print the backend.
func (s *Store) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("memory(%d cases)", len(s.items))
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return dedupe(out)
}

// dedupe drops blanks and repeats, preserving input order.
func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
