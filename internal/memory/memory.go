// Package memory is the flat JSON-file persistence layer: applied log,
// seen set, and the outreach queue. Best-effort durability — atomic
// writes, no fsync guarantees.
package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"applypilot/internal/domain"

	"github.com/gofrs/flock"
)

const (
	appliedFile = "applied.json"
	seenFile    = "seen.json"
	queueFile   = "outreach_queue.json"
	lockFile    = "applypilot.lock"

	maxApplied = 5000
	maxSeen    = 20000
	maxQueue   = 200
)

type Store struct {
	mu   sync.Mutex
	dir  string
	lock *flock.Flock

	applied []domain.Application
	seen    map[string]time.Time // portal id -> first seen
	queue   []domain.OutreachDraft
}

// Open acquires the data-dir lock and loads the files. A held lock means
// another process (a stray cron copy) is mid-cycle; we refuse to start.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	lk := flock.New(filepath.Join(dir, lockFile))
	ok, err := lk.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock data dir: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("data dir %s is locked by another applypilot process", dir)
	}

	s := &Store{dir: dir, lock: lk, seen: make(map[string]time.Time)}
	if err := readJSON(filepath.Join(dir, appliedFile), &s.applied); err != nil {
		_ = lk.Unlock()
		return nil, err
	}
	if err := readJSON(filepath.Join(dir, seenFile), &s.seen); err != nil {
		_ = lk.Unlock()
		return nil, err
	}
	if s.seen == nil {
		s.seen = make(map[string]time.Time)
	}
	if err := readJSON(filepath.Join(dir, queueFile), &s.queue); err != nil {
		_ = lk.Unlock()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.lock == nil {
		return nil
	}
	return s.lock.Unlock()
}

func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(b, v)
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *Store) Seen(portalID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[portalID]
	return ok
}

func (s *Store) MarkSeen(portalID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[portalID]; ok {
		return
	}
	s.seen[portalID] = time.Now().UTC()

	if len(s.seen) > maxSeen {
		// trim oldest first
		type kv struct {
			id string
			at time.Time
		}
		all := make([]kv, 0, len(s.seen))
		for id, at := range s.seen {
			all = append(all, kv{id, at})
		}
		sort.Slice(all, func(i, j int) bool { return all[i].at.Before(all[j].at) })
		for _, e := range all[:len(all)-maxSeen] {
			delete(s.seen, e.id)
		}
	}
	_ = writeJSON(filepath.Join(s.dir, seenFile), s.seen)
}

func (s *Store) RecordApplication(app domain.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applied = append(s.applied, app)
	if n := len(s.applied); n > maxApplied {
		s.applied = s.applied[n-maxApplied:]
	}
	return writeJSON(filepath.Join(s.dir, appliedFile), s.applied)
}

// Applications returns the newest records first, up to limit.
func (s *Store) Applications(limit int) []domain.Application {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.applied)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]domain.Application, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.applied[i])
	}
	return out
}

// AppliedOn counts successful applications on the given day. Records
// carry UTC timestamps, so the comparison is pinned to UTC dates
// regardless of the caller's zone.
func (s *Store) AppliedOn(day time.Time) int {
	y, m, d := day.UTC().Date()
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, a := range s.applied {
		ay, am, ad := a.AppliedAt.UTC().Date()
		if a.Status == domain.StatusApplied && ay == y && am == m && ad == d {
			count++
		}
	}
	return count
}

// AlreadyApplied reports whether a posting was ever applied to, which
// survives seen-set trimming.
func (s *Store) AlreadyApplied(portalID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.applied {
		if a.PortalID == portalID && a.Status == domain.StatusApplied {
			return true
		}
	}
	return false
}

func (s *Store) EnqueueOutreach(d domain.OutreachDraft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, d)
	if n := len(s.queue); n > maxQueue {
		s.queue = s.queue[n-maxQueue:]
	}
	return writeJSON(filepath.Join(s.dir, queueFile), s.queue)
}

func (s *Store) OutreachQueue() []domain.OutreachDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.OutreachDraft, len(s.queue))
	copy(out, s.queue)
	return out
}

// DropOutreach removes a reviewed draft by id.
func (s *Store) DropOutreach(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.queue[:0]
	for _, d := range s.queue {
		if d.ID != id {
			kept = append(kept, d)
		}
	}
	s.queue = kept
	return writeJSON(filepath.Join(s.dir, queueFile), s.queue)
}
