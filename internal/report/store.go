package report

import (
	"encoding/json"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Store holds the committed result set. A commit whose content equals the
// held set changes nothing, so readers can use Version to detect changes.
type Store struct {
	mu          sync.RWMutex
	records     []Result
	fingerprint [blake2b.Size256]byte
	version     uint64
	loaded      bool
	updatedAt   time.Time
}

// Snapshot is a read-only view of the store at one version.
type Snapshot struct {
	Records   []Result  `json:"records"`
	Version   uint64    `json:"version"`
	Loaded    bool      `json:"loaded"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewStore() *Store {
	return &Store{}
}

// Commit replaces the held set when records differ from it and reports
// whether it did.
func (s *Store) Commit(records []Result) bool {
	sum, ok := fingerprint(records)

	s.mu.Lock()
	defer s.mu.Unlock()
	if ok && s.loaded && sum == s.fingerprint {
		return false
	}
	s.records = append([]Result(nil), records...)
	s.fingerprint = sum
	s.version++
	s.loaded = true
	s.updatedAt = time.Now().UTC()
	return true
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Records:   append([]Result(nil), s.records...),
		Version:   s.version,
		Loaded:    s.loaded,
		UpdatedAt: s.updatedAt,
	}
}

func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// fingerprint hashes the JSON form of records. ok is false when they cannot
// be encoded, in which case the commit is treated as a change.
func fingerprint(records []Result) (sum [blake2b.Size256]byte, ok bool) {
	if records == nil {
		records = []Result{}
	}
	b, err := json.Marshal(records)
	if err != nil {
		return sum, false
	}
	return blake2b.Sum256(b), true
}
