// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cost

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/flowctl/orchestrator/pkg/errors"
)

// Store is the persistence port the Tracker records usage through. It
// never raises validation errors of its own: a missing backing file reads
// as an empty history.
type Store interface {
	Save(rec Record) error
	IterAll() ([]Record, error)
	IterByDate(day time.Time) ([]Record, error)
	IterByCoordination(coordinationID string) ([]Record, error)
}

// MemoryStore is an in-process Store; tests use it instead of a file.
type MemoryStore struct {
	mu      sync.Mutex
	records []Record
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Save(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *MemoryStore) IterAll() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out, nil
}

func (s *MemoryStore) IterByDate(day time.Time) ([]Record, error) {
	all, _ := s.IterAll()
	return filterByDate(all, day), nil
}

func (s *MemoryStore) IterByCoordination(coordinationID string) ([]Record, error) {
	all, _ := s.IterAll()
	return filterByCoordination(all, coordinationID), nil
}

// FileStore appends one JSON object per line to a flat file, matching the
// original's append-only usage log. Reads load the whole file into memory;
// this is adequate for the local, single-operator scale this tool targets.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore returns a store backed by path. The containing directory is
// created lazily on first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Save(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "creating cost log dir %s", dir)
		}
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrapf(err, "opening cost log %s", s.path)
	}
	defer f.Close()

	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrapf(err, "encoding cost record")
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return errors.Wrapf(err, "writing cost log %s", s.path)
	}
	return nil
}

func (s *FileStore) IterAll() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readAll()
}

func (s *FileStore) readAll() ([]Record, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "reading cost log %s", s.path)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, scanner.Err()
}

func (s *FileStore) IterByDate(day time.Time) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.readAll()
	if err != nil {
		return nil, err
	}
	return filterByDate(all, day), nil
}

func (s *FileStore) IterByCoordination(coordinationID string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.readAll()
	if err != nil {
		return nil, err
	}
	return filterByCoordination(all, coordinationID), nil
}

func filterByDate(records []Record, day time.Time) []Record {
	y, m, d := day.Date()
	var out []Record
	for _, r := range records {
		ry, rm, rd := r.Timestamp.Date()
		if ry == y && rm == m && rd == d {
			out = append(out, r)
		}
	}
	return out
}

func filterByCoordination(records []Record, coordinationID string) []Record {
	var out []Record
	for _, r := range records {
		if r.CoordinationID == coordinationID {
			out = append(out, r)
		}
	}
	return out
}
