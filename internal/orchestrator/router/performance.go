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

package router

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/flowctl/orchestrator/pkg/errors"
)

// emaAlpha is the exponential-moving-average smoothing factor applied to
// execution time and token usage on every recorded execution.
const emaAlpha = 0.1

// MemoryPerformanceStore is an in-process PerformanceStore that never
// touches disk; New falls back to it when given no store, and tests use it.
type MemoryPerformanceStore struct {
	mu      sync.Mutex
	records map[string]PerformanceRecord
}

// NewMemoryPerformanceStore returns an empty in-memory store.
func NewMemoryPerformanceStore() *MemoryPerformanceStore {
	return &MemoryPerformanceStore{records: make(map[string]PerformanceRecord)}
}

func (s *MemoryPerformanceStore) Get(adapterName string) (PerformanceRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[adapterName]
	return rec, ok
}

func (s *MemoryPerformanceStore) Update(adapterName string, rec PerformanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[adapterName] = rec
	return nil
}

func (s *MemoryPerformanceStore) All() map[string]PerformanceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]PerformanceRecord, len(s.records))
	for k, v := range s.records {
		out[k] = v
	}
	return out
}

// FilePerformanceStore persists performance history to a single JSON file,
// matching the original's state/routing/performance_history.json layout. A
// missing file is treated as empty history rather than an error.
type FilePerformanceStore struct {
	mu   sync.Mutex
	path string
}

// NewFilePerformanceStore returns a store backed by path. The containing
// directory is created lazily on first Update.
func NewFilePerformanceStore(path string) *FilePerformanceStore {
	return &FilePerformanceStore{path: path}
}

func (s *FilePerformanceStore) load() (map[string]PerformanceRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]PerformanceRecord), nil
		}
		return nil, err
	}
	var wire map[string]wirePerformanceRecord
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, errors.Wrapf(err, "parsing performance history %s", s.path)
	}
	out := make(map[string]PerformanceRecord, len(wire))
	for k, v := range wire {
		out[k] = v.toRecord()
	}
	return out, nil
}

func (s *FilePerformanceStore) Get(adapterName string) (PerformanceRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.load()
	if err != nil {
		return PerformanceRecord{}, false
	}
	rec, ok := records[adapterName]
	return rec, ok
}

func (s *FilePerformanceStore) Update(adapterName string, rec PerformanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.load()
	if err != nil {
		records = make(map[string]PerformanceRecord)
	}
	records[adapterName] = rec

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "creating performance history dir %s", dir)
		}
	}
	wire := make(map[string]wirePerformanceRecord, len(records))
	for k, v := range records {
		wire[k] = fromRecord(v)
	}
	data, err := json.MarshalIndent(wire, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "encoding performance history")
	}
	return os.WriteFile(s.path, data, 0o644)
}

func (s *FilePerformanceStore) All() map[string]PerformanceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.load()
	if err != nil {
		return map[string]PerformanceRecord{}
	}
	return records
}

// wirePerformanceRecord mirrors the original's JSON field names
// (total_executions, average_time in seconds, etc).
type wirePerformanceRecord struct {
	TotalExecutions      int     `json:"total_executions"`
	SuccessfulExecutions int     `json:"successful_executions"`
	AverageTimeSeconds   float64 `json:"average_time"`
	AverageTokens        float64 `json:"average_tokens"`
	SuccessRate          float64 `json:"success_rate"`
}

func fromRecord(r PerformanceRecord) wirePerformanceRecord {
	return wirePerformanceRecord{
		TotalExecutions:      r.TotalExecutions,
		SuccessfulExecutions: r.SuccessfulExecutions,
		AverageTimeSeconds:   r.AverageTime.Seconds(),
		AverageTokens:        r.AverageTokens,
		SuccessRate:          r.SuccessRate,
	}
}

func (w wirePerformanceRecord) toRecord() PerformanceRecord {
	return PerformanceRecord{
		TotalExecutions:      w.TotalExecutions,
		SuccessfulExecutions: w.SuccessfulExecutions,
		AverageTime:          time.Duration(w.AverageTimeSeconds * float64(time.Second)),
		AverageTokens:        w.AverageTokens,
		SuccessRate:          w.SuccessRate,
	}
}

// updatePerformance applies one execution's outcome to store. Average
// time and tokens use the same exponential-moving-average update the
// original router performs, alpha=0.1; SuccessRate is recomputed as
// successful/total executions, so a brand-new adapter whose first
// execution fails drops straight to 0.
func updatePerformance(store PerformanceStore, adapterName string, execTime time.Duration, success bool, tokensUsed int) {
	if store == nil {
		return
	}
	rec, ok := store.Get(adapterName)
	if !ok {
		rec = PerformanceRecord{SuccessRate: 1.0}
	}
	rec.TotalExecutions++
	if success {
		rec.SuccessfulExecutions++
	}
	rec.AverageTime = time.Duration((1-emaAlpha)*float64(rec.AverageTime) + emaAlpha*float64(execTime))
	if tokensUsed > 0 {
		rec.AverageTokens = (1-emaAlpha)*rec.AverageTokens + emaAlpha*float64(tokensUsed)
	}
	rec.SuccessRate = float64(rec.SuccessfulExecutions) / float64(rec.TotalExecutions)
	_ = store.Update(adapterName, rec)
}
