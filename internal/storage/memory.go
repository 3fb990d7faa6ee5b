package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"paralogos/internal/model"
	"paralogos/internal/tree"
)

// MemoryStore keeps encoded records in process memory. Payloads are stored
// encoded so callers never share mutable tree state with the store.
type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string][]byte
	trees       map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string][]byte)
	s.trees = make(map[string][]byte)
	return nil
}

func treeKey(runID string, family int, stage string) string {
	return fmt.Sprintf("%s/%d/%s", runID, family, stage)
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.Run) error {
	payload, err := EncodeRun(run)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = payload
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.Run, bool, error) {
	s.mu.RLock()
	payload, ok := s.runs[id]
	s.mu.RUnlock()
	if !ok {
		return model.Run{}, false, nil
	}
	run, err := DecodeRun(payload)
	if err != nil {
		return model.Run{}, false, fmt.Errorf("decode run %s: %w", id, err)
	}
	return run, true, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Run, 0, len(s.runs))
	for id, payload := range s.runs {
		run, err := DecodeRun(payload)
		if err != nil {
			return nil, fmt.Errorf("decode run %s: %w", id, err)
		}
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAtUTC != out[j].CreatedAtUTC {
			return out[i].CreatedAtUTC < out[j].CreatedAtUTC
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) DeleteRun(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.runs, id)
	for k := range s.trees {
		if len(k) > len(id) && k[:len(id)+1] == id+"/" {
			delete(s.trees, k)
		}
	}
	return nil
}

func (s *MemoryStore) SaveTree(_ context.Context, runID string, family int, stage string, t *tree.Tree) error {
	payload, err := EncodeTree(t)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trees[treeKey(runID, family, stage)] = payload
	return nil
}

func (s *MemoryStore) GetTree(_ context.Context, runID string, family int, stage string) (*tree.Tree, bool, error) {
	s.mu.RLock()
	payload, ok := s.trees[treeKey(runID, family, stage)]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	t, err := DecodeTree(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode tree %s: %w", treeKey(runID, family, stage), err)
	}
	return t, true, nil
}
