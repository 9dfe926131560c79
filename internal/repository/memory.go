package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MrEthical07/goStage/stage"
)

// MemoryUsers is a Users kept in process memory.
type MemoryUsers struct {
	mu      sync.RWMutex
	nextID  int64
	byID    map[int64]Account
	byEmail map[string]int64
	now     func() time.Time
}

func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{
		nextID:  1,
		byID:    make(map[int64]Account),
		byEmail: make(map[string]int64),
		now:     time.Now,
	}
}

func (m *MemoryUsers) Create(_ context.Context, acc Account) (Account, error) {
	email := normalizeEmail(acc.Record.Email)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[email]; ok {
		return Account{}, ErrEmailTaken
	}
	acc.Record = acc.Record.Clone()
	acc.Record.ID = m.nextID
	acc.Record.Email = email
	acc.CreatedAt = m.now()
	m.nextID++
	m.byID[acc.Record.ID] = acc
	m.byEmail[email] = acc.Record.ID
	return cloneAccount(acc), nil
}

func (m *MemoryUsers) ByEmail(_ context.Context, email string) (Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byEmail[normalizeEmail(email)]
	if !ok {
		return Account{}, ErrNotFound
	}
	return cloneAccount(m.byID[id]), nil
}

func (m *MemoryUsers) ByID(_ context.Context, id int64) (Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	acc, ok := m.byID[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return cloneAccount(acc), nil
}

func cloneAccount(acc Account) Account {
	acc.Record = acc.Record.Clone()
	return acc
}

// MemoryStages is a Stages kept in process memory.
type MemoryStages struct {
	mu     sync.RWMutex
	nextID int64
	stages map[int64]stage.Stage
}

func NewMemoryStages() *MemoryStages {
	return &MemoryStages{
		nextID: 1,
		stages: make(map[int64]stage.Stage),
	}
}

func (m *MemoryStages) Create(_ context.Context, st stage.Stage) (stage.Stage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st = st.Clone()
	st.ID = m.nextID
	st.Version = 1
	m.nextID++
	m.stages[st.ID] = st
	return st.Clone(), nil
}

func (m *MemoryStages) Get(_ context.Context, id int64) (stage.Stage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.stages[id]
	if !ok {
		return stage.Stage{}, ErrNotFound
	}
	return st.Clone(), nil
}

func (m *MemoryStages) List(_ context.Context, f Filter) ([]stage.Stage, error) {
	m.mu.RLock()
	out := make([]stage.Stage, 0, len(m.stages))
	for _, st := range m.stages {
		if f.matches(st) {
			out = append(out, st.Clone())
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStages) Update(_ context.Context, next stage.Stage, version int64) (stage.Stage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.stages[next.ID]
	if !ok {
		return stage.Stage{}, ErrNotFound
	}
	if cur.Version != version {
		return stage.Stage{}, ErrConflict
	}
	next = next.Clone()
	next.CreatedAt = cur.CreatedAt
	next.Version = cur.Version + 1
	m.stages[next.ID] = next
	return next.Clone(), nil
}

func (m *MemoryStages) Delete(_ context.Context, id int64, version int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.stages[id]
	if !ok {
		return ErrNotFound
	}
	if cur.Version != version {
		return ErrConflict
	}
	delete(m.stages, id)
	return nil
}
