package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/openstatushq/pulse/internal/core/domain"
	"github.com/openstatushq/pulse/internal/infra/storage"
)

// MemoryStorage keeps everything in process. It backs single-node runs and
// tests.
type MemoryStorage struct {
	monitors  map[string]*domain.Monitor
	checks    map[string][]*domain.CheckResult // by monitor, oldest first
	incidents map[string]*domain.Incident
	mu        sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		monitors:  make(map[string]*domain.Monitor),
		checks:    make(map[string][]*domain.CheckResult),
		incidents: make(map[string]*domain.Incident),
	}
}

// Store returns a storage.Store view over s.
func (s *MemoryStorage) Store() *storage.Store {
	return &storage.Store{
		Monitors:  &MonitorRepo{store: s},
		Checks:    &CheckRepo{store: s},
		Incidents: &IncidentRepo{store: s},
	}
}

// -----------------------------------------------------------------------------
// Monitor Repository
// -----------------------------------------------------------------------------

type MonitorRepo struct {
	store *MemoryStorage
}

func NewMonitorRepo(store *MemoryStorage) *MonitorRepo {
	return &MonitorRepo{store: store}
}

func (r *MonitorRepo) List(ctx context.Context, activeOnly bool) ([]*domain.Monitor, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]*domain.Monitor, 0, len(r.store.monitors))
	for _, m := range r.store.monitors {
		if activeOnly && !m.Active {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MonitorRepo) Get(ctx context.Context, id string) (*domain.Monitor, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	m, ok := r.store.monitors[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *MonitorRepo) Save(ctx context.Context, m *domain.Monitor) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *m
	r.store.monitors[m.ID] = &cp
	return nil
}

func (r *MonitorRepo) Delete(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.monitors, id)
	delete(r.store.checks, id)
	return nil
}

// -----------------------------------------------------------------------------
// Check Repository
// -----------------------------------------------------------------------------

type CheckRepo struct {
	store *MemoryStorage
}

func NewCheckRepo(store *MemoryStorage) *CheckRepo {
	return &CheckRepo{store: store}
}

func (r *CheckRepo) Save(ctx context.Context, res *domain.CheckResult) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	list := r.store.checks[res.MonitorID]
	for _, existing := range list {
		if existing.ID == res.ID {
			return nil
		}
	}

	cp := *res
	i := sort.Search(len(list), func(i int) bool { return list[i].CheckedAt.After(cp.CheckedAt) })
	list = append(list, nil)
	copy(list[i+1:], list[i:])
	list[i] = &cp
	r.store.checks[res.MonitorID] = list
	return nil
}

func (r *CheckRepo) Latest(ctx context.Context, monitorID string) (*domain.CheckResult, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	list := r.store.checks[monitorID]
	if len(list) == 0 {
		return nil, storage.ErrNotFound
	}
	cp := *list[len(list)-1]
	return &cp, nil
}

func (r *CheckRepo) ListRecent(ctx context.Context, monitorID string, limit int) ([]*domain.CheckResult, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	list := r.store.checks[monitorID]
	out := make([]*domain.CheckResult, 0, min(limit, len(list)))
	for i := len(list) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *list[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (r *CheckRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var deleted int64
	for id, list := range r.store.checks {
		i := sort.Search(len(list), func(i int) bool { return !list[i].CheckedAt.Before(cutoff) })
		deleted += int64(i)
		r.store.checks[id] = append([]*domain.CheckResult(nil), list[i:]...)
	}
	return deleted, nil
}

// -----------------------------------------------------------------------------
// Incident Repository
// -----------------------------------------------------------------------------

type IncidentRepo struct {
	store *MemoryStorage
}

func NewIncidentRepo(store *MemoryStorage) *IncidentRepo {
	return &IncidentRepo{store: store}
}

func (r *IncidentRepo) GetOpen(ctx context.Context, monitorID string) (*domain.Incident, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, inc := range r.store.incidents {
		if inc.MonitorID == monitorID && inc.Open() {
			cp := *inc
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (r *IncidentRepo) Open(ctx context.Context, inc *domain.Incident) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *inc
	r.store.incidents[inc.ID] = &cp
	return nil
}

func (r *IncidentRepo) Resolve(ctx context.Context, id string, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	inc, ok := r.store.incidents[id]
	if !ok || !inc.Open() {
		return storage.ErrNotFound
	}
	inc.ResolvedAt = &at
	return nil
}
