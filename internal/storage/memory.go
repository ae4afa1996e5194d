package storage

import (
	"context"
	"sort"
	"sync"

	"tvmdeploy/internal/errs"
	"tvmdeploy/internal/models"
)

// MemoryRepository keeps the journal in process memory. It is used when no
// database is configured; records are lost on exit.
type MemoryRepository struct {
	mu          sync.RWMutex
	deployments map[string]models.Deployment
	calls       []models.ContractCall
}

// NewMemoryRepository creates an empty MemoryRepository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{deployments: make(map[string]models.Deployment)}
}

func (r *MemoryRepository) SaveDeployment(_ context.Context, d *models.Deployment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deployments[d.ID] = *d
	return nil
}

func (r *MemoryRepository) GetDeployment(_ context.Context, id string) (*models.Deployment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.deployments[id]
	if !ok {
		return nil, errs.Newf(errs.ErrNotFound, "get deployment", "deployment not found: %s", id)
	}
	return &d, nil
}

func (r *MemoryRepository) ListDeployments(_ context.Context, limit, offset int) ([]*models.Deployment, error) {
	r.mu.RLock()
	all := make([]*models.Deployment, 0, len(r.deployments))
	for _, d := range r.deployments {
		d := d
		all = append(all, &d)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return page(all, limit, offset), nil
}

func (r *MemoryRepository) CountDeployments(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.deployments), nil
}

func (r *MemoryRepository) SaveContractCall(_ context.Context, call *models.ContractCall) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, *call)
	return nil
}

func (r *MemoryRepository) ListContractCalls(_ context.Context, address string, limit, offset int) ([]*models.ContractCall, error) {
	r.mu.RLock()
	var matched []*models.ContractCall
	// newest first
	for i := len(r.calls) - 1; i >= 0; i-- {
		if r.calls[i].Address == address {
			c := r.calls[i]
			matched = append(matched, &c)
		}
	}
	r.mu.RUnlock()
	return page(matched, limit, offset), nil
}

func (r *MemoryRepository) Ping(context.Context) error { return nil }

func (r *MemoryRepository) Close() error { return nil }

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
