package repository

import (
	"fmt"
	"sync"
	"time"

	"github.com/tair/pos-ledger/internal/operator/domain"
)

// MemoryOperatorRepository keeps operators in process memory. It backs the
// in-memory store mode and tests.
type MemoryOperatorRepository struct {
	mu        sync.RWMutex
	operators map[uint]domain.Operator
	nextID    uint
}

// NewMemoryOperatorRepository creates an empty repository
func NewMemoryOperatorRepository() *MemoryOperatorRepository {
	return &MemoryOperatorRepository{operators: make(map[uint]domain.Operator)}
}

func (r *MemoryOperatorRepository) Create(operator *domain.Operator) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.operators {
		if existing.Username == operator.Username {
			return fmt.Errorf("%s: %w", operator.Username, domain.ErrDuplicate)
		}
	}

	r.nextID++
	now := time.Now()
	operator.ID = r.nextID
	operator.CreatedAt = now
	operator.UpdatedAt = now
	r.operators[operator.ID] = *operator
	return nil
}

func (r *MemoryOperatorRepository) FindByID(id uint) (*domain.Operator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	operator, ok := r.operators[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &operator, nil
}

func (r *MemoryOperatorRepository) FindByUsername(username string) (*domain.Operator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, operator := range r.operators {
		if operator.Username == username {
			return &operator, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MemoryOperatorRepository) SetActive(id uint, active bool) (*domain.Operator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	operator, ok := r.operators[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	operator.IsActive = active
	operator.UpdatedAt = time.Now()
	r.operators[id] = operator
	return &operator, nil
}

func (r *MemoryOperatorRepository) Count() (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.operators)), nil
}
