package repository

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/tair/pos-ledger/internal/operator/domain"
)

// GormOperatorRepository implements OperatorRepository using GORM
type GormOperatorRepository struct {
	db *gorm.DB
}

// NewGormOperatorRepository creates a new GORM operator repository
func NewGormOperatorRepository(db *gorm.DB) *GormOperatorRepository {
	return &GormOperatorRepository{db: db}
}

// AutoMigrate creates or updates the operators table
func (r *GormOperatorRepository) AutoMigrate() error {
	if err := r.db.AutoMigrate(&domain.Operator{}); err != nil {
		return fmt.Errorf("failed to migrate operators: %w", err)
	}
	return nil
}

// Create inserts a new operator
func (r *GormOperatorRepository) Create(operator *domain.Operator) error {
	if err := r.db.Create(operator).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s: %w", operator.Username, domain.ErrDuplicate)
		}
		return fmt.Errorf("failed to create operator: %w", err)
	}
	return nil
}

// FindByID retrieves an operator by ID
func (r *GormOperatorRepository) FindByID(id uint) (*domain.Operator, error) {
	var operator domain.Operator
	if err := r.db.First(&operator, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &operator, nil
}

// FindByUsername retrieves an operator by username
func (r *GormOperatorRepository) FindByUsername(username string) (*domain.Operator, error) {
	var operator domain.Operator
	if err := r.db.Where("username = ?", username).First(&operator).Error; err != nil {
		return nil, notFound(err)
	}
	return &operator, nil
}

// SetActive enables or disables an operator and returns the updated row
func (r *GormOperatorRepository) SetActive(id uint, active bool) (*domain.Operator, error) {
	result := r.db.Model(&domain.Operator{}).Where("id = ?", id).Update("is_active", active)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update operator: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, domain.ErrNotFound
	}
	return r.FindByID(id)
}

// Count returns the number of operators
func (r *GormOperatorRepository) Count() (int64, error) {
	var count int64
	if err := r.db.Model(&domain.Operator{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count operators: %w", err)
	}
	return count, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return fmt.Errorf("failed to find operator: %w", err)
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint failed")
}
