package domain

import (
	"errors"
	"time"

	"github.com/tair/pos-ledger/pkg/auth"
)

// Error classes returned by the operator use cases
var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("operator not found")
	ErrDuplicate          = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactive           = errors.New("operator is deactivated")
)

// Operator is a person allowed to work a till. The role ends up in the
// tokens the ledger service checks.
type Operator struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Username     string    `json:"username" gorm:"size:100;uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"not null"`
	FullName     string    `json:"full_name" gorm:"size:255;not null"`
	Role         string    `json:"role" gorm:"size:16;not null;default:'cashier'"`
	IsActive     bool      `json:"is_active" gorm:"not null;default:true"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName specifies the table name
func (Operator) TableName() string {
	return "operators"
}

// ValidRole reports whether role is one the ledger understands
func ValidRole(role string) bool {
	switch role {
	case auth.RoleCashier, auth.RoleSupervisor, auth.RoleAdmin:
		return true
	}
	return false
}

// OperatorRepository defines the contract for operator data access
type OperatorRepository interface {
	Create(operator *Operator) error
	FindByID(id uint) (*Operator, error)
	FindByUsername(username string) (*Operator, error)
	SetActive(id uint, active bool) (*Operator, error)
	Count() (int64, error)
}
