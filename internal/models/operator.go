package models

import "time"

type OperatorRole string

const (
	RoleAdmin    OperatorRole = "admin"
	RoleOperator OperatorRole = "operator"
)

// Operator: Her hareket ve denetim kaydında aktör olarak geçer, asla silinmez.
type Operator struct {
	ID            uint         `gorm:"primaryKey"`
	Username      string       `gorm:"size:50;uniqueIndex;not null"`
	DisplayName   string       `gorm:"size:100;not null"`
	Role          OperatorRole `gorm:"size:20;not null"`
	Status        EntityStatus `gorm:"size:20;not null;default:active"`
	PasswordHash  string       `gorm:"size:255;not null"`
	MustChangePwd bool         `gorm:"not null;default:false"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
