package models

import "time"

type Warehouse struct {
	ID        uint         `gorm:"primaryKey"`
	Code      string       `gorm:"size:20;uniqueIndex;not null"` // sayısal çekirdek, ör: "01"
	Name      string       `gorm:"size:100;not null"`
	Status    EntityStatus `gorm:"size:20;not null;default:active"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Racks []Rack
}
