package models

import "time"

// Item: Stok kalemi (SKU). Alan güncellemeleri geçmiş hareketleri etkilemez,
// hareketler item_id referansı tutar.
type Item struct {
	ID        uint         `gorm:"primaryKey"`
	ItemCode  string       `gorm:"size:50;uniqueIndex;not null"`
	Name      string       `gorm:"size:100;not null"`
	Model     string       `gorm:"size:100"`
	Spec      string       `gorm:"size:100"` // teknik özellik / ebat
	UOM       string       `gorm:"size:20;not null;column:uom"` // adet, kg, koli vs.
	Status    EntityStatus `gorm:"size:20;not null;default:active"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
