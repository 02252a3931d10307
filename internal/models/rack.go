package models

import "time"

// Rack: Bir depo içindeki raf. level_count x slots_per_level kadar göz üretir.
type Rack struct {
	ID            uint   `gorm:"primaryKey"`
	Code          string `gorm:"size:20;not null;uniqueIndex:idx_racks_warehouse_code"`
	Name          string `gorm:"size:100;not null"`
	WarehouseID   uint   `gorm:"not null;uniqueIndex:idx_racks_warehouse_code;index"`
	Warehouse     Warehouse
	Location      string       `gorm:"size:100"` // opsiyonel yer tarifi
	LevelCount    int          `gorm:"not null"`
	SlotsPerLevel int          `gorm:"not null"`
	Status        EntityStatus `gorm:"size:20;not null;default:active"`
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Slots []Slot
}

// Slot: En küçük adres birimi. Tüm stok miktarları göz bazında tutulur.
type Slot struct {
	ID          uint `gorm:"primaryKey"`
	RackID      uint `gorm:"not null;uniqueIndex:idx_slots_rack_level_no"`
	Rack        Rack
	WarehouseID uint         `gorm:"not null;index"` // denormalize, sorgu kolaylığı için
	LevelNo     int          `gorm:"not null;uniqueIndex:idx_slots_rack_level_no"`
	SlotNo      int          `gorm:"not null;uniqueIndex:idx_slots_rack_level_no"`
	Code        string       `gorm:"size:50;uniqueIndex;not null"` // ör: "01-3-2-05"
	Status      EntityStatus `gorm:"size:20;not null;default:active"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
