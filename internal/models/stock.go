package models

import "time"

// Stock: (malzeme, göz) başına güncel miktar projeksiyonu. Defterden
// türetilir, tek başına güven kaynağı değildir; defter tekrar oynatılarak
// her zaman yeniden kurulabilir. Qty hiçbir commit sonrasında negatif olamaz.
type Stock struct {
	ID        uint `gorm:"primaryKey"`
	ItemID    uint `gorm:"not null;uniqueIndex:idx_stocks_item_slot"`
	Item      Item
	SlotID    uint `gorm:"not null;uniqueIndex:idx_stocks_item_slot"`
	Slot      Slot
	Qty       int64 `gorm:"not null"`
	UpdatedAt time.Time
}
