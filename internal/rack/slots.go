package rack

import (
	"fmt"

	"depo-backend/internal/apperr"
	"depo-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// slotCode: "<depo>-<raf>-<kat>-<göz>" formatında global benzersiz adres.
// Göz numarası iki haneye tamamlanır: "01-3-2-05".
func slotCode(whCode, rackCode string, levelNo, slotNo int) string {
	return fmt.Sprintf("%s-%s-%d-%02d", whCode, rackCode, levelNo, slotNo)
}

func rackForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// generateSlots: Yeni raf için level_count x slots_per_level göz açar.
func generateSlots(tx *gorm.DB, rack *models.Rack, whCode string) error {
	slots := make([]models.Slot, 0, rack.LevelCount*rack.SlotsPerLevel)
	for level := 1; level <= rack.LevelCount; level++ {
		for no := 1; no <= rack.SlotsPerLevel; no++ {
			slots = append(slots, models.Slot{
				RackID:      rack.ID,
				WarehouseID: rack.WarehouseID,
				LevelNo:     level,
				SlotNo:      no,
				Code:        slotCode(whCode, rack.Code, level, no),
				Status:      models.StatusActive,
			})
		}
	}
	return tx.CreateInBatches(slots, 200).Error
}

// resizeSlots: Raf boyutu değişince göz kümesini yeni sınırlara uydurur.
// Sınır dışında kalan gözlerden:
//   - stoğu olan varsa işlem CONFLICT ile reddedilir,
//   - hareket geçmişi olan pasife çekilir (defter referansları kopamaz),
//   - hiç kullanılmamış olan silinir.
// Yeni sınırların içinde eksik kalan pozisyonlar için göz açılır;
// daha önce pasife çekilmiş gözler olduğu gibi korunur.
func resizeSlots(tx *gorm.DB, rack *models.Rack, whCode string, newLevelCount, newSlotsPerLevel int) error {
	var outOfBounds []models.Slot
	if err := tx.
		Where("rack_id = ? AND (level_no > ? OR slot_no > ?)", rack.ID, newLevelCount, newSlotsPerLevel).
		Find(&outOfBounds).Error; err != nil {
		return err
	}

	for _, slot := range outOfBounds {
		var stocked int64
		if err := tx.Model(&models.Stock{}).
			Where("slot_id = ? AND qty > 0", slot.ID).
			Count(&stocked).Error; err != nil {
			return err
		}
		if stocked > 0 {
			return apperr.New(apperr.CodeConflict,
				fmt.Sprintf("Göz %s boş değil, küçültme yapılamaz", slot.Code))
		}

		var referenced int64
		if err := tx.Model(&models.Txn{}).
			Where("from_slot_id = ? OR to_slot_id = ?", slot.ID, slot.ID).
			Count(&referenced).Error; err != nil {
			return err
		}
		if referenced > 0 {
			if err := tx.Model(&models.Slot{}).
				Where("id = ?", slot.ID).
				Update("status", models.StatusInactive).Error; err != nil {
				return err
			}
			continue
		}

		// Sıfır miktarlı projeksiyon artıkları da gitsin
		if err := tx.Where("slot_id = ?", slot.ID).Delete(&models.Stock{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Slot{}, slot.ID).Error; err != nil {
			return err
		}
	}

	var existing []models.Slot
	if err := tx.
		Where("rack_id = ? AND level_no <= ? AND slot_no <= ?", rack.ID, newLevelCount, newSlotsPerLevel).
		Find(&existing).Error; err != nil {
		return err
	}
	occupied := make(map[[2]int]bool, len(existing))
	for _, slot := range existing {
		occupied[[2]int{slot.LevelNo, slot.SlotNo}] = true
	}

	var created []models.Slot
	for level := 1; level <= newLevelCount; level++ {
		for no := 1; no <= newSlotsPerLevel; no++ {
			if occupied[[2]int{level, no}] {
				continue
			}
			created = append(created, models.Slot{
				RackID:      rack.ID,
				WarehouseID: rack.WarehouseID,
				LevelNo:     level,
				SlotNo:      no,
				Code:        slotCode(whCode, rack.Code, level, no),
				Status:      models.StatusActive,
			})
		}
	}
	if len(created) > 0 {
		if err := tx.CreateInBatches(created, 200).Error; err != nil {
			return err
		}
	}
	return nil
}
