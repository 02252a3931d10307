package rack

import (
	"strings"
	"testing"
	"time"

	"depo-backend/internal/apperr"
	"depo-backend/internal/database"
	"depo-backend/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Setup(db))
	database.DB = db
	return db
}

func seedRack(t *testing.T, db *gorm.DB, levelCount, slotsPerLevel int) (models.Warehouse, models.Rack) {
	t.Helper()

	wh := models.Warehouse{Code: "01", Name: "Ana Depo", Status: models.StatusActive}
	require.NoError(t, db.Create(&wh).Error)

	r := models.Rack{
		Code: "3", Name: "Raf 3", WarehouseID: wh.ID,
		LevelCount: levelCount, SlotsPerLevel: slotsPerLevel, Status: models.StatusActive,
	}
	require.NoError(t, db.Create(&r).Error)
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return generateSlots(tx, &r, wh.Code)
	}))
	return wh, r
}

func TestSlotCode(t *testing.T) {
	require.Equal(t, "01-3-2-05", slotCode("01", "3", 2, 5))
	require.Equal(t, "02-12-1-10", slotCode("02", "12", 1, 10))
}

func TestGenerateSlots(t *testing.T) {
	db := setupDB(t)
	_, r := seedRack(t, db, 3, 4)

	var slots []models.Slot
	require.NoError(t, db.Where("rack_id = ?", r.ID).Order("level_no, slot_no").Find(&slots).Error)
	require.Len(t, slots, 12)
	require.Equal(t, "01-3-1-01", slots[0].Code)
	require.Equal(t, "01-3-3-04", slots[11].Code)
	for _, s := range slots {
		require.Equal(t, models.StatusActive, s.Status)
		require.Equal(t, r.WarehouseID, s.WarehouseID)
	}
}

func TestResizeGrow(t *testing.T) {
	db := setupDB(t)
	wh, r := seedRack(t, db, 1, 2)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return resizeSlots(tx, &r, wh.Code, 2, 3)
	}))

	var count int64
	require.NoError(t, db.Model(&models.Slot{}).Where("rack_id = ?", r.ID).Count(&count).Error)
	require.Equal(t, int64(6), count)

	var added models.Slot
	require.NoError(t, db.First(&added, "code = ?", "01-3-2-03").Error)
	require.Equal(t, models.StatusActive, added.Status)
}

func TestResizeShrinkDeletesUnusedSlots(t *testing.T) {
	db := setupDB(t)
	wh, r := seedRack(t, db, 2, 2)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return resizeSlots(tx, &r, wh.Code, 1, 2)
	}))

	var count int64
	require.NoError(t, db.Model(&models.Slot{}).Where("rack_id = ?", r.ID).Count(&count).Error)
	require.Equal(t, int64(2), count)
}

func TestResizeShrinkRejectsStockedSlot(t *testing.T) {
	db := setupDB(t)
	wh, r := seedRack(t, db, 2, 2)

	item := models.Item{ItemCode: "MLZ-001", Name: "Civata", UOM: "adet", Status: models.StatusActive}
	require.NoError(t, db.Create(&item).Error)

	var doomed models.Slot
	require.NoError(t, db.First(&doomed, "rack_id = ? AND level_no = 2 AND slot_no = 1", r.ID).Error)
	require.NoError(t, db.Create(&models.Stock{ItemID: item.ID, SlotID: doomed.ID, Qty: 5}).Error)

	err := db.Transaction(func(tx *gorm.DB) error {
		return resizeSlots(tx, &r, wh.Code, 1, 2)
	})
	require.Error(t, err)
	require.Equal(t, apperr.CodeConflict, apperr.From(err).Code)

	// İşlem geri alındı, göz kümesi değişmedi
	var count int64
	require.NoError(t, db.Model(&models.Slot{}).Where("rack_id = ?", r.ID).Count(&count).Error)
	require.Equal(t, int64(4), count)
}

func TestResizeShrinkDeactivatesReferencedSlot(t *testing.T) {
	db := setupDB(t)
	wh, r := seedRack(t, db, 2, 2)

	var op models.Operator
	require.NoError(t, db.First(&op, "username = ?", "admin").Error)
	item := models.Item{ItemCode: "MLZ-002", Name: "Pul", UOM: "adet", Status: models.StatusActive}
	require.NoError(t, db.Create(&item).Error)

	var used models.Slot
	require.NoError(t, db.First(&used, "rack_id = ? AND level_no = 2 AND slot_no = 2", r.ID).Error)

	// Geçmişte hareket görmüş ama şu an boş bir göz
	usedID := used.ID
	txn := models.Txn{
		TxnNo: "TESKI-00000001", Type: models.TxnTypeIn, OccurredAt: time.Now(),
		OperatorID: op.ID, ItemID: item.ID, ToSlotID: &usedID, Qty: 1,
	}
	require.NoError(t, db.Create(&txn).Error)
	require.NoError(t, db.Create(&models.Stock{ItemID: item.ID, SlotID: used.ID, Qty: 0}).Error)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return resizeSlots(tx, &r, wh.Code, 1, 2)
	}))

	// Defter referansı olan göz silinmez, pasife alınır
	var kept models.Slot
	require.NoError(t, db.First(&kept, "id = ?", used.ID).Error)
	require.Equal(t, models.StatusInactive, kept.Status)

	// Hiç kullanılmamış kat arkadaşı ise silinmiş olmalı
	var gone int64
	require.NoError(t, db.Model(&models.Slot{}).
		Where("rack_id = ? AND level_no = 2 AND slot_no = 1", r.ID).
		Count(&gone).Error)
	require.Equal(t, int64(0), gone)
}

func TestResizeGrowSkipsDeactivatedSlot(t *testing.T) {
	db := setupDB(t)
	wh, r := seedRack(t, db, 2, 2)

	var slot models.Slot
	require.NoError(t, db.First(&slot, "rack_id = ? AND level_no = 1 AND slot_no = 2", r.ID).Error)
	require.NoError(t, db.Model(&slot).Update("status", models.StatusInactive).Error)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return resizeSlots(tx, &r, wh.Code, 2, 3)
	}))

	// Pasif göz olduğu gibi kaldı, aynı pozisyona yenisi açılmadı
	var after models.Slot
	require.NoError(t, db.First(&after, "id = ?", slot.ID).Error)
	require.Equal(t, models.StatusInactive, after.Status)

	var count int64
	require.NoError(t, db.Model(&models.Slot{}).Where("rack_id = ?", r.ID).Count(&count).Error)
	require.Equal(t, int64(6), count)
}
