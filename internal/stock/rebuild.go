package stock

import (
	"time"

	"depo-backend/internal/apperr"
	"depo-backend/internal/database"
	"depo-backend/internal/models"

	"gorm.io/gorm"
)

type RebuildResult struct {
	TxnCount  int64
	StockRows int
}

type stockKey struct {
	ItemID uint
	SlotID uint
}

// Rebuild, stok projeksiyonunu sıfırlar ve defterdeki tüm hareketleri
// occurred_at sırasıyla yeniden oynatır. Defter gerçeğin kaynağıdır;
// projeksiyon her zaman bu oynatmanın sonucuyla birebir olmalıdır.
func Rebuild() (*RebuildResult, error) {
	result := &RebuildResult{}

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM stocks").Error; err != nil {
			return err
		}

		projection := make(map[stockKey]int64)
		seen := make(map[uint]models.Txn)

		var batch []models.Txn
		err := tx.Model(&models.Txn{}).
			Order("occurred_at ASC, created_at ASC, id ASC").
			FindInBatches(&batch, 500, func(_ *gorm.DB, _ int) error {
				for _, t := range batch {
					if err := applyToProjection(tx, projection, seen, t); err != nil {
						return err
					}
					seen[t.ID] = t
					result.TxnCount++
				}
				return nil
			}).Error
		if err != nil {
			return err
		}

		now := time.Now()
		for key, qty := range projection {
			if qty == 0 {
				continue
			}
			row := models.Stock{
				ItemID:    key.ItemID,
				SlotID:    key.SlotID,
				Qty:       qty,
				UpdatedAt: now,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			result.StockRows++
		}
		return nil
	})
	if err != nil {
		if _, ok := err.(*apperr.AppError); ok {
			return nil, err
		}
		return nil, apperr.New(apperr.CodeDB, "Stok projeksiyonu yeniden kurulamadı: "+err.Error())
	}
	return result, nil
}

// applyToProjection tek bir hareketin stok etkisini haritaya işler.
// Defterdeki COUNT satırları mutlak değer (actual_qty) yazar, diğerleri deltadır.
func applyToProjection(tx *gorm.DB, projection map[stockKey]int64, seen map[uint]models.Txn, t models.Txn) error {
	switch t.Type {
	case models.TxnTypeIn:
		if t.ToSlotID == nil {
			return apperr.New(apperr.CodeDB, "Defter kaydı bozuk: IN hareketinde hedef göz yok")
		}
		projection[stockKey{t.ItemID, *t.ToSlotID}] += t.Qty

	case models.TxnTypeOut:
		if t.FromSlotID == nil {
			return apperr.New(apperr.CodeDB, "Defter kaydı bozuk: OUT hareketinde kaynak göz yok")
		}
		projection[stockKey{t.ItemID, *t.FromSlotID}] -= t.Qty

	case models.TxnTypeMove:
		if t.FromSlotID == nil || t.ToSlotID == nil {
			return apperr.New(apperr.CodeDB, "Defter kaydı bozuk: MOVE hareketinde göz eksik")
		}
		projection[stockKey{t.ItemID, *t.FromSlotID}] -= t.Qty
		projection[stockKey{t.ItemID, *t.ToSlotID}] += t.Qty

	case models.TxnTypeCount:
		if t.FromSlotID == nil || t.ActualQty == nil {
			return apperr.New(apperr.CodeDB, "Defter kaydı bozuk: COUNT hareketinde göz veya sayım değeri yok")
		}
		projection[stockKey{t.ItemID, *t.FromSlotID}] = *t.ActualQty

	case models.TxnTypeAdjust:
		if t.FromSlotID == nil {
			return apperr.New(apperr.CodeDB, "Defter kaydı bozuk: ADJUST hareketinde göz yok")
		}
		projection[stockKey{t.ItemID, *t.FromSlotID}] += t.Qty

	case models.TxnTypeReversal:
		if t.RefTxnID == nil {
			return apperr.New(apperr.CodeDB, "Defter kaydı bozuk: REVERSAL hareketinde referans yok")
		}
		target, ok := seen[*t.RefTxnID]
		if !ok {
			// Batch sırası dışında kalmış olabilir, tek tek çek
			if err := tx.First(&target, "id = ?", *t.RefTxnID).Error; err != nil {
				return apperr.New(apperr.CodeDB, "Defter kaydı bozuk: iptal edilen hareket bulunamadı")
			}
		}
		return applyInverseToProjection(projection, t, target)
	}
	return nil
}

func applyInverseToProjection(projection map[stockKey]int64, rev models.Txn, target models.Txn) error {
	switch target.Type {
	case models.TxnTypeIn:
		projection[stockKey{target.ItemID, *target.ToSlotID}] -= target.Qty
	case models.TxnTypeOut:
		projection[stockKey{target.ItemID, *target.FromSlotID}] += target.Qty
	case models.TxnTypeMove:
		projection[stockKey{target.ItemID, *target.ToSlotID}] -= target.Qty
		projection[stockKey{target.ItemID, *target.FromSlotID}] += target.Qty
	case models.TxnTypeCount:
		// REVERSAL satırının Qty alanı sayım öncesi miktarı taşır
		projection[stockKey{target.ItemID, *target.FromSlotID}] = rev.Qty
	case models.TxnTypeAdjust:
		projection[stockKey{target.ItemID, *target.FromSlotID}] -= target.Qty
	default:
		return apperr.New(apperr.CodeDB, "Defter kaydı bozuk: iptal edilemez hareket tipine REVERSAL bağlanmış")
	}
	return nil
}
