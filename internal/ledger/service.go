package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"depo-backend/internal/apperr"
	"depo-backend/internal/database"
	"depo-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Defter motoru: her işlem tek bir veritabanı transaction'ı içinde hem txn
// satırını yazar hem projeksiyonu günceller. Kısmi sonuç asla görünmez.

const (
	maxTxnRetries = 3
	retryBackoff  = 50 * time.Millisecond
)

type InboundRequest struct {
	ItemID     uint
	ToSlotID   uint
	Qty        int64
	OccurredAt time.Time
	OperatorID uint
	Note       string
}

type OutboundRequest struct {
	ItemID     uint
	FromSlotID uint
	Qty        int64
	OccurredAt time.Time
	OperatorID uint
	Note       string
}

type MoveRequest struct {
	ItemID     uint
	FromSlotID uint
	ToSlotID   uint
	Qty        int64
	OccurredAt time.Time
	OperatorID uint
	Note       string
}

type CountRequest struct {
	ItemID     uint
	SlotID     uint
	ActualQty  int64
	OccurredAt time.Time
	OperatorID uint
	Note       string
}

// CreateInbound: IN hareketi. Hedef gözdeki miktarı artırır.
func CreateInbound(req InboundRequest) (string, error) {
	if req.Qty <= 0 {
		return "", apperr.New(apperr.CodeValidation, "Miktar pozitif tam sayı olmalı")
	}
	if err := requireActiveOperator(req.OperatorID); err != nil {
		return "", err
	}
	if err := requireActiveItem(req.ItemID); err != nil {
		return "", err
	}
	if err := requireActiveSlot(req.ToSlotID); err != nil {
		return "", err
	}

	txnNo := newTxnNo()
	occurredAt := normalizeOccurredAt(req.OccurredAt)

	err := runInTxn(func(tx *gorm.DB) error {
		if err := applyStockDelta(tx, req.ItemID, req.ToSlotID, req.Qty); err != nil {
			return err
		}
		toSlotID := req.ToSlotID
		txn := models.Txn{
			TxnNo:      txnNo,
			Type:       models.TxnTypeIn,
			OccurredAt: occurredAt,
			OperatorID: req.OperatorID,
			ItemID:     req.ItemID,
			ToSlotID:   &toSlotID,
			Qty:        req.Qty,
			Note:       req.Note,
		}
		return tx.Create(&txn).Error
	})
	if err != nil {
		return "", err
	}
	return txnNo, nil
}

// CreateOutbound: OUT hareketi. Kaynak gözden düşer; stok negatife inemez.
func CreateOutbound(req OutboundRequest) (string, error) {
	if req.Qty <= 0 {
		return "", apperr.New(apperr.CodeValidation, "Miktar pozitif tam sayı olmalı")
	}
	if err := requireActiveOperator(req.OperatorID); err != nil {
		return "", err
	}
	if err := requireActiveItem(req.ItemID); err != nil {
		return "", err
	}
	if err := requireActiveSlot(req.FromSlotID); err != nil {
		return "", err
	}

	txnNo := newTxnNo()
	occurredAt := normalizeOccurredAt(req.OccurredAt)

	err := runInTxn(func(tx *gorm.DB) error {
		if err := applyStockDelta(tx, req.ItemID, req.FromSlotID, -req.Qty); err != nil {
			return err
		}
		fromSlotID := req.FromSlotID
		txn := models.Txn{
			TxnNo:      txnNo,
			Type:       models.TxnTypeOut,
			OccurredAt: occurredAt,
			OperatorID: req.OperatorID,
			ItemID:     req.ItemID,
			FromSlotID: &fromSlotID,
			Qty:        req.Qty,
			Note:       req.Note,
		}
		return tx.Create(&txn).Error
	})
	if err != nil {
		return "", err
	}
	return txnNo, nil
}

// CreateMove: İki göz arasında atomik taşıma. Kaynaktaki düşüş ve hedefteki
// artış aynı transaction'da yazılır.
func CreateMove(req MoveRequest) (string, error) {
	if req.Qty <= 0 {
		return "", apperr.New(apperr.CodeValidation, "Miktar pozitif tam sayı olmalı")
	}
	if req.FromSlotID == req.ToSlotID {
		return "", apperr.New(apperr.CodeValidation, "Kaynak ve hedef göz aynı olamaz")
	}
	if err := requireActiveOperator(req.OperatorID); err != nil {
		return "", err
	}
	if err := requireActiveItem(req.ItemID); err != nil {
		return "", err
	}
	if err := requireActiveSlot(req.FromSlotID); err != nil {
		return "", err
	}
	if err := requireActiveSlot(req.ToSlotID); err != nil {
		return "", err
	}

	txnNo := newTxnNo()
	occurredAt := normalizeOccurredAt(req.OccurredAt)

	err := runInTxn(func(tx *gorm.DB) error {
		if err := applyStockDelta(tx, req.ItemID, req.FromSlotID, -req.Qty); err != nil {
			return err
		}
		if err := applyStockDelta(tx, req.ItemID, req.ToSlotID, req.Qty); err != nil {
			return err
		}
		fromSlotID := req.FromSlotID
		toSlotID := req.ToSlotID
		txn := models.Txn{
			TxnNo:      txnNo,
			Type:       models.TxnTypeMove,
			OccurredAt: occurredAt,
			OperatorID: req.OperatorID,
			ItemID:     req.ItemID,
			FromSlotID: &fromSlotID,
			ToSlotID:   &toSlotID,
			Qty:        req.Qty,
			Note:       req.Note,
		}
		return tx.Create(&txn).Error
	})
	if err != nil {
		return "", err
	}
	return txnNo, nil
}

// CreateCount: Sayım. Gözdeki miktarı doğrudan actual_qty değerine çeker.
// Sayım ÖNCESİ miktar txn.qty alanında saklanır; ters kayıt bu değeri
// geri yükleyerek O(1) çalışır.
func CreateCount(req CountRequest) (string, error) {
	if req.ActualQty < 0 {
		return "", apperr.New(apperr.CodeValidation, "Sayım miktarı negatif olamaz")
	}
	if err := requireActiveOperator(req.OperatorID); err != nil {
		return "", err
	}
	if err := requireActiveItem(req.ItemID); err != nil {
		return "", err
	}
	if err := requireActiveSlot(req.SlotID); err != nil {
		return "", err
	}

	txnNo := newTxnNo()
	occurredAt := normalizeOccurredAt(req.OccurredAt)

	err := runInTxn(func(tx *gorm.DB) error {
		// Sayım mutlak değer yazar; gözün son hareketinin gerisine tarihlenirse
		// defterin baştan oynatılması artımlı projeksiyondan sapardı.
		var last models.Txn
		lookupErr := tx.
			Where("item_id = ? AND (from_slot_id = ? OR to_slot_id = ?)",
				req.ItemID, req.SlotID, req.SlotID).
			Order("occurred_at DESC").
			First(&last).Error
		if lookupErr != nil && !errors.Is(lookupErr, gorm.ErrRecordNotFound) {
			return lookupErr
		}
		if lookupErr == nil && occurredAt.Before(last.OccurredAt) {
			return apperr.New(apperr.CodeValidation, "Sayım tarihi gözdeki son hareketten önce olamaz")
		}

		beforeQty, err := currentQty(tx, req.ItemID, req.SlotID)
		if err != nil {
			return err
		}
		if err := writeStock(tx, req.ItemID, req.SlotID, req.ActualQty); err != nil {
			return err
		}
		slotID := req.SlotID
		actualQty := req.ActualQty
		txn := models.Txn{
			TxnNo:      txnNo,
			Type:       models.TxnTypeCount,
			OccurredAt: occurredAt,
			OperatorID: req.OperatorID,
			ItemID:     req.ItemID,
			FromSlotID: &slotID,
			Qty:        beforeQty, // sayım öncesi miktar
			ActualQty:  &actualQty,
			Note:       req.Note,
		}
		return tx.Create(&txn).Error
	})
	if err != nil {
		return "", err
	}
	return txnNo, nil
}

// ReverseTxn: Bir kaydın etkisini tersine çeviren yeni REVERSAL kaydı üretir.
// Bir kayıt en fazla bir kez ters çevrilebilir; REVERSAL kayıtları tekrar
// ters çevrilemez. Stok, hatayı geri almak için bile negatife inemez.
func ReverseTxn(txnNo string, occurredAt time.Time, operatorID uint, note string) (string, error) {
	if err := requireActiveOperator(operatorID); err != nil {
		return "", err
	}

	var target models.Txn
	if err := database.DB.First(&target, "txn_no = ?", txnNo).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperr.New(apperr.CodeNotFound, "Hareket bulunamadı")
		}
		return "", apperr.From(err)
	}

	if target.Type == models.TxnTypeReversal {
		return "", apperr.New(apperr.CodeTxnNotReversible, "Ters kayıt tekrar ters çevrilemez")
	}

	// Ön kontrol; asıl garanti idx_txns_ref_reversal unique index'inde.
	var reversalCount int64
	if err := database.DB.Model(&models.Txn{}).
		Where("ref_txn_id = ? AND type = ?", target.ID, models.TxnTypeReversal).
		Count(&reversalCount).Error; err != nil {
		return "", apperr.From(err)
	}
	if reversalCount > 0 {
		return "", apperr.New(apperr.CodeAlreadyReversed, "Bu hareket zaten ters çevrilmiş")
	}

	reversalNo := newTxnNo()
	occurredAt = normalizeOccurredAt(occurredAt)

	err := runInTxn(func(tx *gorm.DB) error {
		if err := applyInverse(tx, &target); err != nil {
			return err
		}
		refID := target.ID
		reversal := models.Txn{
			TxnNo:      reversalNo,
			Type:       models.TxnTypeReversal,
			OccurredAt: occurredAt,
			OperatorID: operatorID,
			ItemID:     target.ItemID,
			FromSlotID: target.FromSlotID,
			ToSlotID:   target.ToSlotID,
			Qty:        target.Qty,
			RefTxnID:   &refID,
			Note:       note,
		}
		return tx.Create(&reversal).Error
	})
	if err != nil {
		return "", err
	}
	return reversalNo, nil
}

// applyInverse: Referans kaydın projeksiyondaki etkisini geri alır.
// Gözlerin aktiflik durumu burada kontrol edilmez; sonradan pasife alınmış
// bir gözdeki hatalı kayıt da düzeltilebilmeli.
func applyInverse(tx *gorm.DB, target *models.Txn) error {
	switch target.Type {
	case models.TxnTypeIn:
		if target.ToSlotID == nil {
			return apperr.New(apperr.CodeValidation, "Giriş kaydında hedef göz eksik")
		}
		return applyStockDelta(tx, target.ItemID, *target.ToSlotID, -target.Qty)

	case models.TxnTypeOut:
		if target.FromSlotID == nil {
			return apperr.New(apperr.CodeValidation, "Çıkış kaydında kaynak göz eksik")
		}
		return applyStockDelta(tx, target.ItemID, *target.FromSlotID, target.Qty)

	case models.TxnTypeMove:
		if target.FromSlotID == nil || target.ToSlotID == nil {
			return apperr.New(apperr.CodeValidation, "Taşıma kaydında göz bilgisi eksik")
		}
		if err := applyStockDelta(tx, target.ItemID, *target.ToSlotID, -target.Qty); err != nil {
			return err
		}
		return applyStockDelta(tx, target.ItemID, *target.FromSlotID, target.Qty)

	case models.TxnTypeCount:
		if target.FromSlotID == nil {
			return apperr.New(apperr.CodeValidation, "Sayım kaydında göz bilgisi eksik")
		}
		// Sayım öncesi miktar kaydın qty alanında
		return writeStock(tx, target.ItemID, *target.FromSlotID, target.Qty)

	case models.TxnTypeAdjust:
		if target.FromSlotID == nil {
			return apperr.New(apperr.CodeValidation, "Düzeltme kaydında göz bilgisi eksik")
		}
		return applyStockDelta(tx, target.ItemID, *target.FromSlotID, -target.Qty)

	default:
		return apperr.New(apperr.CodeTxnNotReversible, "Bu hareket tipi ters çevrilemez")
	}
}

// --- stok projeksiyonu yardımcıları ---

// stockForUpdate: Postgres'te satır kilidi alır. SQLite FOR UPDATE
// desteklemez; zaten tek yazıcı olduğu için gerekmez.
func stockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func currentQty(tx *gorm.DB, itemID, slotID uint) (int64, error) {
	var stock models.Stock
	err := stockForUpdate(tx).
		Where("item_id = ? AND slot_id = ?", itemID, slotID).
		First(&stock).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return stock.Qty, nil
}

// writeStock: (item, slot) satırını verilen mutlak değere çeker, yoksa açar.
func writeStock(tx *gorm.DB, itemID, slotID uint, qty int64) error {
	res := tx.Model(&models.Stock{}).
		Where("item_id = ? AND slot_id = ?", itemID, slotID).
		Update("qty", qty)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return tx.Create(&models.Stock{ItemID: itemID, SlotID: slotID, Qty: qty}).Error
	}
	return nil
}

func applyStockDelta(tx *gorm.DB, itemID, slotID uint, delta int64) error {
	cur, err := currentQty(tx, itemID, slotID)
	if err != nil {
		return err
	}
	next := cur + delta
	if next < 0 {
		return apperr.New(apperr.CodeInsufficientStock, "Yetersiz stok")
	}
	return writeStock(tx, itemID, slotID, next)
}

// --- doğrulama yardımcıları ---

func requireActiveOperator(operatorID uint) error {
	var operator models.Operator
	if err := database.DB.First(&operator, "id = ?", operatorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.New(apperr.CodeNotFound, "Operatör bulunamadı")
		}
		return apperr.From(err)
	}
	if operator.Status != models.StatusActive {
		return apperr.New(apperr.CodeInactiveResource, "Operatör pasif durumda")
	}
	return nil
}

func requireActiveItem(itemID uint) error {
	var item models.Item
	if err := database.DB.First(&item, "id = ?", itemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.New(apperr.CodeNotFound, "Malzeme bulunamadı")
		}
		return apperr.From(err)
	}
	if item.Status != models.StatusActive {
		return apperr.New(apperr.CodeInactiveResource, "Malzeme pasif durumda")
	}
	return nil
}

// requireActiveSlot: Göz ve üstündeki raf ile depo aktif olmalı; pasif
// hiyerarşi yeni hareket alamaz.
func requireActiveSlot(slotID uint) error {
	var slot models.Slot
	if err := database.DB.First(&slot, "id = ?", slotID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.New(apperr.CodeNotFound, "Göz bulunamadı")
		}
		return apperr.From(err)
	}
	if slot.Status != models.StatusActive {
		return apperr.New(apperr.CodeInactiveResource, fmt.Sprintf("Göz pasif durumda (%s)", slot.Code))
	}

	var rack models.Rack
	if err := database.DB.First(&rack, "id = ?", slot.RackID).Error; err != nil {
		return apperr.From(err)
	}
	if rack.Status != models.StatusActive {
		return apperr.New(apperr.CodeInactiveResource, "Raf pasif durumda")
	}

	var warehouse models.Warehouse
	if err := database.DB.First(&warehouse, "id = ?", slot.WarehouseID).Error; err != nil {
		return apperr.From(err)
	}
	if warehouse.Status != models.StatusActive {
		return apperr.New(apperr.CodeInactiveResource, "Depo pasif durumda")
	}
	return nil
}

// --- transaction yardımcıları ---

// runInTxn: İşlemi atomik çalıştırır; kilit/seri hale getirme çakışmalarında
// sınırlı sayıda tekrar dener, sonra CONFLICT döner.
func runInTxn(fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 1; attempt <= maxTxnRetries; attempt++ {
		err = database.DB.Transaction(fn)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return translateTxnErr(err)
		}
		time.Sleep(time.Duration(attempt) * retryBackoff)
	}
	return apperr.New(apperr.CodeConflict, "Eşzamanlı işlem çakışması, lütfen tekrar deneyin")
}

func isRetryable(err error) bool {
	var appErr *apperr.AppError
	if errors.As(err, &appErr) {
		return false
	}
	msg := strings.ToLower(err.Error())
	// İki eşzamanlı işlem aynı (item, slot) satırını ilk kez açarsa unique
	// index'e takılır; tekrar denendiğinde satır artık var, update yolu çalışır.
	if strings.Contains(msg, "idx_stocks_item_slot") {
		return true
	}
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "deadlock") ||
		strings.Contains(msg, "could not serialize") ||
		strings.Contains(msg, "lock timeout") ||
		strings.Contains(msg, "busy")
}

// translateTxnErr: Commit sırasında yakalanan bütünlük ihlallerini anlamlı
// kodlara çevirir. Yarışan çifte ters kayıt ön kontrolü geçebilir; unique
// index ihlali burada ALREADY_REVERSED olarak yüzeye çıkar.
func translateTxnErr(err error) error {
	var appErr *apperr.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "ref_txn_id") || strings.Contains(msg, "idx_txns_ref_reversal") {
		return apperr.New(apperr.CodeAlreadyReversed, "Bu hareket zaten ters çevrilmiş")
	}
	return apperr.New(apperr.CodeDB, "Veritabanı işlemi başarısız")
}

// newTxnNo: Tarih kodlu, global benzersiz hareket numarası.
// Ör: T20250114153012-A1B2C3D4
func newTxnNo() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("T%s-%s", time.Now().UTC().Format("20060102150405"), suffix)
}

func normalizeOccurredAt(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
