package ledger

import (
	"strings"
	"sync"
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

type fixture struct {
	operator models.Operator
	item     models.Item
	slotA    models.Slot
	slotB    models.Slot
}

func seedFixture(t *testing.T, db *gorm.DB) fixture {
	t.Helper()

	var op models.Operator
	require.NoError(t, db.First(&op, "username = ?", "admin").Error)

	item := models.Item{ItemCode: "MLZ-001", Name: "Vida M8", UOM: "adet", Status: models.StatusActive}
	require.NoError(t, db.Create(&item).Error)

	wh := models.Warehouse{Code: "01", Name: "Ana Depo", Status: models.StatusActive}
	require.NoError(t, db.Create(&wh).Error)

	rack := models.Rack{
		Code: "1", Name: "Raf 1", WarehouseID: wh.ID,
		LevelCount: 1, SlotsPerLevel: 2, Status: models.StatusActive,
	}
	require.NoError(t, db.Create(&rack).Error)

	slotA := models.Slot{
		RackID: rack.ID, WarehouseID: wh.ID, LevelNo: 1, SlotNo: 1,
		Code: "01-1-1-01", Status: models.StatusActive,
	}
	slotB := models.Slot{
		RackID: rack.ID, WarehouseID: wh.ID, LevelNo: 1, SlotNo: 2,
		Code: "01-1-1-02", Status: models.StatusActive,
	}
	require.NoError(t, db.Create(&slotA).Error)
	require.NoError(t, db.Create(&slotB).Error)

	return fixture{operator: op, item: item, slotA: slotA, slotB: slotB}
}

func stockQty(t *testing.T, db *gorm.DB, itemID, slotID uint) int64 {
	t.Helper()
	var stock models.Stock
	err := db.Where("item_id = ? AND slot_id = ?", itemID, slotID).First(&stock).Error
	if err == gorm.ErrRecordNotFound {
		return 0
	}
	require.NoError(t, err)
	return stock.Qty
}

func requireCode(t *testing.T, err error, code apperr.Code) {
	t.Helper()
	require.Error(t, err)
	appErr := apperr.From(err)
	require.Equal(t, code, appErr.Code)
}

func TestInboundOutboundFlow(t *testing.T) {
	db := setupDB(t)
	f := seedFixture(t, db)

	txnNo, err := CreateInbound(InboundRequest{
		ItemID: f.item.ID, ToSlotID: f.slotA.ID, Qty: 10, OperatorID: f.operator.ID,
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(txnNo, "T"))
	require.Equal(t, int64(10), stockQty(t, db, f.item.ID, f.slotA.ID))

	_, err = CreateOutbound(OutboundRequest{
		ItemID: f.item.ID, FromSlotID: f.slotA.ID, Qty: 4, OperatorID: f.operator.ID,
	})
	require.NoError(t, err)
	require.Equal(t, int64(6), stockQty(t, db, f.item.ID, f.slotA.ID))

	// Yetersiz stok: işlem reddedilir, defter ve projeksiyon değişmez
	_, err = CreateOutbound(OutboundRequest{
		ItemID: f.item.ID, FromSlotID: f.slotA.ID, Qty: 10, OperatorID: f.operator.ID,
	})
	requireCode(t, err, apperr.CodeInsufficientStock)
	require.Equal(t, int64(6), stockQty(t, db, f.item.ID, f.slotA.ID))

	var txnCount int64
	require.NoError(t, db.Model(&models.Txn{}).Count(&txnCount).Error)
	require.Equal(t, int64(2), txnCount)
}

func TestMove(t *testing.T) {
	db := setupDB(t)
	f := seedFixture(t, db)

	_, err := CreateInbound(InboundRequest{
		ItemID: f.item.ID, ToSlotID: f.slotA.ID, Qty: 6, OperatorID: f.operator.ID,
	})
	require.NoError(t, err)

	_, err = CreateMove(MoveRequest{
		ItemID: f.item.ID, FromSlotID: f.slotA.ID, ToSlotID: f.slotB.ID,
		Qty: 5, OperatorID: f.operator.ID,
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), stockQty(t, db, f.item.ID, f.slotA.ID))
	require.Equal(t, int64(5), stockQty(t, db, f.item.ID, f.slotB.ID))

	_, err = CreateMove(MoveRequest{
		ItemID: f.item.ID, FromSlotID: f.slotA.ID, ToSlotID: f.slotA.ID,
		Qty: 1, OperatorID: f.operator.ID,
	})
	requireCode(t, err, apperr.CodeValidation)

	_, err = CreateMove(MoveRequest{
		ItemID: f.item.ID, FromSlotID: f.slotA.ID, ToSlotID: f.slotB.ID,
		Qty: 10, OperatorID: f.operator.ID,
	})
	requireCode(t, err, apperr.CodeInsufficientStock)
	require.Equal(t, int64(1), stockQty(t, db, f.item.ID, f.slotA.ID))
	require.Equal(t, int64(5), stockQty(t, db, f.item.ID, f.slotB.ID))
}

func TestCountAndReverse(t *testing.T) {
	db := setupDB(t)
	f := seedFixture(t, db)

	_, err := CreateInbound(InboundRequest{
		ItemID: f.item.ID, ToSlotID: f.slotA.ID, Qty: 1, OperatorID: f.operator.ID,
	})
	require.NoError(t, err)

	countNo, err := CreateCount(CountRequest{
		ItemID: f.item.ID, SlotID: f.slotA.ID, ActualQty: 3, OperatorID: f.operator.ID,
	})
	require.NoError(t, err)
	require.Equal(t, int64(3), stockQty(t, db, f.item.ID, f.slotA.ID))

	// Sayım kaydı: qty sayım öncesini, actual_qty sayılan değeri taşır
	var countTxn models.Txn
	require.NoError(t, db.First(&countTxn, "txn_no = ?", countNo).Error)
	require.Equal(t, int64(1), countTxn.Qty)
	require.NotNil(t, countTxn.ActualQty)
	require.Equal(t, int64(3), *countTxn.ActualQty)

	// Ters kayıt sayım öncesi miktarı geri yükler
	_, err = ReverseTxn(countNo, countTxn.OccurredAt, f.operator.ID, "")
	require.NoError(t, err)
	require.Equal(t, int64(1), stockQty(t, db, f.item.ID, f.slotA.ID))
}

// Geriye tarihli sayım, defter oynatmasını artımlı projeksiyondan
// saptıracağı için reddedilir
func TestCountCannotBeBackdated(t *testing.T) {
	db := setupDB(t)
	f := seedFixture(t, db)

	_, err := CreateInbound(InboundRequest{
		ItemID: f.item.ID, ToSlotID: f.slotA.ID, Qty: 10,
		OccurredAt: time.Now(), OperatorID: f.operator.ID,
	})
	require.NoError(t, err)

	_, err = CreateCount(CountRequest{
		ItemID: f.item.ID, SlotID: f.slotA.ID, ActualQty: 3,
		OccurredAt: time.Now().Add(-time.Hour), OperatorID: f.operator.ID,
	})
	requireCode(t, err, apperr.CodeValidation)
	require.Equal(t, int64(10), stockQty(t, db, f.item.ID, f.slotA.ID))

	// Son hareketten sonraki bir tarihle sayım serbest
	_, err = CreateCount(CountRequest{
		ItemID: f.item.ID, SlotID: f.slotA.ID, ActualQty: 3,
		OccurredAt: time.Now().Add(time.Minute), OperatorID: f.operator.ID,
	})
	require.NoError(t, err)
	require.Equal(t, int64(3), stockQty(t, db, f.item.ID, f.slotA.ID))
}

func TestReverseRules(t *testing.T) {
	db := setupDB(t)
	f := seedFixture(t, db)

	inNo, err := CreateInbound(InboundRequest{
		ItemID: f.item.ID, ToSlotID: f.slotA.ID, Qty: 7, OperatorID: f.operator.ID,
	})
	require.NoError(t, err)

	revNo, err := ReverseTxn(inNo, time.Time{}, f.operator.ID, "hatalı giriş")
	require.NoError(t, err)
	require.Equal(t, int64(0), stockQty(t, db, f.item.ID, f.slotA.ID))

	// Aynı kayıt ikinci kez ters çevrilemez
	_, err = ReverseTxn(inNo, time.Time{}, f.operator.ID, "")
	requireCode(t, err, apperr.CodeAlreadyReversed)

	// Ters kaydın tersi alınamaz
	_, err = ReverseTxn(revNo, time.Time{}, f.operator.ID, "")
	requireCode(t, err, apperr.CodeTxnNotReversible)

	_, err = ReverseTxn("T00000000000000-YOKBOYLE", time.Time{}, f.operator.ID, "")
	requireCode(t, err, apperr.CodeNotFound)
}

func TestReverseCannotGoNegative(t *testing.T) {
	db := setupDB(t)
	f := seedFixture(t, db)

	inNo, err := CreateInbound(InboundRequest{
		ItemID: f.item.ID, ToSlotID: f.slotA.ID, Qty: 5, OperatorID: f.operator.ID,
	})
	require.NoError(t, err)
	_, err = CreateOutbound(OutboundRequest{
		ItemID: f.item.ID, FromSlotID: f.slotA.ID, Qty: 5, OperatorID: f.operator.ID,
	})
	require.NoError(t, err)

	// Girişin tersi gözü -5'e düşürürdü; hata düzeltmek için bile yasak
	_, err = ReverseTxn(inNo, time.Time{}, f.operator.ID, "")
	requireCode(t, err, apperr.CodeInsufficientStock)
	require.Equal(t, int64(0), stockQty(t, db, f.item.ID, f.slotA.ID))

	// Başarısız tersten sonra kayıt hâlâ ters çevrilebilir olmalı
	_, err = CreateInbound(InboundRequest{
		ItemID: f.item.ID, ToSlotID: f.slotA.ID, Qty: 5, OperatorID: f.operator.ID,
	})
	require.NoError(t, err)
	_, err = ReverseTxn(inNo, time.Time{}, f.operator.ID, "")
	require.NoError(t, err)
	require.Equal(t, int64(0), stockQty(t, db, f.item.ID, f.slotA.ID))
}

func TestValidationAndStatusChecks(t *testing.T) {
	db := setupDB(t)
	f := seedFixture(t, db)

	_, err := CreateInbound(InboundRequest{
		ItemID: f.item.ID, ToSlotID: f.slotA.ID, Qty: 0, OperatorID: f.operator.ID,
	})
	requireCode(t, err, apperr.CodeValidation)

	_, err = CreateInbound(InboundRequest{
		ItemID: f.item.ID, ToSlotID: 9999, Qty: 1, OperatorID: f.operator.ID,
	})
	requireCode(t, err, apperr.CodeNotFound)

	require.NoError(t, db.Model(&f.item).Update("status", models.StatusInactive).Error)
	_, err = CreateInbound(InboundRequest{
		ItemID: f.item.ID, ToSlotID: f.slotA.ID, Qty: 1, OperatorID: f.operator.ID,
	})
	requireCode(t, err, apperr.CodeInactiveResource)
	require.NoError(t, db.Model(&f.item).Update("status", models.StatusActive).Error)

	// Pasif göz yeni hareket alamaz
	require.NoError(t, db.Model(&f.slotA).Update("status", models.StatusInactive).Error)
	_, err = CreateInbound(InboundRequest{
		ItemID: f.item.ID, ToSlotID: f.slotA.ID, Qty: 1, OperatorID: f.operator.ID,
	})
	requireCode(t, err, apperr.CodeInactiveResource)
}

func TestConcurrentOutbound(t *testing.T) {
	db := setupDB(t)
	f := seedFixture(t, db)

	_, err := CreateInbound(InboundRequest{
		ItemID: f.item.ID, ToSlotID: f.slotA.ID, Qty: 10, OperatorID: f.operator.ID,
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// CONFLICT geçicidir; kalıcı sonuca (başarı ya da yetersiz
			// stok) ulaşana kadar tekrar dene
			for {
				_, err := CreateOutbound(OutboundRequest{
					ItemID: f.item.ID, FromSlotID: f.slotA.ID, Qty: 6, OperatorID: f.operator.ID,
				})
				if err != nil && apperr.From(err).Code == apperr.CodeConflict {
					continue
				}
				errs[i] = err
				return
			}
		}(i)
	}
	wg.Wait()

	// Tam olarak biri geçer, diğeri yetersiz stokla reddedilir
	successes := 0
	for _, e := range errs {
		if e == nil {
			successes++
			continue
		}
		requireCode(t, e, apperr.CodeInsufficientStock)
	}
	require.Equal(t, 1, successes)
	require.Equal(t, int64(4), stockQty(t, db, f.item.ID, f.slotA.ID))

	var outCount int64
	require.NoError(t, db.Model(&models.Txn{}).
		Where("type = ?", models.TxnTypeOut).Count(&outCount).Error)
	require.Equal(t, int64(1), outCount)
}
