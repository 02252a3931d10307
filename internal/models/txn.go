package models

import "time"

type TxnType string

const (
	TxnTypeIn       TxnType = "IN"
	TxnTypeOut      TxnType = "OUT"
	TxnTypeMove     TxnType = "MOVE"
	TxnTypeCount    TxnType = "COUNT"
	TxnTypeAdjust   TxnType = "ADJUST" // göreli düzeltme; içe aktarılan eski kayıtlarda bulunur
	TxnTypeReversal TxnType = "REVERSAL"
)

// Txn: Defterin tek satırı. Kayıt bir kez yazılır, asla güncellenmez veya
// silinmez; düzeltme yalnızca yeni bir REVERSAL kaydı ile yapılır.
//
// Qty alanının anlamı tipe göre değişir:
//   IN/OUT/MOVE  -> hareket miktarı (pozitif)
//   COUNT        -> sayım ÖNCESİ miktar (ters kayıt O(1) olsun diye saklanır)
//   ADJUST       -> işaretli fark
//   REVERSAL     -> referans kaydın miktarı
type Txn struct {
	ID         uint      `gorm:"primaryKey"`
	TxnNo      string    `gorm:"size:40;uniqueIndex;not null"`
	Type       TxnType   `gorm:"size:20;not null;index"`
	OccurredAt time.Time `gorm:"not null;index"`
	CreatedAt  time.Time
	OperatorID uint `gorm:"not null;index"`
	Operator   Operator
	ItemID     uint `gorm:"not null;index"`
	Item       Item
	FromSlotID *uint `gorm:"index"`
	FromSlot   *Slot `gorm:"foreignKey:FromSlotID"`
	ToSlotID   *uint `gorm:"index"`
	ToSlot     *Slot `gorm:"foreignKey:ToSlotID"`
	Qty        int64 `gorm:"not null"`
	ActualQty  *int64
	RefTxnID   *uint `gorm:"index"` // REVERSAL: ters çevrilen kaydın id'si
	RefTxn     *Txn  `gorm:"foreignKey:RefTxnID"`
	Note       string `gorm:"size:255"`
}
