package models

import "time"

type AuditResult string

const (
	AuditResultSuccess AuditResult = "success"
	AuditResultFail    AuditResult = "fail"
)

// AuditLog: Başarılı ya da başarısız her deneme için bir satır. Defterin
// doğruluğundan bağımsızdır; başarısız denemeler de iz bırakır.
type AuditLog struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"index"`

	ActorOperatorID uint   `gorm:"index"`
	ActorName       string `gorm:"size:100"` // operatör adı (denormalize)

	// Hangi işlem? (ör: "txn_inbound", "txn_reverse", "rack_update")
	Action string `gorm:"size:50;index"`

	// Hedef entity (ör: "txn" + txn_no, "rack" + id)
	TargetType string `gorm:"size:50;index"`
	TargetID   string `gorm:"size:50;index"`

	// İstek gövdesi (JSON)
	RequestJSON string `gorm:"type:jsonb"`

	Result      AuditResult `gorm:"size:20;index"`
	ErrorCode   string      `gorm:"size:50"`
	ErrorDetail string      `gorm:"size:255"`
}
