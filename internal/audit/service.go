package audit

import (
	"encoding/json"
	"fmt"

	"depo-backend/internal/apperr"
	"depo-backend/internal/database"
	"depo-backend/internal/models"
)

const maxErrorDetailLen = 255

type LogOptions struct {
	ActorOperatorID uint
	ActorName       string
	Action          string
	TargetType      string
	TargetID        string
	Request         any
	Err             error // nil ise success, değilse fail satırı yazılır
}

// WriteLog: Her deneme için tek satır. Defter işleminin kendisinden bağımsız
// çalışır; kayıt yazılamazsa asıl işlem geri alınmaz.
func WriteLog(opts LogOptions) error {
	// PostgreSQL jsonb için boş string yerine "null" JSON string'i kullanmalıyız
	requestStr := "null"
	if opts.Request != nil {
		if b, err := json.Marshal(opts.Request); err == nil {
			requestStr = string(b)
		}
	}

	row := models.AuditLog{
		ActorOperatorID: opts.ActorOperatorID,
		ActorName:       opts.ActorName,
		Action:          opts.Action,
		TargetType:      opts.TargetType,
		TargetID:        opts.TargetID,
		RequestJSON:     requestStr,
		Result:          models.AuditResultSuccess,
	}

	if opts.Err != nil {
		appErr := apperr.From(opts.Err)
		row.Result = models.AuditResultFail
		row.ErrorCode = string(appErr.Code)
		row.ErrorDetail = truncate(appErr.Message, maxErrorDetailLen)
	}

	if err := database.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("denetim kaydı yazılamadı: %w", err)
	}

	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
