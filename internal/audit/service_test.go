package audit

import (
	"strings"
	"testing"

	"depo-backend/internal/apperr"
	"depo-backend/internal/database"
	"depo-backend/internal/models"

	"github.com/gofiber/fiber/v2"
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

func TestWriteLogSuccess(t *testing.T) {
	db := setupDB(t)

	err := WriteLog(LogOptions{
		ActorOperatorID: 1,
		ActorName:       "Yönetici",
		Action:          "txn_inbound",
		TargetType:      "txn",
		TargetID:        "T20250114153012-A1B2C3D4",
		Request:         map[string]any{"qty": 5},
	})
	require.NoError(t, err)

	var row models.AuditLog
	require.NoError(t, db.First(&row, "action = ?", "txn_inbound").Error)
	require.Equal(t, models.AuditResultSuccess, row.Result)
	require.Empty(t, row.ErrorCode)
	require.Contains(t, row.RequestJSON, `"qty":5`)
}

func TestWriteLogFailure(t *testing.T) {
	db := setupDB(t)

	err := WriteLog(LogOptions{
		ActorOperatorID: 1,
		ActorName:       "Yönetici",
		Action:          "txn_outbound",
		TargetType:      "txn",
		Err:             apperr.New(apperr.CodeInsufficientStock, "Yetersiz stok"),
	})
	require.NoError(t, err)

	var row models.AuditLog
	require.NoError(t, db.First(&row, "action = ?", "txn_outbound").Error)
	require.Equal(t, models.AuditResultFail, row.Result)
	require.Equal(t, string(apperr.CodeInsufficientStock), row.ErrorCode)
	require.Equal(t, "Yetersiz stok", row.ErrorDetail)
	require.Equal(t, "null", row.RequestJSON)
}

// Handler katmanından gelen fiber hataları da anlamlı kodla kaydedilmeli
func TestWriteLogFiberError(t *testing.T) {
	db := setupDB(t)

	err := WriteLog(LogOptions{
		ActorOperatorID: 1,
		ActorName:       "Yönetici",
		Action:          "rack_create",
		TargetType:      "rack",
		Err:             fiber.NewError(fiber.StatusBadRequest, "Raf kodu boş olamaz"),
	})
	require.NoError(t, err)

	var row models.AuditLog
	require.NoError(t, db.First(&row, "action = ?", "rack_create").Error)
	require.Equal(t, models.AuditResultFail, row.Result)
	require.Equal(t, string(apperr.CodeValidation), row.ErrorCode)
	require.Equal(t, "Raf kodu boş olamaz", row.ErrorDetail)
}
