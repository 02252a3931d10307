package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"depo-backend/internal/config"
	"depo-backend/internal/database"
	"depo-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Setup(db))
	database.DB = db

	cfg := &config.Config{
		HTTPPort:    "0",
		JWTSecret:   strings.Repeat("s", 32),
		CORSOrigins: "http://localhost:5173",
	}
	return New(cfg), db
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var payload map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &payload))
	}
	return resp.StatusCode, payload
}

// login + zorunlu parola değişimi, varsayılan admin ile
func authenticate(t *testing.T, app *fiber.App) string {
	t.Helper()

	status, body := doJSON(t, app, http.MethodPost, "/api/auth/login", "", fiber.Map{
		"username": "admin", "password": "123456",
	})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, body["must_change_pwd"])
	tempToken := body["token"].(string)

	// Parola değişmeden iş uçları kapalı
	status, body = doJSON(t, app, http.MethodGet, "/api/warehouses", tempToken, nil)
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "PWD_CHANGE_REQUIRED", body["code"])

	status, body = doJSON(t, app, http.MethodPost, "/api/auth/change-password", tempToken, fiber.Map{
		"old_password": "123456", "new_password": "depo-gizli-1",
	})
	require.Equal(t, http.StatusOK, status)
	return body["token"].(string)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	app, _ := setupApp(t)

	status, body := doJSON(t, app, http.MethodPost, "/api/auth/login", "", fiber.Map{
		"username": "admin", "password": "yanlis",
	})
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "AUTH_FAILED", body["code"])

	status, _ = doJSON(t, app, http.MethodGet, "/api/warehouses", "", nil)
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestEndToEndWarehouseFlow(t *testing.T) {
	app, db := setupApp(t)
	token := authenticate(t, app)

	// Depo: kod "W1" -> "01"
	status, wh := doJSON(t, app, http.MethodPost, "/api/warehouses", token, fiber.Map{
		"code": "W1", "name": "Ana Depo",
	})
	require.Equal(t, http.StatusCreated, status)
	require.Equal(t, "01", wh["Code"])
	warehouseID := uint(wh["ID"].(float64))

	// Raf: kod "R2" -> "2", 2 kat x 2 göz
	status, rk := doJSON(t, app, http.MethodPost, "/api/racks", token, fiber.Map{
		"warehouse_id": warehouseID, "code": "R2", "name": "Raf 2",
		"level_count": 2, "slots_per_level": 2,
	})
	require.Equal(t, http.StatusCreated, status)
	rackID := uint(rk["ID"].(float64))

	var slots []models.Slot
	require.NoError(t, db.Where("rack_id = ?", rackID).Order("level_no, slot_no").Find(&slots).Error)
	require.Len(t, slots, 4)
	require.Equal(t, "01-2-1-01", slots[0].Code)
	require.Equal(t, "01-2-2-02", slots[3].Code)

	status, it := doJSON(t, app, http.MethodPost, "/api/items", token, fiber.Map{
		"item_code": "mlz-100", "name": "Rulman 6204", "uom": "adet",
	})
	require.Equal(t, http.StatusCreated, status)
	require.Equal(t, "MLZ-100", it["ItemCode"])
	itemID := uint(it["ID"].(float64))

	// Giriş hareketi
	status, txn := doJSON(t, app, http.MethodPost, "/api/txns/inbound", token, fiber.Map{
		"item_id": itemID, "to_slot_id": slots[0].ID, "qty": 5, "note": "ilk parti",
	})
	require.Equal(t, http.StatusCreated, status)
	txnNo := txn["txn_no"].(string)
	require.True(t, strings.HasPrefix(txnNo, "T"))

	// Stok görünümü
	status, stockResp := doJSON(t, app, http.MethodGet, "/api/stock/by-slot", token, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, float64(1), stockResp["total"])
	row := stockResp["items"].([]any)[0].(map[string]any)
	require.Equal(t, float64(5), row["qty"])
	require.Equal(t, "01-2-1-01", row["slot_code"])

	// Yetersiz stok: 409 + denetim kaydında fail satırı
	status, failResp := doJSON(t, app, http.MethodPost, "/api/txns/outbound", token, fiber.Map{
		"item_id": itemID, "from_slot_id": slots[0].ID, "qty": 9,
	})
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "INSUFFICIENT_STOCK", failResp["code"])

	var failLog models.AuditLog
	require.NoError(t, db.First(&failLog, "action = ? AND result = ?", "txn_outbound", models.AuditResultFail).Error)
	require.Equal(t, "INSUFFICIENT_STOCK", failLog.ErrorCode)

	// Ters kayıt
	status, rev := doJSON(t, app, http.MethodPost, "/api/txns/"+txnNo+"/reverse", token, fiber.Map{
		"note": "yanlış giriş",
	})
	require.Equal(t, http.StatusCreated, status)
	require.NotEqual(t, txnNo, rev["txn_no"])

	// Aynı kaydın ikinci tersi reddedilir
	status, dup := doJSON(t, app, http.MethodPost, "/api/txns/"+txnNo+"/reverse", token, nil)
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "ALREADY_REVERSED", dup["code"])

	// Hareket listesi: IN + REVERSAL, giriş kaydı ters çevrilmiş görünür
	status, list := doJSON(t, app, http.MethodGet, "/api/txns?page_size=50", token, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, float64(2), list["total"])

	// Denetim kayıtları admin'e açık
	status, logs := doJSON(t, app, http.MethodGet, "/api/audit-logs?result=fail", token, nil)
	require.Equal(t, http.StatusOK, status)
	require.GreaterOrEqual(t, logs["total"].(float64), float64(2))
}

// Gövde/tarih çözümlemesinde reddedilen denemeler de denetim izinde görünmeli
func TestRejectedParseWritesFailAuditRow(t *testing.T) {
	app, db := setupApp(t)
	token := authenticate(t, app)

	status, _ := doJSON(t, app, http.MethodPost, "/api/txns/inbound", token, fiber.Map{
		"item_id": 1, "to_slot_id": 1, "qty": 5, "occurred_at": "not-a-date",
	})
	require.Equal(t, http.StatusBadRequest, status)

	var failRows int64
	require.NoError(t, db.Model(&models.AuditLog{}).
		Where("action = ? AND result = ?", "txn_inbound", models.AuditResultFail).
		Count(&failRows).Error)
	require.Equal(t, int64(1), failRows)

	var row models.AuditLog
	require.NoError(t, db.First(&row, "action = ?", "txn_inbound").Error)
	require.Equal(t, "VALIDATION_ERROR", row.ErrorCode)

	// Bozuk JSON gövdesi de iz bırakır
	req := httptest.NewRequest(http.MethodPost, "/api/txns/outbound", strings.NewReader("{bozuk"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	require.NoError(t, db.Model(&models.AuditLog{}).
		Where("action = ? AND result = ?", "txn_outbound", models.AuditResultFail).
		Count(&failRows).Error)
	require.Equal(t, int64(1), failRows)
}

func TestOperatorRoleRestrictions(t *testing.T) {
	app, _ := setupApp(t)
	adminToken := authenticate(t, app)

	status, _ := doJSON(t, app, http.MethodPost, "/api/operators", adminToken, fiber.Map{
		"username": "saha1", "display_name": "Saha Operatörü",
		"role": "operator", "temp_password": "gecici-99",
	})
	require.Equal(t, http.StatusCreated, status)

	// Operatör geçici parolayla girer, değiştirmeye zorlanır
	status, body := doJSON(t, app, http.MethodPost, "/api/auth/login", "", fiber.Map{
		"username": "saha1", "password": "gecici-99",
	})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, body["must_change_pwd"])

	status, body = doJSON(t, app, http.MethodPost, "/api/auth/change-password", body["token"].(string), fiber.Map{
		"old_password": "gecici-99", "new_password": "saha-gizli-1",
	})
	require.Equal(t, http.StatusOK, status)
	opToken := body["token"].(string)

	// Okuma serbest, tanım yönetimi admin'e özel
	status, _ = doJSON(t, app, http.MethodGet, "/api/warehouses", opToken, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = doJSON(t, app, http.MethodPost, "/api/warehouses", opToken, fiber.Map{
		"code": "2", "name": "İkinci Depo",
	})
	require.Equal(t, http.StatusForbidden, status)

	status, _ = doJSON(t, app, http.MethodGet, "/api/audit-logs", opToken, nil)
	require.Equal(t, http.StatusForbidden, status)
}
