package audit

import (
	"time"

	"depo-backend/internal/database"
	"depo-backend/internal/models"
	"depo-backend/internal/paging"

	"github.com/gofiber/fiber/v2"
)

type AuditLogResponse struct {
	ID              uint   `json:"id"`
	CreatedAt       string `json:"created_at"`
	ActorOperatorID uint   `json:"actor_operator_id"`
	ActorName       string `json:"actor_name"`
	Action          string `json:"action"`
	TargetType      string `json:"target_type"`
	TargetID        string `json:"target_id"`
	RequestJSON     string `json:"request_json"`
	Result          string `json:"result"`
	ErrorCode       string `json:"error_code,omitempty"`
	ErrorDetail     string `json:"error_detail,omitempty"`
}

// GET /api/audit-logs?action=txn_inbound&result=fail&operator_id=1&start_at=...&end_at=...
func ListAuditLogsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		pageIndex, pageSize, err := paging.FromQuery(c)
		if err != nil {
			return err
		}

		dbq := database.DB.Model(&models.AuditLog{})

		if action := c.Query("action"); action != "" {
			dbq = dbq.Where("action = ?", action)
		}
		if result := c.Query("result"); result != "" {
			dbq = dbq.Where("result = ?", result)
		}
		if operatorID := c.QueryInt("operator_id", 0); operatorID > 0 {
			dbq = dbq.Where("actor_operator_id = ?", operatorID)
		}
		if targetType := c.Query("target_type"); targetType != "" {
			dbq = dbq.Where("target_type = ?", targetType)
		}
		if targetID := c.Query("target_id"); targetID != "" {
			dbq = dbq.Where("target_id = ?", targetID)
		}
		if startAt := c.Query("start_at"); startAt != "" {
			if t, perr := time.Parse(time.RFC3339, startAt); perr == nil {
				dbq = dbq.Where("created_at >= ?", t)
			}
		}
		if endAt := c.Query("end_at"); endAt != "" {
			if t, perr := time.Parse(time.RFC3339, endAt); perr == nil {
				dbq = dbq.Where("created_at <= ?", t)
			}
		}

		var total int64
		if err := dbq.Count(&total).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Denetim kayıtları sayılamadı")
		}

		var logs []models.AuditLog
		if err := dbq.Order("created_at DESC, id DESC").
			Offset(paging.Offset(pageIndex, pageSize)).
			Limit(pageSize).
			Find(&logs).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Denetim kayıtları listelenemedi")
		}

		items := make([]AuditLogResponse, 0, len(logs))
		for _, row := range logs {
			items = append(items, AuditLogResponse{
				ID:              row.ID,
				CreatedAt:       row.CreatedAt.Format("2006-01-02 15:04:05"),
				ActorOperatorID: row.ActorOperatorID,
				ActorName:       row.ActorName,
				Action:          row.Action,
				TargetType:      row.TargetType,
				TargetID:        row.TargetID,
				RequestJSON:     row.RequestJSON,
				Result:          string(row.Result),
				ErrorCode:       row.ErrorCode,
				ErrorDetail:     row.ErrorDetail,
			})
		}

		return c.JSON(fiber.Map{"items": items, "total": total})
	}
}
