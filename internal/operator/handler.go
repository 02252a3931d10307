package operator

import (
	"strings"

	"depo-backend/internal/audit"
	"depo-backend/internal/auth"
	"depo-backend/internal/database"
	"depo-backend/internal/models"
	"depo-backend/internal/paging"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

type CreateOperatorBody struct {
	Username     string              `json:"username"`
	DisplayName  string              `json:"display_name"`
	Role         models.OperatorRole `json:"role"`
	TempPassword string              `json:"temp_password"`
}

type UpdateOperatorBody struct {
	DisplayName string              `json:"display_name"`
	Role        models.OperatorRole `json:"role"`
}

type SetStatusBody struct {
	Status models.EntityStatus `json:"status"`
}

type OperatorResponse struct {
	ID            uint                `json:"id"`
	Username      string              `json:"username"`
	DisplayName   string              `json:"display_name"`
	Role          models.OperatorRole `json:"role"`
	Status        models.EntityStatus `json:"status"`
	MustChangePwd bool                `json:"must_change_pwd"`
	CreatedAt     string              `json:"created_at"`
}

func toResponse(op models.Operator) OperatorResponse {
	return OperatorResponse{
		ID:            op.ID,
		Username:      op.Username,
		DisplayName:   op.DisplayName,
		Role:          op.Role,
		Status:        op.Status,
		MustChangePwd: op.MustChangePwd,
		CreatedAt:     op.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

func actorInfo(c *fiber.Ctx) (uint, string, error) {
	operatorID, err := auth.OperatorIDFromCtx(c)
	if err != nil {
		return 0, "", err
	}
	var operator models.Operator
	if err := database.DB.First(&operator, "id = ?", operatorID).Error; err != nil {
		return 0, "", fiber.NewError(fiber.StatusInternalServerError, "Operatör bulunamadı")
	}
	return operatorID, operator.DisplayName, nil
}

// POST /api/operators — geçici parolayla açılır, ilk girişte değiştirmek zorunlu
func CreateOperatorHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actorID, actorName, err := actorInfo(c)
		if err != nil {
			return err
		}

		var body CreateOperatorBody
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		create := func() (*models.Operator, error) {
			username := strings.ToLower(strings.TrimSpace(body.Username))
			if len(username) < 3 {
				return nil, fiber.NewError(fiber.StatusBadRequest, "Kullanıcı adı en az 3 karakter olmalı")
			}
			if strings.TrimSpace(body.DisplayName) == "" {
				return nil, fiber.NewError(fiber.StatusBadRequest, "Görünen ad boş olamaz")
			}
			if body.Role != models.RoleAdmin && body.Role != models.RoleOperator {
				return nil, fiber.NewError(fiber.StatusBadRequest, "Rol 'admin' veya 'operator' olmalı")
			}
			if len(body.TempPassword) < 6 {
				return nil, fiber.NewError(fiber.StatusBadRequest, "Geçici parola en az 6 karakter olmalı")
			}

			var existing int64
			if err := database.DB.Model(&models.Operator{}).
				Where("username = ?", username).
				Count(&existing).Error; err != nil {
				return nil, fiber.NewError(fiber.StatusInternalServerError, "Operatör sorgulanamadı")
			}
			if existing > 0 {
				return nil, fiber.NewError(fiber.StatusConflict, "Bu kullanıcı adı zaten alınmış")
			}

			hash, err := bcrypt.GenerateFromPassword([]byte(body.TempPassword), bcrypt.DefaultCost)
			if err != nil {
				return nil, fiber.NewError(fiber.StatusInternalServerError, "Parola işlenemedi")
			}

			op := models.Operator{
				Username:      username,
				DisplayName:   strings.TrimSpace(body.DisplayName),
				Role:          body.Role,
				Status:        models.StatusActive,
				PasswordHash:  string(hash),
				MustChangePwd: true,
			}
			if err := database.DB.Create(&op).Error; err != nil {
				return nil, fiber.NewError(fiber.StatusInternalServerError, "Operatör oluşturulamadı")
			}
			return &op, nil
		}

		op, err := create()
		_ = audit.WriteLog(audit.LogOptions{
			ActorOperatorID: actorID,
			ActorName:       actorName,
			Action:          "operator_create",
			TargetType:      "operator",
			TargetID:        body.Username,
			Request: fiber.Map{
				"username":     body.Username,
				"display_name": body.DisplayName,
				"role":         body.Role,
			}, // geçici parola denetim kaydına yazılmaz
			Err: err,
		})
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(toResponse(*op))
	}
}

// GET /api/operators
func ListOperatorsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		pageIndex, pageSize, err := paging.FromQuery(c)
		if err != nil {
			return err
		}

		dbq := database.DB.Model(&models.Operator{})
		if status := c.Query("status"); status != "" {
			dbq = dbq.Where("status = ?", status)
		}
		if role := c.Query("role"); role != "" {
			dbq = dbq.Where("role = ?", role)
		}
		if keyword := c.Query("keyword"); keyword != "" {
			like := "%" + keyword + "%"
			dbq = dbq.Where("(username LIKE ? OR display_name LIKE ?)", like, like)
		}

		var total int64
		if err := dbq.Count(&total).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Operatörler sayılamadı")
		}

		var operators []models.Operator
		if err := dbq.Order("username").
			Offset(paging.Offset(pageIndex, pageSize)).
			Limit(pageSize).
			Find(&operators).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Operatörler listelenemedi")
		}

		items := make([]OperatorResponse, 0, len(operators))
		for _, op := range operators {
			items = append(items, toResponse(op))
		}
		return c.JSON(fiber.Map{"items": items, "total": total})
	}
}

// PUT /api/operators/:id
func UpdateOperatorHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actorID, actorName, err := actorInfo(c)
		if err != nil {
			return err
		}

		operatorID, err := c.ParamsInt("id")
		if err != nil || operatorID < 1 {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz operatör id")
		}

		var body UpdateOperatorBody
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		update := func() error {
			if strings.TrimSpace(body.DisplayName) == "" {
				return fiber.NewError(fiber.StatusBadRequest, "Görünen ad boş olamaz")
			}
			if body.Role != models.RoleAdmin && body.Role != models.RoleOperator {
				return fiber.NewError(fiber.StatusBadRequest, "Rol 'admin' veya 'operator' olmalı")
			}
			if uint(operatorID) == actorID && body.Role != models.RoleAdmin {
				return fiber.NewError(fiber.StatusConflict, "Kendi admin yetkinizi düşüremezsiniz")
			}

			var op models.Operator
			if err := database.DB.First(&op, "id = ?", operatorID).Error; err != nil {
				return fiber.NewError(fiber.StatusNotFound, "Operatör bulunamadı")
			}
			return database.DB.Model(&op).Updates(map[string]interface{}{
				"display_name": strings.TrimSpace(body.DisplayName),
				"role":         body.Role,
			}).Error
		}

		err = update()
		_ = audit.WriteLog(audit.LogOptions{
			ActorOperatorID: actorID,
			ActorName:       actorName,
			Action:          "operator_update",
			TargetType:      "operator",
			TargetID:        c.Params("id"),
			Request:         body,
			Err:             err,
		})
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"message": "Operatör güncellendi"})
	}
}

// PATCH /api/operators/:id/status — operatör silinmez, pasife alınır;
// geçmiş hareket ve denetim kayıtları aktöre bağlı kalır
func SetOperatorStatusHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actorID, actorName, err := actorInfo(c)
		if err != nil {
			return err
		}

		operatorID, err := c.ParamsInt("id")
		if err != nil || operatorID < 1 {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz operatör id")
		}

		var body SetStatusBody
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		setStatus := func() error {
			if !body.Status.Valid() {
				return fiber.NewError(fiber.StatusBadRequest, "Durum 'active' veya 'inactive' olmalı")
			}
			if uint(operatorID) == actorID && body.Status == models.StatusInactive {
				return fiber.NewError(fiber.StatusConflict, "Kendi hesabınızı pasife alamazsınız")
			}

			var op models.Operator
			if err := database.DB.First(&op, "id = ?", operatorID).Error; err != nil {
				return fiber.NewError(fiber.StatusNotFound, "Operatör bulunamadı")
			}
			return database.DB.Model(&op).Update("status", body.Status).Error
		}

		err = setStatus()
		_ = audit.WriteLog(audit.LogOptions{
			ActorOperatorID: actorID,
			ActorName:       actorName,
			Action:          "operator_set_status",
			TargetType:      "operator",
			TargetID:        c.Params("id"),
			Request:         body,
			Err:             err,
		})
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"message": "Operatör durumu güncellendi"})
	}
}
