package warehouse

import (
	"strings"

	"depo-backend/internal/audit"
	"depo-backend/internal/auth"
	"depo-backend/internal/database"
	"depo-backend/internal/models"
	"depo-backend/internal/paging"

	"github.com/gofiber/fiber/v2"
)

type CreateWarehouseBody struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type UpdateWarehouseBody struct {
	Name string `json:"name"`
}

type SetStatusBody struct {
	Status models.EntityStatus `json:"status"`
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

// normalizeWarehouseCode: "W1", "w01" gibi girişleri iki haneli sayısal
// çekirdeğe indirger ("01"). Göz kodlarının ilk parçası olur.
func normalizeWarehouseCode(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	code = strings.TrimPrefix(code, "W")
	if code == "" {
		return "", fiber.NewError(fiber.StatusBadRequest, "Depo kodu boş olamaz")
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return "", fiber.NewError(fiber.StatusBadRequest, "Depo kodu yalnızca rakamlardan oluşmalı")
		}
	}
	if len(code) > 2 {
		return "", fiber.NewError(fiber.StatusBadRequest, "Depo kodu en fazla 2 haneli olabilir")
	}
	if len(code) == 1 {
		code = "0" + code
	}
	return code, nil
}

// POST /api/warehouses
func CreateWarehouseHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		operatorID, actorName, err := actorInfo(c)
		if err != nil {
			return err
		}

		var body CreateWarehouseBody
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		create := func() (*models.Warehouse, error) {
			code, err := normalizeWarehouseCode(body.Code)
			if err != nil {
				return nil, err
			}
			if strings.TrimSpace(body.Name) == "" {
				return nil, fiber.NewError(fiber.StatusBadRequest, "Depo adı boş olamaz")
			}

			var existing int64
			if err := database.DB.Model(&models.Warehouse{}).
				Where("code = ?", code).
				Count(&existing).Error; err != nil {
				return nil, fiber.NewError(fiber.StatusInternalServerError, "Depo sorgulanamadı")
			}
			if existing > 0 {
				return nil, fiber.NewError(fiber.StatusConflict, "Bu kodla bir depo zaten var")
			}

			warehouse := models.Warehouse{
				Code:   code,
				Name:   strings.TrimSpace(body.Name),
				Status: models.StatusActive,
			}
			if err := database.DB.Create(&warehouse).Error; err != nil {
				return nil, fiber.NewError(fiber.StatusInternalServerError, "Depo oluşturulamadı")
			}
			return &warehouse, nil
		}

		warehouse, err := create()
		_ = audit.WriteLog(audit.LogOptions{
			ActorOperatorID: operatorID,
			ActorName:       actorName,
			Action:          "warehouse_create",
			TargetType:      "warehouse",
			TargetID:        body.Code,
			Request:         body,
			Err:             err,
		})
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(warehouse)
	}
}

// GET /api/warehouses
func ListWarehousesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		pageIndex, pageSize, err := paging.FromQuery(c)
		if err != nil {
			return err
		}

		dbq := database.DB.Model(&models.Warehouse{})
		if status := c.Query("status"); status != "" {
			dbq = dbq.Where("status = ?", status)
		}
		if keyword := c.Query("keyword"); keyword != "" {
			like := "%" + keyword + "%"
			dbq = dbq.Where("(code LIKE ? OR name LIKE ?)", like, like)
		}

		var total int64
		if err := dbq.Count(&total).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Depolar sayılamadı")
		}

		var warehouses []models.Warehouse
		if err := dbq.Order("code").
			Offset(paging.Offset(pageIndex, pageSize)).
			Limit(pageSize).
			Find(&warehouses).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Depolar listelenemedi")
		}

		return c.JSON(fiber.Map{"items": warehouses, "total": total})
	}
}

// PUT /api/warehouses/:id — kod değişmez, sadece ad güncellenir
func UpdateWarehouseHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		operatorID, actorName, err := actorInfo(c)
		if err != nil {
			return err
		}

		warehouseID, err := c.ParamsInt("id")
		if err != nil || warehouseID < 1 {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz depo id")
		}

		var body UpdateWarehouseBody
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		update := func() error {
			if strings.TrimSpace(body.Name) == "" {
				return fiber.NewError(fiber.StatusBadRequest, "Depo adı boş olamaz")
			}
			var warehouse models.Warehouse
			if err := database.DB.First(&warehouse, "id = ?", warehouseID).Error; err != nil {
				return fiber.NewError(fiber.StatusNotFound, "Depo bulunamadı")
			}
			return database.DB.Model(&warehouse).Update("name", strings.TrimSpace(body.Name)).Error
		}

		err = update()
		_ = audit.WriteLog(audit.LogOptions{
			ActorOperatorID: operatorID,
			ActorName:       actorName,
			Action:          "warehouse_update",
			TargetType:      "warehouse",
			TargetID:        c.Params("id"),
			Request:         body,
			Err:             err,
		})
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"message": "Depo güncellendi"})
	}
}

// PATCH /api/warehouses/:id/status
func SetWarehouseStatusHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		operatorID, actorName, err := actorInfo(c)
		if err != nil {
			return err
		}

		warehouseID, err := c.ParamsInt("id")
		if err != nil || warehouseID < 1 {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz depo id")
		}

		var body SetStatusBody
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		setStatus := func() error {
			if !body.Status.Valid() {
				return fiber.NewError(fiber.StatusBadRequest, "Durum 'active' veya 'inactive' olmalı")
			}

			var warehouse models.Warehouse
			if err := database.DB.First(&warehouse, "id = ?", warehouseID).Error; err != nil {
				return fiber.NewError(fiber.StatusNotFound, "Depo bulunamadı")
			}

			if body.Status == models.StatusInactive {
				var stocked int64
				if err := database.DB.Model(&models.Stock{}).
					Joins("JOIN slots ON slots.id = stocks.slot_id").
					Where("slots.warehouse_id = ? AND stocks.qty > 0", warehouse.ID).
					Count(&stocked).Error; err != nil {
					return fiber.NewError(fiber.StatusInternalServerError, "Stok sorgulanamadı")
				}
				if stocked > 0 {
					return fiber.NewError(fiber.StatusConflict, "Depoda stok varken pasife alınamaz")
				}
			}

			return database.DB.Model(&warehouse).Update("status", body.Status).Error
		}

		err = setStatus()
		_ = audit.WriteLog(audit.LogOptions{
			ActorOperatorID: operatorID,
			ActorName:       actorName,
			Action:          "warehouse_set_status",
			TargetType:      "warehouse",
			TargetID:        c.Params("id"),
			Request:         body,
			Err:             err,
		})
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"message": "Depo durumu güncellendi"})
	}
}
