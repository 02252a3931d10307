package rack

import (
	"strings"

	"depo-backend/internal/audit"
	"depo-backend/internal/auth"
	"depo-backend/internal/database"
	"depo-backend/internal/models"
	"depo-backend/internal/paging"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type CreateRackBody struct {
	WarehouseID   uint   `json:"warehouse_id"`
	Code          string `json:"code"`
	Name          string `json:"name"`
	Location      string `json:"location"`
	LevelCount    int    `json:"level_count"`
	SlotsPerLevel int    `json:"slots_per_level"`
}

type UpdateRackBody struct {
	Name          string `json:"name"`
	Location      string `json:"location"`
	LevelCount    int    `json:"level_count"`
	SlotsPerLevel int    `json:"slots_per_level"`
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

// normalizeRackCode: "R3", "r03" gibi girişleri sayısal çekirdeğe indirger.
// Göz kodlarında olduğu gibi kullanılır, ör: "01-3-2-05" içindeki "3".
func normalizeRackCode(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	code = strings.TrimPrefix(code, "R")
	code = strings.TrimLeft(code, "0")
	if code == "" {
		return "", fiber.NewError(fiber.StatusBadRequest, "Raf kodu boş olamaz")
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return "", fiber.NewError(fiber.StatusBadRequest, "Raf kodu yalnızca rakamlardan oluşmalı")
		}
	}
	if len(code) > 3 {
		return "", fiber.NewError(fiber.StatusBadRequest, "Raf kodu en fazla 3 haneli olabilir")
	}
	return code, nil
}

func validateDimensions(levelCount, slotsPerLevel int) error {
	if levelCount < 1 || levelCount > 20 {
		return fiber.NewError(fiber.StatusBadRequest, "Kat sayısı 1-20 arasında olmalı")
	}
	if slotsPerLevel < 1 || slotsPerLevel > 99 {
		return fiber.NewError(fiber.StatusBadRequest, "Kat başına göz sayısı 1-99 arasında olmalı")
	}
	return nil
}

// POST /api/racks — raf ve tüm gözleri tek transaction'da açılır
func CreateRackHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		operatorID, actorName, err := actorInfo(c)
		if err != nil {
			return err
		}

		var body CreateRackBody
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		createRack := func() (*models.Rack, error) {
			code, err := normalizeRackCode(body.Code)
			if err != nil {
				return nil, err
			}
			if strings.TrimSpace(body.Name) == "" {
				return nil, fiber.NewError(fiber.StatusBadRequest, "Raf adı boş olamaz")
			}
			if err := validateDimensions(body.LevelCount, body.SlotsPerLevel); err != nil {
				return nil, err
			}

			var warehouse models.Warehouse
			if err := database.DB.First(&warehouse, "id = ?", body.WarehouseID).Error; err != nil {
				return nil, fiber.NewError(fiber.StatusNotFound, "Depo bulunamadı")
			}
			if warehouse.Status != models.StatusActive {
				return nil, fiber.NewError(fiber.StatusConflict, "Pasif depoya raf eklenemez")
			}

			var existing int64
			if err := database.DB.Model(&models.Rack{}).
				Where("warehouse_id = ? AND code = ?", warehouse.ID, code).
				Count(&existing).Error; err != nil {
				return nil, fiber.NewError(fiber.StatusInternalServerError, "Raf sorgulanamadı")
			}
			if existing > 0 {
				return nil, fiber.NewError(fiber.StatusConflict, "Bu depoda aynı kodlu raf zaten var")
			}

			rack := models.Rack{
				Code:          code,
				Name:          strings.TrimSpace(body.Name),
				WarehouseID:   warehouse.ID,
				Location:      strings.TrimSpace(body.Location),
				LevelCount:    body.LevelCount,
				SlotsPerLevel: body.SlotsPerLevel,
				Status:        models.StatusActive,
			}
			err = database.DB.Transaction(func(tx *gorm.DB) error {
				if err := tx.Create(&rack).Error; err != nil {
					return err
				}
				return generateSlots(tx, &rack, warehouse.Code)
			})
			if err != nil {
				return nil, fiber.NewError(fiber.StatusInternalServerError, "Raf oluşturulamadı")
			}
			return &rack, nil
		}

		rack, err := createRack()
		_ = audit.WriteLog(audit.LogOptions{
			ActorOperatorID: operatorID,
			ActorName:       actorName,
			Action:          "rack_create",
			TargetType:      "rack",
			TargetID:        body.Code,
			Request:         body,
			Err:             err,
		})
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(rack)
	}
}

// GET /api/racks
func ListRacksHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		pageIndex, pageSize, err := paging.FromQuery(c)
		if err != nil {
			return err
		}

		dbq := database.DB.Model(&models.Rack{})
		if warehouseID := c.QueryInt("warehouse_id", 0); warehouseID > 0 {
			dbq = dbq.Where("warehouse_id = ?", warehouseID)
		}
		if status := c.Query("status"); status != "" {
			dbq = dbq.Where("status = ?", status)
		}
		if keyword := c.Query("keyword"); keyword != "" {
			like := "%" + keyword + "%"
			dbq = dbq.Where("(code LIKE ? OR name LIKE ?)", like, like)
		}

		var total int64
		if err := dbq.Count(&total).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Raflar sayılamadı")
		}

		var racks []models.Rack
		if err := dbq.Preload("Warehouse").
			Order("warehouse_id, code").
			Offset(paging.Offset(pageIndex, pageSize)).
			Limit(pageSize).
			Find(&racks).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Raflar listelenemedi")
		}

		return c.JSON(fiber.Map{"items": racks, "total": total})
	}
}

// PUT /api/racks/:id — ad/konum günceller, boyut değişmişse gözleri uyarlar
func UpdateRackHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		operatorID, actorName, err := actorInfo(c)
		if err != nil {
			return err
		}

		rackID, err := c.ParamsInt("id")
		if err != nil || rackID < 1 {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz raf id")
		}

		var body UpdateRackBody
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		updateRack := func() error {
			if strings.TrimSpace(body.Name) == "" {
				return fiber.NewError(fiber.StatusBadRequest, "Raf adı boş olamaz")
			}
			if err := validateDimensions(body.LevelCount, body.SlotsPerLevel); err != nil {
				return err
			}

			return database.DB.Transaction(func(tx *gorm.DB) error {
				var rack models.Rack
				if err := rackForUpdate(tx).First(&rack, "id = ?", rackID).Error; err != nil {
					return fiber.NewError(fiber.StatusNotFound, "Raf bulunamadı")
				}
				var warehouse models.Warehouse
				if err := tx.First(&warehouse, "id = ?", rack.WarehouseID).Error; err != nil {
					return fiber.NewError(fiber.StatusInternalServerError, "Depo sorgulanamadı")
				}

				if body.LevelCount != rack.LevelCount || body.SlotsPerLevel != rack.SlotsPerLevel {
					if err := resizeSlots(tx, &rack, warehouse.Code, body.LevelCount, body.SlotsPerLevel); err != nil {
						return err
					}
				}

				return tx.Model(&rack).Updates(map[string]interface{}{
					"name":            strings.TrimSpace(body.Name),
					"location":        strings.TrimSpace(body.Location),
					"level_count":     body.LevelCount,
					"slots_per_level": body.SlotsPerLevel,
				}).Error
			})
		}

		err = updateRack()
		_ = audit.WriteLog(audit.LogOptions{
			ActorOperatorID: operatorID,
			ActorName:       actorName,
			Action:          "rack_update",
			TargetType:      "rack",
			TargetID:        c.Params("id"),
			Request:         body,
			Err:             err,
		})
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"message": "Raf güncellendi"})
	}
}

// PATCH /api/racks/:id/status
func SetRackStatusHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		operatorID, actorName, err := actorInfo(c)
		if err != nil {
			return err
		}

		rackID, err := c.ParamsInt("id")
		if err != nil || rackID < 1 {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz raf id")
		}

		var body SetStatusBody
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		setStatus := func() error {
			if !body.Status.Valid() {
				return fiber.NewError(fiber.StatusBadRequest, "Durum 'active' veya 'inactive' olmalı")
			}

			var rack models.Rack
			if err := database.DB.First(&rack, "id = ?", rackID).Error; err != nil {
				return fiber.NewError(fiber.StatusNotFound, "Raf bulunamadı")
			}

			if body.Status == models.StatusInactive {
				var stocked int64
				if err := database.DB.Model(&models.Stock{}).
					Joins("JOIN slots ON slots.id = stocks.slot_id").
					Where("slots.rack_id = ? AND stocks.qty > 0", rack.ID).
					Count(&stocked).Error; err != nil {
					return fiber.NewError(fiber.StatusInternalServerError, "Stok sorgulanamadı")
				}
				if stocked > 0 {
					return fiber.NewError(fiber.StatusConflict, "Rafta stok varken pasife alınamaz")
				}
			}

			return database.DB.Model(&rack).Update("status", body.Status).Error
		}

		err = setStatus()
		_ = audit.WriteLog(audit.LogOptions{
			ActorOperatorID: operatorID,
			ActorName:       actorName,
			Action:          "rack_set_status",
			TargetType:      "rack",
			TargetID:        c.Params("id"),
			Request:         body,
			Err:             err,
		})
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"message": "Raf durumu güncellendi"})
	}
}

// GET /api/racks/:id/slots
func ListSlotsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rackID, err := c.ParamsInt("id")
		if err != nil || rackID < 1 {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz raf id")
		}

		dbq := database.DB.Where("rack_id = ?", rackID)
		if status := c.Query("status"); status != "" {
			dbq = dbq.Where("status = ?", status)
		}

		var slots []models.Slot
		if err := dbq.Order("level_no, slot_no").Find(&slots).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Gözler listelenemedi")
		}
		return c.JSON(fiber.Map{"items": slots, "total": len(slots)})
	}
}

// PATCH /api/slots/:id/status
func SetSlotStatusHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		operatorID, actorName, err := actorInfo(c)
		if err != nil {
			return err
		}

		slotID, err := c.ParamsInt("id")
		if err != nil || slotID < 1 {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz göz id")
		}

		var body SetStatusBody
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		setStatus := func() error {
			if !body.Status.Valid() {
				return fiber.NewError(fiber.StatusBadRequest, "Durum 'active' veya 'inactive' olmalı")
			}

			var slot models.Slot
			if err := database.DB.First(&slot, "id = ?", slotID).Error; err != nil {
				return fiber.NewError(fiber.StatusNotFound, "Göz bulunamadı")
			}

			if body.Status == models.StatusInactive {
				var stocked int64
				if err := database.DB.Model(&models.Stock{}).
					Where("slot_id = ? AND qty > 0", slot.ID).
					Count(&stocked).Error; err != nil {
					return fiber.NewError(fiber.StatusInternalServerError, "Stok sorgulanamadı")
				}
				if stocked > 0 {
					return fiber.NewError(fiber.StatusConflict, "Gözde stok varken pasife alınamaz")
				}
			}

			return database.DB.Model(&slot).Update("status", body.Status).Error
		}

		err = setStatus()
		_ = audit.WriteLog(audit.LogOptions{
			ActorOperatorID: operatorID,
			ActorName:       actorName,
			Action:          "slot_set_status",
			TargetType:      "slot",
			TargetID:        c.Params("id"),
			Request:         body,
			Err:             err,
		})
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"message": "Göz durumu güncellendi"})
	}
}
