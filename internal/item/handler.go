package item

import (
	"strings"

	"depo-backend/internal/audit"
	"depo-backend/internal/auth"
	"depo-backend/internal/database"
	"depo-backend/internal/models"
	"depo-backend/internal/paging"

	"github.com/gofiber/fiber/v2"
)

type CreateItemBody struct {
	ItemCode string `json:"item_code"`
	Name     string `json:"name"`
	Model    string `json:"model"`
	Spec     string `json:"spec"`
	UOM      string `json:"uom"`
}

type UpdateItemBody struct {
	Name  string `json:"name"`
	Model string `json:"model"`
	Spec  string `json:"spec"`
	UOM   string `json:"uom"`
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

// POST /api/items
func CreateItemHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		operatorID, actorName, err := actorInfo(c)
		if err != nil {
			return err
		}

		var body CreateItemBody
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		create := func() (*models.Item, error) {
			itemCode := strings.ToUpper(strings.TrimSpace(body.ItemCode))
			if itemCode == "" {
				return nil, fiber.NewError(fiber.StatusBadRequest, "Malzeme kodu boş olamaz")
			}
			if strings.TrimSpace(body.Name) == "" {
				return nil, fiber.NewError(fiber.StatusBadRequest, "Malzeme adı boş olamaz")
			}
			if strings.TrimSpace(body.UOM) == "" {
				return nil, fiber.NewError(fiber.StatusBadRequest, "Birim boş olamaz")
			}

			var existing int64
			if err := database.DB.Model(&models.Item{}).
				Where("item_code = ?", itemCode).
				Count(&existing).Error; err != nil {
				return nil, fiber.NewError(fiber.StatusInternalServerError, "Malzeme sorgulanamadı")
			}
			if existing > 0 {
				return nil, fiber.NewError(fiber.StatusConflict, "Bu kodla bir malzeme zaten var")
			}

			item := models.Item{
				ItemCode: itemCode,
				Name:     strings.TrimSpace(body.Name),
				Model:    strings.TrimSpace(body.Model),
				Spec:     strings.TrimSpace(body.Spec),
				UOM:      strings.TrimSpace(body.UOM),
				Status:   models.StatusActive,
			}
			if err := database.DB.Create(&item).Error; err != nil {
				return nil, fiber.NewError(fiber.StatusInternalServerError, "Malzeme oluşturulamadı")
			}
			return &item, nil
		}

		item, err := create()
		_ = audit.WriteLog(audit.LogOptions{
			ActorOperatorID: operatorID,
			ActorName:       actorName,
			Action:          "item_create",
			TargetType:      "item",
			TargetID:        body.ItemCode,
			Request:         body,
			Err:             err,
		})
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(item)
	}
}

// GET /api/items
func ListItemsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		pageIndex, pageSize, err := paging.FromQuery(c)
		if err != nil {
			return err
		}

		dbq := database.DB.Model(&models.Item{})
		if status := c.Query("status"); status != "" {
			dbq = dbq.Where("status = ?", status)
		}
		if keyword := c.Query("keyword"); keyword != "" {
			like := "%" + keyword + "%"
			dbq = dbq.Where("(item_code LIKE ? OR name LIKE ? OR model LIKE ? OR spec LIKE ?)",
				like, like, like, like)
		}

		var total int64
		if err := dbq.Count(&total).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Malzemeler sayılamadı")
		}

		var items []models.Item
		if err := dbq.Order("item_code").
			Offset(paging.Offset(pageIndex, pageSize)).
			Limit(pageSize).
			Find(&items).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Malzemeler listelenemedi")
		}

		return c.JSON(fiber.Map{"items": items, "total": total})
	}
}

// PUT /api/items/:id — kod değişmez, tanımlayıcı alanlar güncellenir.
// Geçmiş hareketler item_id üzerinden bağlı olduğu için etkilenmez.
func UpdateItemHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		operatorID, actorName, err := actorInfo(c)
		if err != nil {
			return err
		}

		itemID, err := c.ParamsInt("id")
		if err != nil || itemID < 1 {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz malzeme id")
		}

		var body UpdateItemBody
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		update := func() error {
			if strings.TrimSpace(body.Name) == "" {
				return fiber.NewError(fiber.StatusBadRequest, "Malzeme adı boş olamaz")
			}
			if strings.TrimSpace(body.UOM) == "" {
				return fiber.NewError(fiber.StatusBadRequest, "Birim boş olamaz")
			}
			var item models.Item
			if err := database.DB.First(&item, "id = ?", itemID).Error; err != nil {
				return fiber.NewError(fiber.StatusNotFound, "Malzeme bulunamadı")
			}
			return database.DB.Model(&item).Updates(map[string]interface{}{
				"name":  strings.TrimSpace(body.Name),
				"model": strings.TrimSpace(body.Model),
				"spec":  strings.TrimSpace(body.Spec),
				"uom":   strings.TrimSpace(body.UOM),
			}).Error
		}

		err = update()
		_ = audit.WriteLog(audit.LogOptions{
			ActorOperatorID: operatorID,
			ActorName:       actorName,
			Action:          "item_update",
			TargetType:      "item",
			TargetID:        c.Params("id"),
			Request:         body,
			Err:             err,
		})
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"message": "Malzeme güncellendi"})
	}
}

// PATCH /api/items/:id/status — pasif malzeme yeni hareket alamaz,
// mevcut stok ve geçmiş kayıtlar okunmaya devam eder
func SetItemStatusHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		operatorID, actorName, err := actorInfo(c)
		if err != nil {
			return err
		}

		itemID, err := c.ParamsInt("id")
		if err != nil || itemID < 1 {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz malzeme id")
		}

		var body SetStatusBody
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		setStatus := func() error {
			if !body.Status.Valid() {
				return fiber.NewError(fiber.StatusBadRequest, "Durum 'active' veya 'inactive' olmalı")
			}
			var item models.Item
			if err := database.DB.First(&item, "id = ?", itemID).Error; err != nil {
				return fiber.NewError(fiber.StatusNotFound, "Malzeme bulunamadı")
			}
			return database.DB.Model(&item).Update("status", body.Status).Error
		}

		err = setStatus()
		_ = audit.WriteLog(audit.LogOptions{
			ActorOperatorID: operatorID,
			ActorName:       actorName,
			Action:          "item_set_status",
			TargetType:      "item",
			TargetID:        c.Params("id"),
			Request:         body,
			Err:             err,
		})
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"message": "Malzeme durumu güncellendi"})
	}
}
