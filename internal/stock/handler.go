package stock

import (
	"time"

	"depo-backend/internal/audit"
	"depo-backend/internal/auth"
	"depo-backend/internal/database"
	"depo-backend/internal/models"
	"depo-backend/internal/paging"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type StockBySlotRow struct {
	ItemID        uint      `json:"item_id"`
	ItemCode      string    `json:"item_code"`
	ItemName      string    `json:"item_name"`
	UOM           string    `json:"uom"`
	SlotID        uint      `json:"slot_id"`
	SlotCode      string    `json:"slot_code"`
	LevelNo       int       `json:"level_no"`
	SlotNo        int       `json:"slot_no"`
	RackID        uint      `json:"rack_id"`
	RackCode      string    `json:"rack_code"`
	RackName      string    `json:"rack_name"`
	WarehouseID   uint      `json:"warehouse_id"`
	WarehouseCode string    `json:"warehouse_code"`
	WarehouseName string    `json:"warehouse_name"`
	Qty           int64     `json:"qty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func stockBySlotQuery(c *fiber.Ctx) *gorm.DB {
	dbq := database.DB.Table("stocks").
		Joins("JOIN items ON items.id = stocks.item_id").
		Joins("JOIN slots ON slots.id = stocks.slot_id").
		Joins("JOIN racks ON racks.id = slots.rack_id").
		Joins("JOIN warehouses ON warehouses.id = racks.warehouse_id").
		Where("stocks.qty > 0")

	if warehouseID := c.QueryInt("warehouse_id", 0); warehouseID > 0 {
		dbq = dbq.Where("warehouses.id = ?", warehouseID)
	}
	if rackID := c.QueryInt("rack_id", 0); rackID > 0 {
		dbq = dbq.Where("racks.id = ?", rackID)
	}
	if slotID := c.QueryInt("slot_id", 0); slotID > 0 {
		dbq = dbq.Where("slots.id = ?", slotID)
	}
	if itemID := c.QueryInt("item_id", 0); itemID > 0 {
		dbq = dbq.Where("items.id = ?", itemID)
	}
	if keyword := c.Query("keyword"); keyword != "" {
		like := "%" + keyword + "%"
		dbq = dbq.Where("(items.item_code LIKE ? OR items.name LIKE ? OR slots.code LIKE ?)", like, like, like)
	}
	return dbq
}

// GET /api/stock/by-slot — göz bazında güncel stok satırları
func ListStockBySlotHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		pageIndex, pageSize, err := paging.FromQuery(c)
		if err != nil {
			return err
		}

		var total int64
		if err := stockBySlotQuery(c).Count(&total).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Stok satırları sayılamadı")
		}

		var rows []StockBySlotRow
		if err := stockBySlotQuery(c).
			Select(`stocks.item_id, items.item_code, items.name AS item_name, items.uom,
				stocks.slot_id, slots.code AS slot_code, slots.level_no, slots.slot_no,
				racks.id AS rack_id, racks.code AS rack_code, racks.name AS rack_name,
				warehouses.id AS warehouse_id, warehouses.code AS warehouse_code, warehouses.name AS warehouse_name,
				stocks.qty, stocks.updated_at`).
			Order("warehouses.code, racks.code, slots.level_no, slots.slot_no, items.item_code").
			Offset(paging.Offset(pageIndex, pageSize)).
			Limit(pageSize).
			Scan(&rows).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Stok satırları listelenemedi")
		}

		return c.JSON(fiber.Map{"items": rows, "total": total})
	}
}

type StockByItemRow struct {
	ItemID    uint   `json:"item_id"`
	ItemCode  string `json:"item_code"`
	ItemName  string `json:"item_name"`
	UOM       string `json:"uom"`
	TotalQty  int64  `json:"total_qty"`
	SlotCount int64  `json:"slot_count"`
}

func stockByItemQuery(c *fiber.Ctx) *gorm.DB {
	// Malzeme toplamı yalnızca aktif gözler üzerinden hesaplanır
	dbq := database.DB.Table("stocks").
		Joins("JOIN items ON items.id = stocks.item_id").
		Joins("JOIN slots ON slots.id = stocks.slot_id").
		Where("stocks.qty > 0 AND slots.status = ?", models.StatusActive)

	if warehouseID := c.QueryInt("warehouse_id", 0); warehouseID > 0 {
		dbq = dbq.Where("slots.warehouse_id = ?", warehouseID)
	}
	if rackID := c.QueryInt("rack_id", 0); rackID > 0 {
		dbq = dbq.Where("slots.rack_id = ?", rackID)
	}
	if itemID := c.QueryInt("item_id", 0); itemID > 0 {
		dbq = dbq.Where("items.id = ?", itemID)
	}
	if keyword := c.Query("keyword"); keyword != "" {
		like := "%" + keyword + "%"
		dbq = dbq.Where("(items.item_code LIKE ? OR items.name LIKE ?)", like, like)
	}
	return dbq
}

// GET /api/stock/by-item — malzeme bazında toplamlar (aktif gözler)
func ListStockByItemHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		pageIndex, pageSize, err := paging.FromQuery(c)
		if err != nil {
			return err
		}

		var total int64
		if err := stockByItemQuery(c).
			Distinct("stocks.item_id").
			Count(&total).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Stok toplamları sayılamadı")
		}

		var rows []StockByItemRow
		if err := stockByItemQuery(c).
			Select(`stocks.item_id, items.item_code, items.name AS item_name, items.uom,
				SUM(stocks.qty) AS total_qty, COUNT(stocks.slot_id) AS slot_count`).
			Group("stocks.item_id, items.item_code, items.name, items.uom").
			Order("items.item_code").
			Offset(paging.Offset(pageIndex, pageSize)).
			Limit(pageSize).
			Scan(&rows).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Stok toplamları listelenemedi")
		}

		return c.JSON(fiber.Map{"items": rows, "total": total})
	}
}

// POST /api/stock/rebuild — projeksiyonu silip defteri baştan oynatır
// (doğrulama / felaket kurtarma yolu, sadece admin)
func RebuildHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		operatorID, err := auth.OperatorIDFromCtx(c)
		if err != nil {
			return err
		}
		var operator models.Operator
		if err := database.DB.First(&operator, "id = ?", operatorID).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Operatör bulunamadı")
		}

		result, err := Rebuild()
		_ = audit.WriteLog(audit.LogOptions{
			ActorOperatorID: operatorID,
			ActorName:       operator.DisplayName,
			Action:          "stock_rebuild",
			TargetType:      "stock",
			Err:             err,
		})
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"txn_count":  result.TxnCount,
			"stock_rows": result.StockRows,
		})
	}
}
