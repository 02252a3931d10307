package ledger

import (
	"time"

	"depo-backend/internal/audit"
	"depo-backend/internal/auth"
	"depo-backend/internal/database"
	"depo-backend/internal/models"
	"depo-backend/internal/paging"

	"github.com/gofiber/fiber/v2"
)

type CreateInboundBody struct {
	ItemID     uint   `json:"item_id"`
	ToSlotID   uint   `json:"to_slot_id"`
	Qty        int64  `json:"qty"`
	OccurredAt string `json:"occurred_at"` // RFC3339, boşsa şimdi
	Note       string `json:"note"`
}

type CreateOutboundBody struct {
	ItemID     uint   `json:"item_id"`
	FromSlotID uint   `json:"from_slot_id"`
	Qty        int64  `json:"qty"`
	OccurredAt string `json:"occurred_at"`
	Note       string `json:"note"`
}

type CreateMoveBody struct {
	ItemID     uint   `json:"item_id"`
	FromSlotID uint   `json:"from_slot_id"`
	ToSlotID   uint   `json:"to_slot_id"`
	Qty        int64  `json:"qty"`
	OccurredAt string `json:"occurred_at"`
	Note       string `json:"note"`
}

type CreateCountBody struct {
	ItemID     uint   `json:"item_id"`
	SlotID     uint   `json:"slot_id"`
	ActualQty  int64  `json:"actual_qty"`
	OccurredAt string `json:"occurred_at"`
	Note       string `json:"note"`
}

type ReverseTxnBody struct {
	OccurredAt string `json:"occurred_at"`
	Note       string `json:"note"`
}

// Yardımcı: JWT'den aktör operatörü çöz (denetim kaydı için adıyla birlikte)
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

func parseOccurredAt(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fiber.NewError(fiber.StatusBadRequest, "occurred_at formatı geçersiz")
}

// POST /api/txns/inbound
func CreateInboundHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		operatorID, actorName, err := actorInfo(c)
		if err != nil {
			return err
		}

		// Gövde/tarih çözümlemesi de denetlenen yolun içinde; bozuk bir
		// istek bile fail satırı bırakır
		var body CreateInboundBody
		create := func() (string, error) {
			if err := c.BodyParser(&body); err != nil {
				return "", fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
			}
			occurredAt, err := parseOccurredAt(body.OccurredAt)
			if err != nil {
				return "", err
			}
			return CreateInbound(InboundRequest{
				ItemID:     body.ItemID,
				ToSlotID:   body.ToSlotID,
				Qty:        body.Qty,
				OccurredAt: occurredAt,
				OperatorID: operatorID,
				Note:       body.Note,
			})
		}

		txnNo, err := create()
		_ = audit.WriteLog(audit.LogOptions{
			ActorOperatorID: operatorID,
			ActorName:       actorName,
			Action:          "txn_inbound",
			TargetType:      "txn",
			TargetID:        txnNo,
			Request:         body,
			Err:             err,
		})
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"txn_no": txnNo})
	}
}

// POST /api/txns/outbound
func CreateOutboundHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		operatorID, actorName, err := actorInfo(c)
		if err != nil {
			return err
		}

		var body CreateOutboundBody
		create := func() (string, error) {
			if err := c.BodyParser(&body); err != nil {
				return "", fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
			}
			occurredAt, err := parseOccurredAt(body.OccurredAt)
			if err != nil {
				return "", err
			}
			return CreateOutbound(OutboundRequest{
				ItemID:     body.ItemID,
				FromSlotID: body.FromSlotID,
				Qty:        body.Qty,
				OccurredAt: occurredAt,
				OperatorID: operatorID,
				Note:       body.Note,
			})
		}

		txnNo, err := create()
		_ = audit.WriteLog(audit.LogOptions{
			ActorOperatorID: operatorID,
			ActorName:       actorName,
			Action:          "txn_outbound",
			TargetType:      "txn",
			TargetID:        txnNo,
			Request:         body,
			Err:             err,
		})
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"txn_no": txnNo})
	}
}

// POST /api/txns/move
func CreateMoveHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		operatorID, actorName, err := actorInfo(c)
		if err != nil {
			return err
		}

		var body CreateMoveBody
		create := func() (string, error) {
			if err := c.BodyParser(&body); err != nil {
				return "", fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
			}
			occurredAt, err := parseOccurredAt(body.OccurredAt)
			if err != nil {
				return "", err
			}
			return CreateMove(MoveRequest{
				ItemID:     body.ItemID,
				FromSlotID: body.FromSlotID,
				ToSlotID:   body.ToSlotID,
				Qty:        body.Qty,
				OccurredAt: occurredAt,
				OperatorID: operatorID,
				Note:       body.Note,
			})
		}

		txnNo, err := create()
		_ = audit.WriteLog(audit.LogOptions{
			ActorOperatorID: operatorID,
			ActorName:       actorName,
			Action:          "txn_move",
			TargetType:      "txn",
			TargetID:        txnNo,
			Request:         body,
			Err:             err,
		})
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"txn_no": txnNo})
	}
}

// POST /api/txns/count
func CreateCountHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		operatorID, actorName, err := actorInfo(c)
		if err != nil {
			return err
		}

		var body CreateCountBody
		create := func() (string, error) {
			if err := c.BodyParser(&body); err != nil {
				return "", fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
			}
			occurredAt, err := parseOccurredAt(body.OccurredAt)
			if err != nil {
				return "", err
			}
			return CreateCount(CountRequest{
				ItemID:     body.ItemID,
				SlotID:     body.SlotID,
				ActualQty:  body.ActualQty,
				OccurredAt: occurredAt,
				OperatorID: operatorID,
				Note:       body.Note,
			})
		}

		txnNo, err := create()
		_ = audit.WriteLog(audit.LogOptions{
			ActorOperatorID: operatorID,
			ActorName:       actorName,
			Action:          "txn_count",
			TargetType:      "txn",
			TargetID:        txnNo,
			Request:         body,
			Err:             err,
		})
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"txn_no": txnNo})
	}
}

// POST /api/txns/:txn_no/reverse
func ReverseTxnHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		operatorID, actorName, err := actorInfo(c)
		if err != nil {
			return err
		}

		refTxnNo := c.Params("txn_no")
		var body ReverseTxnBody
		reverse := func() (string, error) {
			if err := c.BodyParser(&body); err != nil && len(c.Body()) > 0 {
				return "", fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
			}
			occurredAt, err := parseOccurredAt(body.OccurredAt)
			if err != nil {
				return "", err
			}
			return ReverseTxn(refTxnNo, occurredAt, operatorID, body.Note)
		}

		txnNo, err := reverse()
		_ = audit.WriteLog(audit.LogOptions{
			ActorOperatorID: operatorID,
			ActorName:       actorName,
			Action:          "txn_reverse",
			TargetType:      "txn",
			TargetID:        refTxnNo,
			Request:         fiber.Map{"txn_no": refTxnNo, "note": body.Note},
			Err:             err,
		})
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"txn_no": txnNo})
	}
}

type TxnResponse struct {
	ID           uint   `json:"id"`
	TxnNo        string `json:"txn_no"`
	Type         string `json:"type"`
	OccurredAt   string `json:"occurred_at"`
	CreatedAt    string `json:"created_at"`
	OperatorID   uint   `json:"operator_id"`
	OperatorName string `json:"operator_name"`
	ItemID       uint   `json:"item_id"`
	ItemCode     string `json:"item_code"`
	ItemName     string `json:"item_name"`
	FromSlotID   *uint  `json:"from_slot_id"`
	FromSlotCode string `json:"from_slot_code,omitempty"`
	ToSlotID     *uint  `json:"to_slot_id"`
	ToSlotCode   string `json:"to_slot_code,omitempty"`
	Qty          int64  `json:"qty"`
	ActualQty    *int64 `json:"actual_qty,omitempty"`
	RefTxnNo     string `json:"ref_txn_no,omitempty"`
	HasReversal  bool   `json:"has_reversal"`
	Note         string `json:"note,omitempty"`
}

// GET /api/txns?type=IN&item_id=1&slot_id=2&rack_id=3&warehouse_id=4&operator_id=5&keyword=...&start_at=...&end_at=...
func ListTxnsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		pageIndex, pageSize, err := paging.FromQuery(c)
		if err != nil {
			return err
		}

		dbq := database.DB.Model(&models.Txn{})

		if txnType := c.Query("type"); txnType != "" {
			dbq = dbq.Where("txns.type = ?", txnType)
		}
		if itemID := c.QueryInt("item_id", 0); itemID > 0 {
			dbq = dbq.Where("txns.item_id = ?", itemID)
		}
		if slotID := c.QueryInt("slot_id", 0); slotID > 0 {
			dbq = dbq.Where("(txns.from_slot_id = ? OR txns.to_slot_id = ?)", slotID, slotID)
		}
		if rackID := c.QueryInt("rack_id", 0); rackID > 0 {
			dbq = dbq.Where(
				"(txns.from_slot_id IN (SELECT id FROM slots WHERE rack_id = ?) OR txns.to_slot_id IN (SELECT id FROM slots WHERE rack_id = ?))",
				rackID, rackID)
		}
		if warehouseID := c.QueryInt("warehouse_id", 0); warehouseID > 0 {
			dbq = dbq.Where(
				"(txns.from_slot_id IN (SELECT id FROM slots WHERE warehouse_id = ?) OR txns.to_slot_id IN (SELECT id FROM slots WHERE warehouse_id = ?))",
				warehouseID, warehouseID)
		}
		if operatorID := c.QueryInt("operator_id", 0); operatorID > 0 {
			dbq = dbq.Where("txns.operator_id = ?", operatorID)
		}
		if keyword := c.Query("keyword"); keyword != "" {
			like := "%" + keyword + "%"
			dbq = dbq.Where(
				"(txns.txn_no LIKE ? OR txns.item_id IN (SELECT id FROM items WHERE item_code LIKE ? OR name LIKE ?))",
				like, like, like)
		}
		if startAt := c.Query("start_at"); startAt != "" {
			if t, perr := parseOccurredAt(startAt); perr == nil && !t.IsZero() {
				dbq = dbq.Where("txns.occurred_at >= ?", t)
			}
		}
		if endAt := c.Query("end_at"); endAt != "" {
			if t, perr := parseOccurredAt(endAt); perr == nil && !t.IsZero() {
				dbq = dbq.Where("txns.occurred_at <= ?", t)
			}
		}

		var total int64
		if err := dbq.Count(&total).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Hareketler sayılamadı")
		}

		var txns []models.Txn
		if err := dbq.
			Preload("Item").
			Preload("Operator").
			Preload("FromSlot").
			Preload("ToSlot").
			Preload("RefTxn").
			Order("txns.occurred_at DESC, txns.id DESC").
			Offset(paging.Offset(pageIndex, pageSize)).
			Limit(pageSize).
			Find(&txns).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Hareketler listelenemedi")
		}

		// Sayfadaki kayıtlardan hangileri ters çevrilmiş?
		reversedIDs := make(map[uint]bool)
		if len(txns) > 0 {
			ids := make([]uint, 0, len(txns))
			for _, t := range txns {
				ids = append(ids, t.ID)
			}
			var refIDs []uint
			if err := database.DB.Model(&models.Txn{}).
				Where("type = ? AND ref_txn_id IN ?", models.TxnTypeReversal, ids).
				Pluck("ref_txn_id", &refIDs).Error; err == nil {
				for _, id := range refIDs {
					reversedIDs[id] = true
				}
			}
		}

		items := make([]TxnResponse, 0, len(txns))
		for _, t := range txns {
			row := TxnResponse{
				ID:           t.ID,
				TxnNo:        t.TxnNo,
				Type:         string(t.Type),
				OccurredAt:   t.OccurredAt.Format("2006-01-02 15:04:05"),
				CreatedAt:    t.CreatedAt.Format("2006-01-02 15:04:05"),
				OperatorID:   t.OperatorID,
				OperatorName: t.Operator.DisplayName,
				ItemID:       t.ItemID,
				ItemCode:     t.Item.ItemCode,
				ItemName:     t.Item.Name,
				FromSlotID:   t.FromSlotID,
				ToSlotID:     t.ToSlotID,
				Qty:          t.Qty,
				ActualQty:    t.ActualQty,
				HasReversal:  reversedIDs[t.ID],
				Note:         t.Note,
			}
			if t.FromSlot != nil {
				row.FromSlotCode = t.FromSlot.Code
			}
			if t.ToSlot != nil {
				row.ToSlotCode = t.ToSlot.Code
			}
			if t.RefTxn != nil {
				row.RefTxnNo = t.RefTxn.TxnNo
			}
			items = append(items, row)
		}

		return c.JSON(fiber.Map{"items": items, "total": total})
	}
}
