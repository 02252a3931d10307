package server

import (
	"errors"
	"log"
	"strings"

	"depo-backend/internal/apperr"
	"depo-backend/internal/audit"
	"depo-backend/internal/auth"
	"depo-backend/internal/config"
	"depo-backend/internal/item"
	"depo-backend/internal/ledger"
	"depo-backend/internal/models"
	"depo-backend/internal/operator"
	"depo-backend/internal/rack"
	"depo-backend/internal/stock"
	"depo-backend/internal/warehouse"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// New: Fiber uygulamasını kurar ve tüm route'ları bağlar.
// Testler de aynı giriş noktasını kullanır.
func New(cfg *config.Config) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var appErr *apperr.AppError
			if errors.As(err, &appErr) {
				return c.Status(apperr.HTTPStatus(appErr.Code)).JSON(fiber.Map{
					"code":  appErr.Code,
					"error": appErr.Message,
				})
			}
			if e, ok := err.(*fiber.Error); ok {
				return c.Status(e.Code).JSON(fiber.Map{
					"error": e.Message,
				})
			}
			log.Println("Unexpected error:", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Beklenmeyen sunucu hatası",
			})
		},
	})

	// CORS origins'i virgülle ayrılmış string'den array'e çevir
	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
	}))

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/login", auth.LoginHandler(cfg))

	// Protected
	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg))

	protected.Get("/auth/me", auth.MeHandler())
	protected.Post("/auth/change-password", auth.ChangePasswordHandler(cfg))

	// Parola değişimi zorunluysa aşağıdaki uçların tamamı kapalıdır
	active := protected.Group("")
	active.Use(auth.RequirePasswordChanged())

	// Hareket defteri
	active.Post("/txns/inbound", ledger.CreateInboundHandler())
	active.Post("/txns/outbound", ledger.CreateOutboundHandler())
	active.Post("/txns/move", ledger.CreateMoveHandler())
	active.Post("/txns/count", ledger.CreateCountHandler())
	active.Post("/txns/:txn_no/reverse", ledger.ReverseTxnHandler())
	active.Get("/txns", ledger.ListTxnsHandler())

	// Stok projeksiyonu
	active.Get("/stock/by-slot", stock.ListStockBySlotHandler())
	active.Get("/stock/by-item", stock.ListStockByItemHandler())

	// Tanım okuma uçları (operatörler de görür)
	active.Get("/warehouses", warehouse.ListWarehousesHandler())
	active.Get("/racks", rack.ListRacksHandler())
	active.Get("/racks/:id/slots", rack.ListSlotsHandler())
	active.Get("/items", item.ListItemsHandler())

	// Admin routes
	adminRoutes := active.Group("")
	adminRoutes.Use(auth.RequireRole(models.RoleAdmin))

	// Depo yönetimi
	adminRoutes.Post("/warehouses", warehouse.CreateWarehouseHandler())
	adminRoutes.Put("/warehouses/:id", warehouse.UpdateWarehouseHandler())
	adminRoutes.Patch("/warehouses/:id/status", warehouse.SetWarehouseStatusHandler())

	// Raf ve göz yönetimi
	adminRoutes.Post("/racks", rack.CreateRackHandler())
	adminRoutes.Put("/racks/:id", rack.UpdateRackHandler())
	adminRoutes.Patch("/racks/:id/status", rack.SetRackStatusHandler())
	adminRoutes.Patch("/slots/:id/status", rack.SetSlotStatusHandler())

	// Malzeme kataloğu
	adminRoutes.Post("/items", item.CreateItemHandler())
	adminRoutes.Put("/items/:id", item.UpdateItemHandler())
	adminRoutes.Patch("/items/:id/status", item.SetItemStatusHandler())

	// Operatör yönetimi
	adminRoutes.Post("/operators", operator.CreateOperatorHandler())
	adminRoutes.Get("/operators", operator.ListOperatorsHandler())
	adminRoutes.Put("/operators/:id", operator.UpdateOperatorHandler())
	adminRoutes.Patch("/operators/:id/status", operator.SetOperatorStatusHandler())

	// Projeksiyon yeniden kurma
	adminRoutes.Post("/stock/rebuild", stock.RebuildHandler())

	// Denetim kayıtları
	adminRoutes.Get("/audit-logs", audit.ListAuditLogsHandler())

	return app
}
