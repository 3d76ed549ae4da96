package v1

import (
	"github.com/gin-gonic/gin"

	"stockflow/internal/infrastructure/http/v1/handlers"
	"stockflow/internal/infrastructure/http/v1/middleware"
)

// registerWarehouseRoutes wires the receipt endpoints. Writes require a
// bearer token when validator is set; reads are always open.
func registerWarehouseRoutes(rg *gin.RouterGroup, h *handlers.WarehouseHandler, validator middleware.JWTValidator) {
	warehouses := rg.Group("/warehouses")
	warehouses.GET("/:id/receipts", h.ListReceipts)

	writes := warehouses.Group("/receipts")
	if validator != nil {
		writes.Use(middleware.Auth(validator))
	}
	writes.POST("", h.CreateReceipt)
	writes.POST("/procedure", h.CreateReceiptViaProcedure)
}

func registerProductRoutes(rg *gin.RouterGroup, h *handlers.WarehouseHandler) {
	products := rg.Group("/products")
	products.GET("/:id/price", h.ProductPrice)
}
