package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"stockflow/internal/domain/warehouse"
	"stockflow/internal/infrastructure/http/v1/dto"
)

// ReceiptService is the domain surface used by WarehouseHandler.
// *warehouse.Service satisfies it.
type ReceiptService interface {
	RegisterReceipt(ctx context.Context, req warehouse.ReceiptRequest) (int, error)
	RegisterReceiptViaProcedure(ctx context.Context, req warehouse.ReceiptRequest) (int, error)
	ProductPrice(ctx context.Context, productID int) (float64, error)
	ListReceipts(ctx context.Context, warehouseID int) ([]warehouse.StockReceipt, error)
}

// WarehouseHandler handles stock receipt requests.
type WarehouseHandler struct {
	*BaseHandler
	service ReceiptService
}

// NewWarehouseHandler creates a new warehouse handler.
func NewWarehouseHandler(service ReceiptService) *WarehouseHandler {
	return &WarehouseHandler{
		BaseHandler: NewBaseHandler(),
		service:     service,
	}
}

// CreateReceipt registers goods received against an order.
// POST /api/v1/warehouses/receipts
func (h *WarehouseHandler) CreateReceipt(c *gin.Context) {
	var req dto.CreateReceiptRequest
	if !h.BindJSON(c, &req) {
		return
	}

	id, err := h.service.RegisterReceipt(c.Request.Context(), req.ToDomain())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, id)
}

// CreateReceiptViaProcedure registers a receipt through the database routine.
// POST /api/v1/warehouses/receipts/procedure
func (h *WarehouseHandler) CreateReceiptViaProcedure(c *gin.Context) {
	var req dto.CreateReceiptRequest
	if !h.BindJSON(c, &req) {
		return
	}

	id, err := h.service.RegisterReceiptViaProcedure(c.Request.Context(), req.ToDomain())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, id)
}

// ListReceipts returns the receipts of a warehouse.
// GET /api/v1/warehouses/:id/receipts
func (h *WarehouseHandler) ListReceipts(c *gin.Context) {
	warehouseID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	receipts, err := h.service.ListReceipts(c.Request.Context(), warehouseID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(dto.FromReceipts(receipts)))
}

// ProductPrice returns the current price of a product.
// GET /api/v1/products/:id/price
func (h *WarehouseHandler) ProductPrice(c *gin.Context) {
	productID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	price, err := h.service.ProductPrice(c.Request.Context(), productID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.PriceResponse{ProductID: productID, Price: price})
}
