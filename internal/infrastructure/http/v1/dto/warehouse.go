package dto

import (
	"time"

	"stockflow/internal/core/types"
	"stockflow/internal/domain/warehouse"
)

// CreateReceiptRequest is the body of POST /warehouses/receipts.
type CreateReceiptRequest struct {
	WarehouseID int       `json:"idWarehouse" binding:"required"`
	ProductID   int       `json:"idProduct" binding:"required"`
	Amount      int       `json:"amount" binding:"required"`
	CreatedAt   time.Time `json:"createdAt" binding:"required"`
}

// ToDomain converts the body into a domain request.
func (r CreateReceiptRequest) ToDomain() warehouse.ReceiptRequest {
	return warehouse.ReceiptRequest{
		WarehouseID: r.WarehouseID,
		ProductID:   r.ProductID,
		Amount:      r.Amount,
		CreatedAt:   r.CreatedAt,
	}
}

// ReceiptResponse is a stored stock receipt.
type ReceiptResponse struct {
	ID          int         `json:"idProductWarehouse"`
	WarehouseID int         `json:"idWarehouse"`
	ProductID   int         `json:"idProduct"`
	OrderID     int         `json:"idOrder"`
	Amount      int         `json:"amount"`
	Price       types.Money `json:"price"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// FromReceipt converts a domain receipt.
func FromReceipt(r warehouse.StockReceipt) ReceiptResponse {
	return ReceiptResponse{
		ID:          r.ID,
		WarehouseID: r.WarehouseID,
		ProductID:   r.ProductID,
		OrderID:     r.OrderID,
		Amount:      r.Amount,
		Price:       r.Price,
		CreatedAt:   r.CreatedAt,
	}
}

// FromReceipts converts a slice of domain receipts.
func FromReceipts(receipts []warehouse.StockReceipt) []ReceiptResponse {
	out := make([]ReceiptResponse, 0, len(receipts))
	for _, r := range receipts {
		out = append(out, FromReceipt(r))
	}
	return out
}

// PriceResponse is the body of GET /products/:id/price.
type PriceResponse struct {
	ProductID int     `json:"idProduct"`
	Price     float64 `json:"price"`
}
