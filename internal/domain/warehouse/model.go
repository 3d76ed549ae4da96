// Package warehouse provides the stock-receipt domain: products received into
// warehouses against customer orders.
package warehouse

import (
	"context"
	"errors"
	"time"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/types"
)

// ErrIdentityMissing is returned when an insert completed but the database
// produced no generated key. It is distinct from any not-found result.
var ErrIdentityMissing = errors.New("insert returned no identity value")

// ErrReceiptRejected is returned when the AddProductToWarehouse routine
// refuses a receipt. The wrapping error carries the routine's message.
var ErrReceiptRejected = errors.New("receipt rejected")

// Product is a row of the Product table.
type Product struct {
	ID          int     `db:"idproduct" json:"idProduct"`
	Name        string  `db:"name" json:"name"`
	Description string  `db:"description" json:"description"`
	Price       float64 `db:"price" json:"price"`
}

// Warehouse is a row of the Warehouse table.
type Warehouse struct {
	ID      int    `db:"idwarehouse" json:"idWarehouse"`
	Name    string `db:"name" json:"name"`
	Address string `db:"address" json:"address"`
}

// Order is a purchase order waiting to be received.
// FulfilledAt stays nil until the goods arrive.
type Order struct {
	ID          int        `db:"idorder" json:"idOrder"`
	ProductID   int        `db:"idproduct" json:"idProduct"`
	Amount      int        `db:"amount" json:"amount"`
	CreatedAt   time.Time  `db:"createdat" json:"createdAt"`
	FulfilledAt *time.Time `db:"fulfilledat" json:"fulfilledAt,omitempty"`
}

// IsFulfilled reports whether the order has been received.
func (o *Order) IsFulfilled() bool {
	return o.FulfilledAt != nil
}

// StockReceipt is a row of the Product_Warehouse join table. Rows are only
// ever inserted.
type StockReceipt struct {
	ID          int         `db:"idproductwarehouse" json:"idProductWarehouse"`
	WarehouseID int         `db:"idwarehouse" json:"idWarehouse"`
	ProductID   int         `db:"idproduct" json:"idProduct"`
	OrderID     int         `db:"idorder" json:"idOrder"`
	Amount      int         `db:"amount" json:"amount"`
	Price       types.Money `db:"price" json:"price"`
	CreatedAt   time.Time   `db:"createdat" json:"createdAt"`
}

// ReceiptRequest describes goods arriving at a warehouse. CreatedAt is the
// caller-supplied receipt time used to match the order.
type ReceiptRequest struct {
	WarehouseID int
	ProductID   int
	Amount      int
	CreatedAt   time.Time
}

// Validate checks the request shape. Existence checks are done by Service.
func (r ReceiptRequest) Validate(_ context.Context) error {
	if r.ProductID <= 0 {
		return apperror.NewValidation("product id must be positive").
			WithDetail("field", "idProduct")
	}
	if r.WarehouseID <= 0 {
		return apperror.NewValidation("warehouse id must be positive").
			WithDetail("field", "idWarehouse")
	}
	if r.Amount <= 0 {
		return apperror.NewValidation("amount must be greater than zero").
			WithDetail("field", "amount").
			WithDetail("value", r.Amount)
	}
	if r.CreatedAt.IsZero() {
		return apperror.NewValidation("createdAt is required").
			WithDetail("field", "createdAt")
	}
	return nil
}
