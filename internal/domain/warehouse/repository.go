package warehouse

import (
	"context"
	"time"
)

// Repository is the data-access contract for stock receipts.
//
// Order lookups (OrderExists, OrderFulfilled, ResolveOrderID, FindOrderID)
// match CreatedAt strictly before the given time. FulfillOrder matches
// CreatedAt exactly. An order created exactly at the receipt time is therefore
// fulfilled by FulfillOrder but invisible to the lookups.
type Repository interface {
	// ProductExists reports whether a Product row with the id exists.
	ProductExists(ctx context.Context, id int) (bool, error)

	// WarehouseExists reports whether a Warehouse row with the id exists.
	WarehouseExists(ctx context.Context, id int) (bool, error)

	// OrderExists reports whether an order for productID/amount was created before the given time.
	OrderExists(ctx context.Context, productID, amount int, before time.Time) (bool, error)

	// OrderFulfilled reports whether a stock receipt already references such an order.
	OrderFulfilled(ctx context.Context, productID, amount int, before time.Time) (bool, error)

	// FulfillOrder stamps FulfilledAt on orders created exactly at createdAt.
	// Matching no row is not an error.
	FulfillOrder(ctx context.Context, productID, amount int, createdAt time.Time) error

	// InsertStockReceipt stores a receipt priced at amount × current product
	// price and returns its generated id.
	InsertStockReceipt(ctx context.Context, req ReceiptRequest) (int, error)

	// ResolveOrderID returns the matching order id, or 0 when none matches.
	ResolveOrderID(ctx context.Context, productID, amount int, before time.Time) (int, error)

	// GetProductPrice returns the product price, or 0 when the product is absent.
	GetProductPrice(ctx context.Context, id int) (float64, error)

	// RunAddProductToWarehouse delegates the whole receipt to the
	// AddProductToWarehouse database routine and returns its result, or 0.
	RunAddProductToWarehouse(ctx context.Context, req ReceiptRequest) (int, error)

	// FindOrderID is ResolveOrderID with explicit absence.
	FindOrderID(ctx context.Context, productID, amount int, before time.Time) (int, bool, error)

	// FindProductPrice is GetProductPrice with explicit absence.
	FindProductPrice(ctx context.Context, id int) (float64, bool, error)

	// GetOrder returns the order or nil when it does not exist.
	GetOrder(ctx context.Context, id int) (*Order, error)

	// ListStockReceipts returns the receipts of a warehouse, oldest first.
	ListStockReceipts(ctx context.Context, warehouseID int) ([]StockReceipt, error)
}
