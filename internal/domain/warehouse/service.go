package warehouse

import (
	"context"
	"errors"
	"fmt"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/tx"
	"stockflow/pkg/logger"
)

// Service registers goods received into warehouses.
type Service struct {
	repo      Repository
	txManager tx.Manager // Optional. When nil every step runs on its own connection.
}

// NewService creates a new receipt service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		txManager: txManager,
	}
}

// RegisterReceipt validates the request against products, warehouses and
// open orders, marks the order fulfilled and records the receipt.
// It returns the id of the new Product_Warehouse row.
func (s *Service) RegisterReceipt(ctx context.Context, req ReceiptRequest) (int, error) {
	if err := req.Validate(ctx); err != nil {
		return 0, err
	}

	if err := s.checkReferences(ctx, req); err != nil {
		return 0, err
	}

	exists, err := s.repo.OrderExists(ctx, req.ProductID, req.Amount, req.CreatedAt)
	if err != nil {
		return 0, apperror.NewDatabase(err)
	}
	if !exists {
		return 0, apperror.NewBusinessRule(apperror.CodeOrderNotFound, "no matching order created before the receipt").
			WithDetail("idProduct", req.ProductID).
			WithDetail("amount", req.Amount)
	}

	fulfilled, err := s.repo.OrderFulfilled(ctx, req.ProductID, req.Amount, req.CreatedAt)
	if err != nil {
		return 0, apperror.NewDatabase(err)
	}
	if fulfilled {
		return 0, apperror.NewBusinessRule(apperror.CodeOrderAlreadyFulfilled, "order has already been fulfilled").
			WithDetail("idProduct", req.ProductID).
			WithDetail("amount", req.Amount)
	}

	var receiptID int
	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.repo.FulfillOrder(ctx, req.ProductID, req.Amount, req.CreatedAt); err != nil {
			return fmt.Errorf("fulfill order: %w", err)
		}
		id, err := s.repo.InsertStockReceipt(ctx, req)
		if err != nil {
			return fmt.Errorf("insert stock receipt: %w", err)
		}
		receiptID = id
		return nil
	})
	if err != nil {
		return 0, apperror.NewDatabase(err)
	}

	logger.Info(ctx, "stock receipt registered",
		"receipt_id", receiptID,
		"warehouse_id", req.WarehouseID,
		"product_id", req.ProductID,
		"amount", req.Amount,
	)
	return receiptID, nil
}

// RegisterReceiptViaProcedure hands the whole receipt to the
// AddProductToWarehouse database routine.
func (s *Service) RegisterReceiptViaProcedure(ctx context.Context, req ReceiptRequest) (int, error) {
	if err := req.Validate(ctx); err != nil {
		return 0, err
	}

	id, err := s.repo.RunAddProductToWarehouse(ctx, req)
	if errors.Is(err, ErrReceiptRejected) {
		return 0, apperror.NewBusinessRule(apperror.CodeBusinessRule, err.Error()).
			WithCause(err).
			WithDetail("idProduct", req.ProductID).
			WithDetail("idWarehouse", req.WarehouseID)
	}
	if err != nil {
		return 0, apperror.NewDatabase(err)
	}
	if id == 0 {
		return 0, apperror.NewBusinessRule(apperror.CodeBusinessRule, "procedure did not record a receipt").
			WithDetail("idProduct", req.ProductID).
			WithDetail("idWarehouse", req.WarehouseID)
	}

	logger.Info(ctx, "stock receipt registered by procedure",
		"receipt_id", id,
		"warehouse_id", req.WarehouseID,
		"product_id", req.ProductID,
	)
	return id, nil
}

// ProductPrice returns the price of a product, or a not-found error.
func (s *Service) ProductPrice(ctx context.Context, productID int) (float64, error) {
	price, ok, err := s.repo.FindProductPrice(ctx, productID)
	if err != nil {
		return 0, apperror.NewDatabase(err)
	}
	if !ok {
		return 0, apperror.NewEntityNotFound(apperror.CodeProductNotFound, "product", productID)
	}
	return price, nil
}

// ListReceipts returns the receipts recorded for a warehouse.
func (s *Service) ListReceipts(ctx context.Context, warehouseID int) ([]StockReceipt, error) {
	exists, err := s.repo.WarehouseExists(ctx, warehouseID)
	if err != nil {
		return nil, apperror.NewDatabase(err)
	}
	if !exists {
		return nil, apperror.NewEntityNotFound(apperror.CodeWarehouseNotFound, "warehouse", warehouseID)
	}

	receipts, err := s.repo.ListStockReceipts(ctx, warehouseID)
	if err != nil {
		return nil, apperror.NewDatabase(err)
	}
	return receipts, nil
}

func (s *Service) checkReferences(ctx context.Context, req ReceiptRequest) error {
	ok, err := s.repo.ProductExists(ctx, req.ProductID)
	if err != nil {
		return apperror.NewDatabase(err)
	}
	if !ok {
		return apperror.NewEntityNotFound(apperror.CodeProductNotFound, "product", req.ProductID)
	}

	ok, err = s.repo.WarehouseExists(ctx, req.WarehouseID)
	if err != nil {
		return apperror.NewDatabase(err)
	}
	if !ok {
		return apperror.NewEntityNotFound(apperror.CodeWarehouseNotFound, "warehouse", req.WarehouseID)
	}
	return nil
}

func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.txManager == nil {
		return fn(ctx)
	}
	return s.txManager.RunInTransaction(ctx, fn)
}
