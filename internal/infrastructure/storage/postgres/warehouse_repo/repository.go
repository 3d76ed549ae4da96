// Package warehouse_repo provides the PostgreSQL implementation of the
// stock-receipt repository.
//
// Every operation runs on a connection scoped to the call: the transaction
// carried by the context when there is one, otherwise a pooled connection
// acquired for that statement and released before the method returns.
package warehouse_repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"stockflow/internal/core/tx"
	"stockflow/internal/core/types"
	"stockflow/internal/domain/warehouse"
	"stockflow/internal/infrastructure/storage/postgres"
	"stockflow/pkg/logger"
)

var tracer = otel.Tracer("stockflow/warehouse_repo")

// Table names. Order is a reserved word and must stay quoted.
const (
	tableProduct   = "Product"
	tableWarehouse = "Warehouse"
	tableOrder     = `"Order"`
	tableReceipt   = "Product_Warehouse"
)

// raiseException is the SQLSTATE of a plain RAISE EXCEPTION in PL/pgSQL.
const raiseException = "P0001"

// DB is what the repository needs from the storage layer.
// *postgres.TxManager satisfies it.
type DB interface {
	tx.Manager
	WithQuerier(ctx context.Context, fn func(q postgres.Querier) error) error
}

// Options tunes repository behavior.
type Options struct {
	// AtomicInsert runs the order lookup, price lookup and insert of
	// InsertStockReceipt in a single transaction.
	AtomicInsert bool

	// Clock supplies FulfilledAt and receipt CreatedAt values. Defaults to time.Now.
	Clock func() time.Time
}

// Repository implements warehouse.Repository. It holds no mutable state and
// is safe for concurrent use.
type Repository struct {
	db   DB
	opts Options
}

var _ warehouse.Repository = (*Repository)(nil)

// New creates a new warehouse repository.
func New(db DB, opts Options) *Repository {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Repository{db: db, opts: opts}
}

// Builder returns a new squirrel builder with PostgreSQL placeholder format.
func (r *Repository) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// --- Existence checks ---

// ProductExists reports whether a Product row with the id exists.
func (r *Repository) ProductExists(ctx context.Context, id int) (found bool, err error) {
	ctx, span := startSpan(ctx, "ProductExists", attribute.Int("product.id", id))
	defer func() { endSpan(span, err) }()

	q := r.Builder().
		Select("1").
		From(tableProduct).
		Where(squirrel.Eq{"IdProduct": id})

	return r.exists(ctx, q)
}

// WarehouseExists reports whether a Warehouse row with the id exists.
func (r *Repository) WarehouseExists(ctx context.Context, id int) (found bool, err error) {
	ctx, span := startSpan(ctx, "WarehouseExists", attribute.Int("warehouse.id", id))
	defer func() { endSpan(span, err) }()

	q := r.Builder().
		Select("1").
		From(tableWarehouse).
		Where(squirrel.Eq{"IdWarehouse": id})

	return r.exists(ctx, q)
}

// OrderExists reports whether an order for productID/amount was created
// strictly before the given time.
func (r *Repository) OrderExists(ctx context.Context, productID, amount int, before time.Time) (found bool, err error) {
	ctx, span := startSpan(ctx, "OrderExists", attribute.Int("product.id", productID))
	defer func() { endSpan(span, err) }()

	q := r.Builder().
		Select("1").
		From(tableOrder).
		Where(squirrel.Eq{"Amount": amount}).
		Where(squirrel.Eq{"IdProduct": productID}).
		Where(squirrel.Lt{"CreatedAt": before})

	return r.exists(ctx, q)
}

// OrderFulfilled reports whether a stock receipt already references an order
// matching productID/amount created strictly before the given time.
func (r *Repository) OrderFulfilled(ctx context.Context, productID, amount int, before time.Time) (found bool, err error) {
	ctx, span := startSpan(ctx, "OrderFulfilled", attribute.Int("product.id", productID))
	defer func() { endSpan(span, err) }()

	q := r.Builder().
		Select("1").
		From(tableReceipt+" pw").
		Join(tableOrder+" o ON pw.IdOrder = o.IdOrder").
		Where(squirrel.Eq{"o.Amount": amount}).
		Where(squirrel.Eq{"o.IdProduct": productID}).
		Where(squirrel.Lt{"o.CreatedAt": before})

	return r.exists(ctx, q)
}

// exists runs q limited to one row and reports whether it produced any.
func (r *Repository) exists(ctx context.Context, q squirrel.SelectBuilder) (bool, error) {
	sql, args, err := q.Limit(1).ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var found bool
	err = r.db.WithQuerier(ctx, func(qr postgres.Querier) error {
		var one int
		err := qr.QueryRow(ctx, sql, args...).Scan(&one)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("query existence: %w", err)
	}
	return found, nil
}

// --- Writes ---

// FulfillOrder stamps FulfilledAt on every order for productID/amount whose
// CreatedAt equals createdAt exactly. Matching no row is not an error.
//
// The equality match differs from the strict-before match used by the
// lookups. Both are kept as they are; see warehouse.Repository.
func (r *Repository) FulfillOrder(ctx context.Context, productID, amount int, createdAt time.Time) (err error) {
	ctx, span := startSpan(ctx, "FulfillOrder", attribute.Int("product.id", productID))
	defer func() { endSpan(span, err) }()

	q := r.Builder().
		Update(tableOrder).
		Set("FulfilledAt", r.opts.Clock()).
		Where(squirrel.Eq{"IdProduct": productID}).
		Where(squirrel.Eq{"Amount": amount}).
		Where(squirrel.Eq{"CreatedAt": createdAt})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	err = r.db.WithQuerier(ctx, func(qr postgres.Querier) error {
		tag, err := qr.Exec(ctx, sql, args...)
		if err != nil {
			return err
		}
		logger.Debug(ctx, "orders fulfilled",
			"product_id", productID,
			"amount", amount,
			"rows", tag.RowsAffected(),
		)
		return nil
	})
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	return nil
}

// InsertStockReceipt resolves the order id and current product price, then
// stores a receipt priced at amount × price and returns its generated id.
// Missing order or product resolve to 0 as in ResolveOrderID and GetProductPrice.
func (r *Repository) InsertStockReceipt(ctx context.Context, req warehouse.ReceiptRequest) (id int, err error) {
	ctx, span := startSpan(ctx, "InsertStockReceipt",
		attribute.Int("warehouse.id", req.WarehouseID),
		attribute.Int("product.id", req.ProductID),
		attribute.Bool("atomic", r.opts.AtomicInsert),
	)
	defer func() { endSpan(span, err) }()

	if !r.opts.AtomicInsert {
		return r.insertStockReceipt(ctx, req)
	}

	err = r.db.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		id, err = r.insertStockReceipt(ctx, req)
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *Repository) insertStockReceipt(ctx context.Context, req warehouse.ReceiptRequest) (int, error) {
	orderID, err := r.ResolveOrderID(ctx, req.ProductID, req.Amount, req.CreatedAt)
	if err != nil {
		return 0, err
	}

	price, err := r.GetProductPrice(ctx, req.ProductID)
	if err != nil {
		return 0, err
	}

	q := r.Builder().
		Insert(tableReceipt).
		Columns("IdWarehouse", "IdProduct", "IdOrder", "Amount", "Price", "CreatedAt").
		Values(req.WarehouseID, req.ProductID, orderID, req.Amount, types.LineTotal(req.Amount, price), r.opts.Clock()).
		Suffix("RETURNING IdProductWarehouse")

	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert: %w", err)
	}

	var id *int
	err = r.db.WithQuerier(ctx, func(qr postgres.Querier) error {
		return qr.QueryRow(ctx, sql, args...).Scan(&id)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, warehouse.ErrIdentityMissing
	}
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", tableReceipt, err)
	}
	if id == nil {
		return 0, warehouse.ErrIdentityMissing
	}

	logger.Debug(ctx, "stock receipt inserted",
		"receipt_id", *id,
		"order_id", orderID,
		"price", price,
	)
	return *id, nil
}

// --- Lookups ---

// ResolveOrderID returns the id of an order for productID/amount created
// strictly before the given time, or 0 when there is none.
func (r *Repository) ResolveOrderID(ctx context.Context, productID, amount int, before time.Time) (int, error) {
	id, _, err := r.FindOrderID(ctx, productID, amount, before)
	return id, err
}

// FindOrderID is ResolveOrderID with explicit absence. When several orders
// match, the lowest id wins.
func (r *Repository) FindOrderID(ctx context.Context, productID, amount int, before time.Time) (id int, found bool, err error) {
	ctx, span := startSpan(ctx, "FindOrderID", attribute.Int("product.id", productID))
	defer func() { endSpan(span, err) }()

	q := r.Builder().
		Select("IdOrder").
		From(tableOrder).
		Where(squirrel.Eq{"Amount": amount}).
		Where(squirrel.Eq{"IdProduct": productID}).
		Where(squirrel.Lt{"CreatedAt": before}).
		OrderBy("IdOrder").
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return 0, false, fmt.Errorf("build query: %w", err)
	}

	var orderID *int
	err = r.db.WithQuerier(ctx, func(qr postgres.Querier) error {
		return qr.QueryRow(ctx, sql, args...).Scan(&orderID)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("resolve order id: %w", err)
	}
	if orderID == nil {
		return 0, false, nil
	}
	return *orderID, true, nil
}

// GetProductPrice returns the product price, or 0 when the product does not
// exist or has no price.
func (r *Repository) GetProductPrice(ctx context.Context, id int) (float64, error) {
	price, _, err := r.FindProductPrice(ctx, id)
	return price, err
}

// FindProductPrice is GetProductPrice with explicit absence.
// A NULL price counts as absent.
func (r *Repository) FindProductPrice(ctx context.Context, id int) (price float64, found bool, err error) {
	ctx, span := startSpan(ctx, "FindProductPrice", attribute.Int("product.id", id))
	defer func() { endSpan(span, err) }()

	q := r.Builder().
		Select("Price").
		From(tableProduct).
		Where(squirrel.Eq{"IdProduct": id}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return 0, false, fmt.Errorf("build query: %w", err)
	}

	var value *float64
	err = r.db.WithQuerier(ctx, func(qr postgres.Querier) error {
		return qr.QueryRow(ctx, sql, args...).Scan(&value)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get product price: %w", err)
	}
	if value == nil {
		return 0, false, nil
	}
	return *value, true, nil
}

// GetOrder returns the order with the given id, or nil when it does not exist.
func (r *Repository) GetOrder(ctx context.Context, id int) (order *warehouse.Order, err error) {
	ctx, span := startSpan(ctx, "GetOrder", attribute.Int("order.id", id))
	defer func() { endSpan(span, err) }()

	q := r.Builder().
		Select("IdOrder", "IdProduct", "Amount", "CreatedAt", "FulfilledAt").
		From(tableOrder).
		Where(squirrel.Eq{"IdOrder": id})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var o warehouse.Order
	err = r.db.WithQuerier(ctx, func(qr postgres.Querier) error {
		return pgxscan.Get(ctx, qr, &o, sql, args...)
	})
	if pgxscan.NotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &o, nil
}

// ListStockReceipts returns the receipts stored for a warehouse, oldest first.
func (r *Repository) ListStockReceipts(ctx context.Context, warehouseID int) (receipts []warehouse.StockReceipt, err error) {
	ctx, span := startSpan(ctx, "ListStockReceipts", attribute.Int("warehouse.id", warehouseID))
	defer func() { endSpan(span, err) }()

	q := r.Builder().
		Select("IdProductWarehouse", "IdWarehouse", "IdProduct", "IdOrder", "Amount", "Price", "CreatedAt").
		From(tableReceipt).
		Where(squirrel.Eq{"IdWarehouse": warehouseID}).
		OrderBy("CreatedAt", "IdProductWarehouse")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	err = r.db.WithQuerier(ctx, func(qr postgres.Querier) error {
		return pgxscan.Select(ctx, qr, &receipts, sql, args...)
	})
	if err != nil {
		return nil, fmt.Errorf("list stock receipts: %w", err)
	}
	if receipts == nil {
		receipts = []warehouse.StockReceipt{}
	}
	return receipts, nil
}

// --- Stored routine ---

// RunAddProductToWarehouse delegates the whole receipt to the
// AddProductToWarehouse database routine and returns its scalar result,
// or 0 when the routine returns nothing. Exceptions raised by the routine
// are reported as warehouse.ErrReceiptRejected.
func (r *Repository) RunAddProductToWarehouse(ctx context.Context, req warehouse.ReceiptRequest) (id int, err error) {
	ctx, span := startSpan(ctx, "RunAddProductToWarehouse",
		attribute.Int("warehouse.id", req.WarehouseID),
		attribute.Int("product.id", req.ProductID),
	)
	defer func() { endSpan(span, err) }()

	q := r.Builder().
		Select().
		Column(squirrel.Expr("AddProductToWarehouse(?, ?, ?, ?)",
			req.ProductID, req.WarehouseID, req.Amount, req.CreatedAt))

	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var result *int
	err = r.db.WithQuerier(ctx, func(qr postgres.Querier) error {
		return qr.QueryRow(ctx, sql, args...).Scan(&result)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == raiseException {
		return 0, fmt.Errorf("%w: %w", warehouse.ErrReceiptRejected, err)
	}
	if err != nil {
		return 0, fmt.Errorf("call AddProductToWarehouse: %w", err)
	}
	if result == nil {
		return 0, nil
	}
	return *result, nil
}

func startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, "WarehouseRepo."+op, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
