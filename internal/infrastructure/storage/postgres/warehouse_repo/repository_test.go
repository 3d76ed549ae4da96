package warehouse_repo

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockflow/internal/core/types"
	"stockflow/internal/domain/warehouse"
	"stockflow/internal/infrastructure/storage/postgres"
)

// Mock objects

type mockRow struct {
	vals []any // nil entry means SQL NULL
	err  error
}

func row(vals ...any) *mockRow { return &mockRow{vals: vals} }

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	for i, d := range dest {
		var v any
		if i < len(m.vals) {
			v = m.vals[i]
		}
		switch p := d.(type) {
		case *int:
			*p = v.(int)
		case **int:
			if v == nil {
				*p = nil
				continue
			}
			n := v.(int)
			*p = &n
		case **float64:
			if v == nil {
				*p = nil
				continue
			}
			f := v.(float64)
			*p = &f
		}
	}
	return nil
}

type query struct {
	sql  string
	args []any
	inTx bool
}

type mockQuerier struct {
	mu      sync.Mutex
	rows    []*mockRow // consumed in order by QueryRow
	respond func(sql string, args []any) *mockRow
	execErr error
	queries []query
	inTx    bool
}

func (m *mockQuerier) record(sql string, args []any) {
	m.queries = append(m.queries, query{sql: sql, args: args, inTx: m.inTx})
}

func (m *mockQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(sql, args)

	if m.respond != nil {
		return m.respond(sql, args)
	}
	if len(m.rows) == 0 {
		return &mockRow{err: pgx.ErrNoRows}
	}
	r := m.rows[0]
	m.rows = m.rows[1:]
	return r
}

func (m *mockQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(sql, args)
	if m.execErr != nil {
		return pgconn.CommandTag{}, m.execErr
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (m *mockQuerier) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(sql, args)
	return nil, errors.New("mockQuerier: Query is not scripted")
}

// fakeDB hands out the mock querier and counts acquisitions and transactions.
type fakeDB struct {
	q            *mockQuerier
	mu           sync.Mutex
	acquisitions int
	txRuns       int
}

func (d *fakeDB) WithQuerier(_ context.Context, fn func(q postgres.Querier) error) error {
	d.mu.Lock()
	d.acquisitions++
	d.mu.Unlock()
	return fn(d.q)
}

func (d *fakeDB) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	d.txRuns++
	d.q.inTx = true
	defer func() { d.q.inTx = false }()
	return fn(ctx)
}

var (
	receiptTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	fixedNow    = time.Date(2024, 3, 2, 9, 30, 0, 0, time.UTC)
)

func newTestRepo(atomic bool, rows ...*mockRow) (*Repository, *fakeDB) {
	db := &fakeDB{q: &mockQuerier{rows: rows}}
	repo := New(db, Options{
		AtomicInsert: atomic,
		Clock:        func() time.Time { return fixedNow },
	})
	return repo, db
}

func receiptRequest() warehouse.ReceiptRequest {
	return warehouse.ReceiptRequest{
		WarehouseID: 1,
		ProductID:   5,
		Amount:      3,
		CreatedAt:   receiptTime,
	}
}

func TestStatements(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		call     func(r *Repository) error
		wantSQL  string
		wantArgs []any
	}{
		{
			name: "ProductExists",
			call: func(r *Repository) error {
				_, err := r.ProductExists(ctx, 5)
				return err
			},
			wantSQL:  "SELECT 1 FROM Product WHERE IdProduct = $1 LIMIT 1",
			wantArgs: []any{5},
		},
		{
			name: "WarehouseExists",
			call: func(r *Repository) error {
				_, err := r.WarehouseExists(ctx, 1)
				return err
			},
			wantSQL:  "SELECT 1 FROM Warehouse WHERE IdWarehouse = $1 LIMIT 1",
			wantArgs: []any{1},
		},
		{
			name: "OrderExists",
			call: func(r *Repository) error {
				_, err := r.OrderExists(ctx, 5, 2, receiptTime)
				return err
			},
			wantSQL:  `SELECT 1 FROM "Order" WHERE Amount = $1 AND IdProduct = $2 AND CreatedAt < $3 LIMIT 1`,
			wantArgs: []any{2, 5, receiptTime},
		},
		{
			name: "OrderFulfilled",
			call: func(r *Repository) error {
				_, err := r.OrderFulfilled(ctx, 5, 2, receiptTime)
				return err
			},
			wantSQL: `SELECT 1 FROM Product_Warehouse pw JOIN "Order" o ON pw.IdOrder = o.IdOrder ` +
				`WHERE o.Amount = $1 AND o.IdProduct = $2 AND o.CreatedAt < $3 LIMIT 1`,
			wantArgs: []any{2, 5, receiptTime},
		},
		{
			name: "FulfillOrder",
			call: func(r *Repository) error {
				return r.FulfillOrder(ctx, 5, 2, receiptTime)
			},
			wantSQL:  `UPDATE "Order" SET FulfilledAt = $1 WHERE IdProduct = $2 AND Amount = $3 AND CreatedAt = $4`,
			wantArgs: []any{fixedNow, 5, 2, receiptTime},
		},
		{
			name: "ResolveOrderID",
			call: func(r *Repository) error {
				_, err := r.ResolveOrderID(ctx, 5, 2, receiptTime)
				return err
			},
			wantSQL:  `SELECT IdOrder FROM "Order" WHERE Amount = $1 AND IdProduct = $2 AND CreatedAt < $3 ORDER BY IdOrder LIMIT 1`,
			wantArgs: []any{2, 5, receiptTime},
		},
		{
			name: "GetProductPrice",
			call: func(r *Repository) error {
				_, err := r.GetProductPrice(ctx, 5)
				return err
			},
			wantSQL:  "SELECT Price FROM Product WHERE IdProduct = $1 LIMIT 1",
			wantArgs: []any{5},
		},
		{
			name: "RunAddProductToWarehouse",
			call: func(r *Repository) error {
				_, err := r.RunAddProductToWarehouse(ctx, receiptRequest())
				return err
			},
			wantSQL:  "SELECT AddProductToWarehouse($1, $2, $3, $4)",
			wantArgs: []any{5, 1, 3, receiptTime},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, db := newTestRepo(false)

			require.NoError(t, tt.call(repo))
			require.Len(t, db.q.queries, 1)
			assert.Equal(t, tt.wantSQL, db.q.queries[0].sql)
			assert.Equal(t, tt.wantArgs, db.q.queries[0].args)

			// One scoped connection per statement.
			assert.Equal(t, 1, db.acquisitions)
		})
	}
}

// The lookups match CreatedAt strictly before the receipt time while the
// fulfillment update matches it exactly. Both behaviors are intentional
// and must not drift toward each other.
func TestOrderTimestampMatching(t *testing.T) {
	ctx := context.Background()
	repo, db := newTestRepo(false)

	_, err := repo.OrderExists(ctx, 5, 2, receiptTime)
	require.NoError(t, err)
	require.NoError(t, repo.FulfillOrder(ctx, 5, 2, receiptTime))

	require.Len(t, db.q.queries, 2)
	assert.Contains(t, db.q.queries[0].sql, "CreatedAt < $3")
	assert.NotContains(t, db.q.queries[0].sql, "CreatedAt = ")
	assert.Contains(t, db.q.queries[1].sql, "CreatedAt = $4")
	assert.NotContains(t, db.q.queries[1].sql, "CreatedAt < ")
}

func TestExistenceChecks(t *testing.T) {
	ctx := context.Background()

	repo, _ := newTestRepo(false, row(1))
	found, err := repo.ProductExists(ctx, 5)
	require.NoError(t, err)
	assert.True(t, found)

	repo, _ = newTestRepo(false)
	found, err = repo.WarehouseExists(ctx, 99)
	require.NoError(t, err)
	assert.False(t, found)

	boom := errors.New("connection reset")
	repo, _ = newTestRepo(false, &mockRow{err: boom})
	_, err = repo.OrderExists(ctx, 5, 2, receiptTime)
	assert.ErrorIs(t, err, boom)
}

func TestFulfillOrder_ExecError(t *testing.T) {
	boom := errors.New("deadlock detected")
	repo, db := newTestRepo(false)
	db.q.execErr = boom

	err := repo.FulfillOrder(context.Background(), 5, 2, receiptTime)
	assert.ErrorIs(t, err, boom)
}

func TestOrderLookups(t *testing.T) {
	ctx := context.Background()

	repo, _ := newTestRepo(false, row(7))
	id, err := repo.ResolveOrderID(ctx, 5, 2, receiptTime)
	require.NoError(t, err)
	assert.Equal(t, 7, id)

	repo, _ = newTestRepo(false)
	id, err = repo.ResolveOrderID(ctx, 5, 2, receiptTime)
	require.NoError(t, err)
	assert.Equal(t, 0, id, "no order resolves to 0, not an error")

	repo, _ = newTestRepo(false)
	id, found, err := repo.FindOrderID(ctx, 5, 2, receiptTime)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 0, id)

	repo, _ = newTestRepo(false, row(7))
	id, found, err = repo.FindOrderID(ctx, 5, 2, receiptTime)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 7, id)
}

func TestPriceLookups(t *testing.T) {
	ctx := context.Background()

	repo, _ := newTestRepo(false, row(12.5))
	price, err := repo.GetProductPrice(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 12.5, price)

	repo, _ = newTestRepo(false)
	price, err = repo.GetProductPrice(ctx, 404)
	require.NoError(t, err)
	assert.Equal(t, 0.0, price, "absent product reads as a zero price")

	repo, _ = newTestRepo(false, row(nil))
	price, found, err := repo.FindProductPrice(ctx, 5)
	require.NoError(t, err)
	assert.False(t, found, "NULL price counts as absent")
	assert.Equal(t, 0.0, price)

	repo, _ = newTestRepo(false)
	_, found, err = repo.FindProductPrice(ctx, 404)
	require.NoError(t, err)
	assert.False(t, found)

	repo, _ = newTestRepo(false, row(0.0))
	price, found, err = repo.FindProductPrice(ctx, 5)
	require.NoError(t, err)
	assert.True(t, found, "a stored zero price is still a price")
	assert.Equal(t, 0.0, price)
}

func TestInsertStockReceipt(t *testing.T) {
	repo, db := newTestRepo(false, row(7), row(10.0), row(42))

	id, err := repo.InsertStockReceipt(context.Background(), receiptRequest())
	require.NoError(t, err)
	assert.Equal(t, 42, id)

	require.Len(t, db.q.queries, 3)
	insert := db.q.queries[2]
	assert.Equal(t,
		"INSERT INTO Product_Warehouse (IdWarehouse,IdProduct,IdOrder,Amount,Price,CreatedAt) "+
			"VALUES ($1,$2,$3,$4,$5,$6) RETURNING IdProductWarehouse",
		insert.sql)
	require.Len(t, insert.args, 6)
	assert.Equal(t, []any{1, 5, 7, 3}, insert.args[:4])

	price, ok := insert.args[4].(types.Money)
	require.True(t, ok, "price is bound as decimal")
	assert.True(t, decimal.NewFromInt(30).Equal(price), "got %s", price)

	assert.Equal(t, fixedNow, insert.args[5], "receipt time is the current clock, not the request time")
}

func TestInsertStockReceipt_MissingOrderAndProduct(t *testing.T) {
	// Order and price lookups find nothing; the insert still runs with sentinels.
	db := &fakeDB{q: &mockQuerier{}}
	db.q.respond = func(sql string, _ []any) *mockRow {
		if strings.HasPrefix(sql, "INSERT") {
			return row(43)
		}
		return &mockRow{err: pgx.ErrNoRows}
	}
	repo := New(db, Options{Clock: func() time.Time { return fixedNow }})

	id, err := repo.InsertStockReceipt(context.Background(), receiptRequest())
	require.NoError(t, err)
	assert.Equal(t, 43, id)

	insert := db.q.queries[2]
	assert.Equal(t, 0, insert.args[2])
	assert.True(t, decimal.Zero.Equal(insert.args[4].(types.Money)))
}

func TestInsertStockReceipt_Atomicity(t *testing.T) {
	t.Run("atomic", func(t *testing.T) {
		repo, db := newTestRepo(true, row(7), row(10.0), row(42))

		_, err := repo.InsertStockReceipt(context.Background(), receiptRequest())
		require.NoError(t, err)

		assert.Equal(t, 1, db.txRuns)
		require.Len(t, db.q.queries, 3)
		for _, q := range db.q.queries {
			assert.True(t, q.inTx, "statement ran outside the transaction: %s", q.sql)
		}
	})

	t.Run("independent round trips", func(t *testing.T) {
		repo, db := newTestRepo(false, row(7), row(10.0), row(42))

		_, err := repo.InsertStockReceipt(context.Background(), receiptRequest())
		require.NoError(t, err)

		assert.Equal(t, 0, db.txRuns)
		assert.Equal(t, 3, db.acquisitions)
		for _, q := range db.q.queries {
			assert.False(t, q.inTx)
		}
	})
}

func TestInsertStockReceipt_IdentityMissing(t *testing.T) {
	ctx := context.Background()

	repo, _ := newTestRepo(false, row(7), row(10.0), row(nil))
	_, err := repo.InsertStockReceipt(ctx, receiptRequest())
	assert.ErrorIs(t, err, warehouse.ErrIdentityMissing)

	repo, _ = newTestRepo(false, row(7), row(10.0))
	_, err = repo.InsertStockReceipt(ctx, receiptRequest())
	assert.ErrorIs(t, err, warehouse.ErrIdentityMissing)
}

func TestInsertStockReceipt_LookupError(t *testing.T) {
	boom := errors.New("connection reset")
	repo, db := newTestRepo(false, &mockRow{err: boom})

	_, err := repo.InsertStockReceipt(context.Background(), receiptRequest())
	assert.ErrorIs(t, err, boom)
	assert.Len(t, db.q.queries, 1, "insert must not run after a failed lookup")
}

func TestRunAddProductToWarehouse(t *testing.T) {
	ctx := context.Background()

	repo, _ := newTestRepo(false, row(9))
	id, err := repo.RunAddProductToWarehouse(ctx, receiptRequest())
	require.NoError(t, err)
	assert.Equal(t, 9, id)

	repo, _ = newTestRepo(false, row(nil))
	id, err = repo.RunAddProductToWarehouse(ctx, receiptRequest())
	require.NoError(t, err)
	assert.Equal(t, 0, id, "NULL result reads as 0")

	boom := errors.New("connection reset")
	repo, _ = newTestRepo(false, &mockRow{err: boom})
	_, err = repo.RunAddProductToWarehouse(ctx, receiptRequest())
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, warehouse.ErrReceiptRejected)

	raised := &pgconn.PgError{Code: "P0001", Message: "no order to fulfill"}
	repo, _ = newTestRepo(false, &mockRow{err: raised})
	_, err = repo.RunAddProductToWarehouse(ctx, receiptRequest())
	assert.ErrorIs(t, err, warehouse.ErrReceiptRejected)
	assert.Contains(t, err.Error(), "no order to fulfill")

	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr, "database error stays reachable")
	assert.Same(t, raised, pgErr)
}

func TestConcurrentCallsDoNotShareState(t *testing.T) {
	db := &fakeDB{q: &mockQuerier{}}
	// Even product ids exist, odd ones do not.
	db.q.respond = func(_ string, args []any) *mockRow {
		if args[0].(int)%2 == 0 {
			return row(1)
		}
		return &mockRow{err: pgx.ErrNoRows}
	}
	repo := New(db, Options{})

	const n = 64
	var wg sync.WaitGroup
	results := make([]bool, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = repo.ProductExists(context.Background(), i+1)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, (i+1)%2 == 0, results[i], "product %d", i+1)
	}
	assert.Equal(t, n, db.acquisitions)
}
