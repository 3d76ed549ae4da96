// Package main seeds a development database with products, warehouses and
// open orders.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Masterminds/squirrel"

	"stockflow/internal/config"
	"stockflow/internal/infrastructure/storage/postgres"
	"stockflow/pkg/logger"
)

type demoProduct struct {
	name        string
	description string
	price       float64
}

var demoProducts = []demoProduct{
	{"Abacavir", "Antiretroviral, 300 mg", 25.50},
	{"Acyclovir", "Antiviral, 400 mg", 45.00},
	{"Allopurinol", "Xanthine oxidase inhibitor, 100 mg", 10.00},
	{"Ibuprofen", "NSAID, 200 mg", 3.20},
}

var demoWarehouses = [][]any{
	{"Warsaw", "Kwiatowa 1"},
	{"Gdansk", "Morska 12"},
}

func main() {
	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := logger.WithLogger(context.Background(), log)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalw("failed to load config", "error", err)
	}
	dsn, err := cfg.ConnectionString(config.DefaultConnection)
	if err != nil {
		log.Fatalw("database not configured", "error", err)
	}

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dsn))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	var existing int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM Product`).Scan(&existing); err != nil {
		log.Fatalw("failed to count products", "error", err)
	}
	if existing > 0 {
		log.Infow("database already seeded, nothing to do", "products", existing)
		return
	}

	txManager := postgres.NewTxManager(pool)
	err = txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return seedDemoData(ctx, txManager, log)
	})
	if err != nil {
		log.Fatalw("failed to seed demo data", "error", err)
	}

	log.Info("seeding completed successfully")
}

func seedDemoData(ctx context.Context, txManager *postgres.TxManager, log *logger.Logger) error {
	inserter := postgres.NewBatchInserter(txManager)

	productRows := make([][]any, 0, len(demoProducts))
	for _, p := range demoProducts {
		productRows = append(productRows, []any{p.name, p.description, p.price})
	}
	n, err := inserter.CopyFromSlice(ctx, "product", []string{"name", "description", "price"}, productRows)
	if err != nil {
		return err
	}
	log.Infow("products seeded", "count", n)

	n, err = inserter.CopyFromSlice(ctx, "warehouse", []string{"name", "address"}, demoWarehouses)
	if err != nil {
		return err
	}
	log.Infow("warehouses seeded", "count", n)

	productIDs, err := loadProductIDs(ctx, txManager)
	if err != nil {
		return err
	}

	// One open order per product, amounts 1..n, created over the last days.
	builder := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	now := time.Now().UTC().Truncate(time.Second)
	queries := make([]postgres.BatchQuery, 0, len(productIDs))
	for i, productID := range productIDs {
		sql, args, err := builder.
			Insert(`"Order"`).
			Columns("IdProduct", "Amount", "CreatedAt").
			Values(productID, i+1, now.Add(-time.Duration(i+1)*24*time.Hour)).
			ToSql()
		if err != nil {
			return fmt.Errorf("build order insert: %w", err)
		}
		queries = append(queries, postgres.BatchQuery{SQL: sql, Args: args})
	}

	if err := postgres.NewBatchExecutor(txManager).ExecuteBatch(ctx, queries); err != nil {
		return err
	}
	log.Infow("orders seeded", "count", len(queries))
	return nil
}

func loadProductIDs(ctx context.Context, txManager *postgres.TxManager) ([]int, error) {
	var ids []int
	err := txManager.WithQuerier(ctx, func(q postgres.Querier) error {
		rows, err := q.Query(ctx, `SELECT IdProduct FROM Product ORDER BY IdProduct`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var id int
			if err := rows.Scan(&id); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("load product ids: %w", err)
	}
	return ids, nil
}
