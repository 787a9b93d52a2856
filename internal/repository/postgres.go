// Package repository содержит хранение состояния автомата в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/vending-machine/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	// ErrStateNotFound возвращается, если сохранённого состояния автомата ещё нет.
	ErrStateNotFound = errors.New("machine state not found")
	// ErrSaleExists возвращается при повторной записи продажи с тем же идентификатором.
	ErrSaleExists = errors.New("sale already recorded")
)

// PostgresRepository предоставляет доступ к хранилищу состояния автомата в PostgreSQL.
type PostgresRepository struct {
	pool   *pgxpool.Pool
	delays []time.Duration
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{
		pool:   pool,
		delays: []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second},
	}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// withRetry повторяет fn при временных ошибках: конфликтах сериализации,
// взаимных блокировках и обрывах соединения.
func withRetry(ctx context.Context, delays []time.Duration, fn func() error) error {
	var err error
	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		if !isRetryable(err) || i == len(delays) {
			break
		}

		timer := time.NewTimer(delays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}
	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// LoadState возвращает сохранённое содержимое резерва монет и остатки товаров.
func (r *PostgresRepository) LoadState(ctx context.Context) (map[model.Coin]int, map[model.ProductID]int, error) {
	coins := make(map[model.Coin]int)
	rows, err := r.pool.Query(ctx, `SELECT denomination, count FROM bank_coins`)
	if err != nil {
		return nil, nil, fmt.Errorf("select bank coins: %w", err)
	}
	for rows.Next() {
		var (
			denomination string
			count        int
		)
		if err := rows.Scan(&denomination, &count); err != nil {
			rows.Close()
			return nil, nil, fmt.Errorf("scan bank coin: %w", err)
		}
		coins[model.Coin(denomination)] = count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("rows error: %w", err)
	}

	stock := make(map[model.ProductID]int)
	rows, err = r.pool.Query(ctx, `SELECT product_id, stock FROM product_stock`)
	if err != nil {
		return nil, nil, fmt.Errorf("select product stock: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id    string
			level int
		)
		if err := rows.Scan(&id, &level); err != nil {
			return nil, nil, fmt.Errorf("scan product stock: %w", err)
		}
		stock[model.ProductID(id)] = level
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("rows error: %w", err)
	}

	if len(coins) == 0 && len(stock) == 0 {
		return nil, nil, ErrStateNotFound
	}
	return coins, stock, nil
}

// SaveState сохраняет снимок резерва монет и остатков в одной транзакции.
func (r *PostgresRepository) SaveState(ctx context.Context, coins map[model.Coin]int, stock map[model.ProductID]int) error {
	return withRetry(ctx, r.delays, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		if _, err := tx.Exec(ctx, `DELETE FROM bank_coins`); err != nil {
			return fmt.Errorf("clear bank coins: %w", err)
		}
		for c, n := range coins {
			_, err := tx.Exec(ctx,
				`INSERT INTO bank_coins (denomination, count, updated_at) VALUES ($1, $2, now())`,
				string(c), n,
			)
			if err != nil {
				return fmt.Errorf("insert bank coin %s: %w", c, err)
			}
		}

		for id, level := range stock {
			_, err := tx.Exec(ctx,
				`INSERT INTO product_stock (product_id, stock, updated_at) VALUES ($1, $2, now())
				 ON CONFLICT (product_id) DO UPDATE SET stock = EXCLUDED.stock, updated_at = now()`,
				string(id), level,
			)
			if err != nil {
				return fmt.Errorf("upsert stock %s: %w", id, err)
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// RecordSale сохраняет запись о продаже.
func (r *PostgresRepository) RecordSale(ctx context.Context, sale model.Sale) error {
	return withRetry(ctx, r.delays, func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO sales (id, product_id, price, paid, change, change_owed, sold_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			sale.ID.String(), string(sale.Product), int64(sale.Price), int64(sale.Paid),
			int64(sale.Change), int64(sale.ChangeOwed), sale.SoldAt,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
				return fmt.Errorf("%w: %s", ErrSaleExists, sale.ID)
			}
			return fmt.Errorf("insert sale: %w", err)
		}
		return nil
	})
}

// ListSales возвращает последние продажи, начиная с самых новых.
func (r *PostgresRepository) ListSales(ctx context.Context, limit int) ([]model.Sale, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id::text, product_id, price, paid, change, change_owed, sold_at
		 FROM sales
		 ORDER BY sold_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select sales: %w", err)
	}
	defer rows.Close()

	var res []model.Sale
	for rows.Next() {
		var (
			id                        string
			product                   string
			price, paid, change, owed int64
			soldAt                    time.Time
		)
		if err := rows.Scan(&id, &product, &price, &paid, &change, &owed, &soldAt); err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}

		saleID, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse sale id: %w", err)
		}

		res = append(res, model.Sale{
			ID:         saleID,
			Product:    model.ProductID(product),
			Price:      model.Cents(price),
			Paid:       model.Cents(paid),
			Change:     model.Cents(change),
			ChangeOwed: model.Cents(owed),
			SoldAt:     soldAt,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
