package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/koopa0/system-design/item-cache/internal"
	apperrors "github.com/koopa0/system-design/item-cache/pkg/errors"
)

var _ internal.Store = (*Postgres)(nil)

// DBTX pgxpool.Pool 與 pgx.Tx 共有的方法
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres PostgreSQL 存儲實現
//
// 表結構見 internal/migrations/migrations/000001_create_items.up.sql。
type Postgres struct {
	db   DBTX
	pool *pgxpool.Pool
}

// NewPostgres 以連線池創建 PostgreSQL 存儲
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{db: pool, pool: pool}
}

// NewPostgresWithDB 以任意 DBTX 創建存儲，例如交易
func NewPostgresWithDB(db DBTX) *Postgres {
	return &Postgres{db: db}
}

const (
	getItemSQL    = `SELECT id, name, description FROM items WHERE id = $1`
	listItemsSQL  = `SELECT id, name, description FROM items ORDER BY id`
	insertItemSQL = `INSERT INTO items (name, description) VALUES ($1, $2) RETURNING id, name, description`
	updateItemSQL = `
		UPDATE items
		SET name = $2, description = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING id, name, description`
	deleteItemSQL = `DELETE FROM items WHERE id = $1`
)

// GetByID 依 ID 讀取項目
func (p *Postgres) GetByID(ctx context.Context, id int64) (internal.Item, error) {
	var item internal.Item
	err := p.db.QueryRow(ctx, getItemSQL, id).Scan(&item.ID, &item.Name, &item.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return internal.Item{}, apperrors.ErrItemNotFound
		}
		return internal.Item{}, apperrors.StoreFailure(err, fmt.Sprintf("get item %d", id))
	}
	return item, nil
}

// ListAll 依 ID 遞增回傳所有項目
func (p *Postgres) ListAll(ctx context.Context) ([]internal.Item, error) {
	rows, err := p.db.Query(ctx, listItemsSQL)
	if err != nil {
		return nil, apperrors.StoreFailure(err, "list items")
	}

	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (internal.Item, error) {
		var item internal.Item
		err := row.Scan(&item.ID, &item.Name, &item.Description)
		return item, err
	})
	if err != nil {
		return nil, apperrors.StoreFailure(err, "list items")
	}

	return items, nil
}

// Insert 新增項目，ID 由資料庫分配
func (p *Postgres) Insert(ctx context.Context, name, description string) (internal.Item, error) {
	var item internal.Item
	err := p.db.QueryRow(ctx, insertItemSQL, name, description).Scan(&item.ID, &item.Name, &item.Description)
	if err != nil {
		return internal.Item{}, apperrors.StoreFailure(err, "insert item")
	}
	return item, nil
}

// UpdateFields 更新名稱與描述並回傳更新後的記錄
func (p *Postgres) UpdateFields(ctx context.Context, id int64, name, description string) (internal.Item, error) {
	var item internal.Item
	err := p.db.QueryRow(ctx, updateItemSQL, id, name, description).Scan(&item.ID, &item.Name, &item.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return internal.Item{}, apperrors.ErrItemNotFound
		}
		return internal.Item{}, apperrors.StoreFailure(err, fmt.Sprintf("update item %d", id))
	}
	return item, nil
}

// DeleteByID 刪除項目
func (p *Postgres) DeleteByID(ctx context.Context, id int64) error {
	tag, err := p.db.Exec(ctx, deleteItemSQL, id)
	if err != nil {
		return apperrors.StoreFailure(err, fmt.Sprintf("delete item %d", id))
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrItemNotFound
	}
	return nil
}

// Ping 檢查連線
func (p *Postgres) Ping(ctx context.Context) error {
	if p.pool == nil {
		return nil
	}
	return p.pool.Ping(ctx)
}
