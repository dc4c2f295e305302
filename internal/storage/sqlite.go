package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/koopa0/system-design/item-cache/internal"
	apperrors "github.com/koopa0/system-design/item-cache/pkg/errors"
	_ "modernc.org/sqlite"
)

var _ internal.Store = (*SQLite)(nil)

//go:embed schema/sqlite.sql
var sqliteSchema string

// SQLite SQLite 存儲實現
type SQLite struct {
	db *sql.DB
}

// OpenSQLite 開啟 SQLite 資料庫並建立表結構
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close 關閉資料庫
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping 檢查連線
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetByID 依 ID 讀取項目
func (s *SQLite) GetByID(ctx context.Context, id int64) (internal.Item, error) {
	var item internal.Item
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description FROM items WHERE id = ?`, id,
	).Scan(&item.ID, &item.Name, &item.Description)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return internal.Item{}, apperrors.ErrItemNotFound
		}
		return internal.Item{}, apperrors.StoreFailure(err, fmt.Sprintf("get item %d", id))
	}
	return item, nil
}

// ListAll 依 ID 遞增回傳所有項目
func (s *SQLite) ListAll(ctx context.Context) ([]internal.Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, description FROM items ORDER BY id`)
	if err != nil {
		return nil, apperrors.StoreFailure(err, "list items")
	}
	defer rows.Close()

	items := []internal.Item{}
	for rows.Next() {
		var item internal.Item
		if err := rows.Scan(&item.ID, &item.Name, &item.Description); err != nil {
			return nil, apperrors.StoreFailure(err, "scan item")
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.StoreFailure(err, "list items")
	}

	return items, nil
}

// Insert 新增項目，ID 由資料庫分配
func (s *SQLite) Insert(ctx context.Context, name, description string) (internal.Item, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO items (name, description) VALUES (?, ?)`, name, description)
	if err != nil {
		return internal.Item{}, apperrors.StoreFailure(err, "insert item")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return internal.Item{}, apperrors.StoreFailure(err, "insert item id")
	}

	return internal.Item{ID: id, Name: name, Description: description}, nil
}

// UpdateFields 更新名稱與描述並回傳更新後的記錄
func (s *SQLite) UpdateFields(ctx context.Context, id int64, name, description string) (internal.Item, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE items SET name = ?, description = ?, updated_at = unixepoch() WHERE id = ?`,
		name, description, id)
	if err != nil {
		return internal.Item{}, apperrors.StoreFailure(err, fmt.Sprintf("update item %d", id))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return internal.Item{}, apperrors.StoreFailure(err, fmt.Sprintf("update item %d", id))
	}
	if n == 0 {
		return internal.Item{}, apperrors.ErrItemNotFound
	}

	return internal.Item{ID: id, Name: name, Description: description}, nil
}

// DeleteByID 刪除項目
func (s *SQLite) DeleteByID(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return apperrors.StoreFailure(err, fmt.Sprintf("delete item %d", id))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.StoreFailure(err, fmt.Sprintf("delete item %d", id))
	}
	if n == 0 {
		return apperrors.ErrItemNotFound
	}

	return nil
}
