package session

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/shopapp/pkg/migration"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

//go:embed migrations
var migrationsFS embed.FS

// ErrNotFound はセッションが存在しないことを表す。
var ErrNotFound = errors.New("session: not found")

// Store はセッションの永続化を抽象化する。
type Store interface {
	// Store はセッションを保存する。同じIDのセッションがあれば上書きする。
	Store(ctx context.Context, s *Session) error
	// Load はIDでセッションを取得する。存在しない場合は ErrNotFound を返す。
	Load(ctx context.Context, id string) (*Session, error)
	// Delete はIDでセッションを削除する。存在しなくてもエラーにしない。
	Delete(ctx context.Context, id string) error
	// FindByShop はショップのセッションをすべて取得する。
	FindByShop(ctx context.Context, shop string) ([]*Session, error)
	// DeleteByShop はショップのセッションをすべて削除し、削除件数を返す。
	DeleteByShop(ctx context.Context, shop string) (int64, error)
}

// SQLiteStore はSQLiteにセッションを保存する Store の実装。
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite はSQLiteファイルを開き、スキーマを適用した SQLiteStore を返す。
func OpenSQLite(ctx context.Context, path string, logger logrus.FieldLogger) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	store, err := NewSQLiteStore(ctx, db, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLiteStore は既存のDB接続にスキーマを適用して SQLiteStore を返す。
func NewSQLiteStore(ctx context.Context, db *sql.DB, logger logrus.FieldLogger) (*SQLiteStore, error) {
	if err := migration.Run(ctx, db, migrationsFS, "migrations", logger); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close はDB接続を閉じる。
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping はDB接続が有効かどうかを確認する。
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Store はセッションを保存する。
func (s *SQLiteStore) Store(ctx context.Context, sess *Session) error {
	var expires sql.NullInt64
	if sess.Expires != nil {
		expires = sql.NullInt64{Int64: sess.Expires.Unix(), Valid: true}
	}
	var userID sql.NullInt64
	if sess.UserID != 0 {
		userID = sql.NullInt64{Int64: sess.UserID, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shopify_sessions (id, shop, state, is_online, scope, expires, access_token, user_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			shop = excluded.shop,
			state = excluded.state,
			is_online = excluded.is_online,
			scope = excluded.scope,
			expires = excluded.expires,
			access_token = excluded.access_token,
			user_id = excluded.user_id,
			updated_at = datetime('now')
	`, sess.ID, sess.Shop, sess.State, sess.IsOnline, sess.Scope, expires, sess.AccessToken, userID)
	if err != nil {
		return fmt.Errorf("セッションの保存に失敗: id=%s: %w", sess.ID, err)
	}
	return nil
}

// Load はIDでセッションを取得する。
func (s *SQLiteStore) Load(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, shop, state, is_online, scope, expires, access_token, user_id
		FROM shopify_sessions WHERE id = ?
	`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("セッションの取得に失敗: id=%s: %w", id, err)
	}
	return sess, nil
}

// Delete はIDでセッションを削除する。
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM shopify_sessions WHERE id = ?", id); err != nil {
		return fmt.Errorf("セッションの削除に失敗: id=%s: %w", id, err)
	}
	return nil
}

// FindByShop はショップのセッションをすべて取得する。
func (s *SQLiteStore) FindByShop(ctx context.Context, shop string) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, shop, state, is_online, scope, expires, access_token, user_id
		FROM shopify_sessions WHERE shop = ? ORDER BY id
	`, shop)
	if err != nil {
		return nil, fmt.Errorf("セッションの検索に失敗: shop=%s: %w", shop, err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("セッションの読み取りに失敗: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// DeleteByShop はショップのセッションをすべて削除する。
func (s *SQLiteStore) DeleteByShop(ctx context.Context, shop string) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM shopify_sessions WHERE shop = ?", shop)
	if err != nil {
		return 0, fmt.Errorf("セッションの削除に失敗: shop=%s: %w", shop, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var (
		sess    Session
		expires sql.NullInt64
		userID  sql.NullInt64
	)
	if err := row.Scan(&sess.ID, &sess.Shop, &sess.State, &sess.IsOnline, &sess.Scope, &expires, &sess.AccessToken, &userID); err != nil {
		return nil, err
	}
	if expires.Valid {
		t := time.Unix(expires.Int64, 0)
		sess.Expires = &t
	}
	if userID.Valid {
		sess.UserID = userID.Int64
	}
	return &sess, nil
}
