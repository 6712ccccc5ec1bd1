package migration

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/nao1215/shopapp/pkg/logging"
	_ "modernc.org/sqlite"
)

// openMemoryDB はテスト用のインメモリSQLiteを開く。
// インメモリDBは接続ごとに独立するため、接続数を1に制限する。
func openMemoryDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("インメモリDB接続に失敗: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// sessionsFS はテスト用のマイグレーションファイル群。
func sessionsFS() fstest.MapFS {
	return fstest.MapFS{
		"migrations/000002_index_shop.up.sql":        {Data: []byte("CREATE INDEX idx_sessions_shop ON sessions(shop);")},
		"migrations/000001_create_sessions.up.sql":   {Data: []byte("CREATE TABLE sessions (id TEXT PRIMARY KEY, shop TEXT NOT NULL);")},
		"migrations/000001_create_sessions.down.sql": {Data: []byte("DROP TABLE sessions;")},
		"migrations/README.md":                       {Data: []byte("無視される")},
		"migrations/bad_name.up.sql":                 {Data: []byte("SELECT 1;")},
	}
}

// TestLoad はマイグレーションファイルの読み込みを検証する。
func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("up.sqlだけを番号順に読み込むこと", func(t *testing.T) {
		t.Parallel()

		steps, err := Load(sessionsFS(), "migrations")
		if err != nil {
			t.Fatalf("Load()でエラーが発生: %v", err)
		}
		if len(steps) != 2 {
			t.Fatalf("件数 = %d, want 2", len(steps))
		}
		if steps[0].Version != 1 || steps[0].Name != "create_sessions" {
			t.Errorf("steps[0] = %d_%s", steps[0].Version, steps[0].Name)
		}
		if steps[1].Version != 2 || steps[1].Name != "index_shop" {
			t.Errorf("steps[1] = %d_%s", steps[1].Version, steps[1].Name)
		}
		if len(steps[0].Checksum) != 64 {
			t.Errorf("Checksum = %q", steps[0].Checksum)
		}
	})

	t.Run("番号が重複している場合はエラーになること", func(t *testing.T) {
		t.Parallel()

		fsys := sessionsFS()
		fsys["migrations/000002_other.up.sql"] = &fstest.MapFile{Data: []byte("SELECT 1;")}
		if _, err := Load(fsys, "migrations"); err == nil {
			t.Fatal("Load()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("ディレクトリが存在しない場合はエラーになること", func(t *testing.T) {
		t.Parallel()

		if _, err := Load(fstest.MapFS{}, "missing"); err == nil {
			t.Fatal("Load()がエラーを返すべきだが、nilが返った")
		}
	})
}

// TestRun はマイグレーションの適用を検証する。
func TestRun(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("未適用のマイグレーションを適用し記録すること", func(t *testing.T) {
		t.Parallel()

		db := openMemoryDB(t)
		if err := Run(ctx, db, sessionsFS(), "migrations", logging.Discard()); err != nil {
			t.Fatalf("Run()でエラーが発生: %v", err)
		}

		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
			t.Fatalf("適用済みバージョンの取得に失敗: %v", err)
		}
		if count != 2 {
			t.Errorf("適用数 = %d, want 2", count)
		}
		if _, err := db.Exec("INSERT INTO sessions (id, shop) VALUES ('offline_a.myshopify.com', 'a.myshopify.com')"); err != nil {
			t.Errorf("テーブルが作成されていない: %v", err)
		}
	})

	t.Run("2回目の実行では何も適用しないこと", func(t *testing.T) {
		t.Parallel()

		db := openMemoryDB(t)
		if err := Run(ctx, db, sessionsFS(), "migrations", logging.Discard()); err != nil {
			t.Fatalf("1回目のRun()でエラーが発生: %v", err)
		}
		if err := Run(ctx, db, sessionsFS(), "migrations", logging.Discard()); err != nil {
			t.Fatalf("2回目のRun()でエラーが発生: %v", err)
		}
	})

	t.Run("適用済みのファイルが書き換えられた場合はエラーになること", func(t *testing.T) {
		t.Parallel()

		db := openMemoryDB(t)
		if err := Run(ctx, db, sessionsFS(), "migrations", logging.Discard()); err != nil {
			t.Fatalf("1回目のRun()でエラーが発生: %v", err)
		}

		modified := sessionsFS()
		modified["migrations/000001_create_sessions.up.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE sessions (id TEXT PRIMARY KEY);")}
		err := Run(ctx, db, modified, "migrations", logging.Discard())
		if !errors.Is(err, ErrChecksumMismatch) {
			t.Errorf("error = %v, want ErrChecksumMismatch", err)
		}
	})

	t.Run("SQLが不正な場合はエラーになり記録されないこと", func(t *testing.T) {
		t.Parallel()

		db := openMemoryDB(t)
		broken := fstest.MapFS{
			"migrations/000001_broken.up.sql": {Data: []byte("CREATE TABLEE broken;")},
		}
		if err := Run(ctx, db, broken, "migrations", logging.Discard()); err == nil {
			t.Fatal("Run()がエラーを返すべきだが、nilが返った")
		}

		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
			t.Fatalf("適用済みバージョンの取得に失敗: %v", err)
		}
		if count != 0 {
			t.Errorf("適用数 = %d, want 0", count)
		}
	})
}
