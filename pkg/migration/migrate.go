// Package migration はembed.FSに置いたSQLファイルでSQLiteのスキーマを更新する。
//
// ファイル名は "000001_description.up.sql" 形式とし、番号順に1ファイル1トランザクションで適用する。
// 適用済みのファイルはチェックサムを記録し、後から書き換えられていれば起動を止める。
package migration

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// upSuffix は適用対象のファイルの拡張子。
const upSuffix = ".up.sql"

// ErrChecksumMismatch は適用済みのマイグレーションが書き換えられたことを表す。
var ErrChecksumMismatch = errors.New("migration: applied file has been modified")

// Step は1つのマイグレーションファイル。
type Step struct {
	// Version はファイル名先頭の番号。
	Version int
	// Name はファイル名の説明部分。
	Name string
	// SQL はファイルの内容。
	SQL string
	// Checksum はSQLのSHA-256（16進数）。
	Checksum string
}

// Run はdir配下の未適用のマイグレーションを番号順に適用する。
func Run(ctx context.Context, db *sql.DB, fsys fs.FS, dir string, logger logrus.FieldLogger) error {
	steps, err := Load(fsys, dir)
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			checksum TEXT NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
		)
	`); err != nil {
		return fmt.Errorf("マイグレーション管理テーブルの作成に失敗: %w", err)
	}

	applied, err := checksums(ctx, db)
	if err != nil {
		return fmt.Errorf("適用済みバージョンの取得に失敗: %w", err)
	}

	var count int
	for _, step := range steps {
		if sum, ok := applied[step.Version]; ok {
			if sum != step.Checksum {
				return fmt.Errorf("%w: %06d_%s", ErrChecksumMismatch, step.Version, step.Name)
			}
			continue
		}
		if err := apply(ctx, db, step); err != nil {
			return fmt.Errorf("マイグレーション %06d_%s の適用に失敗: %w", step.Version, step.Name, err)
		}
		logger.WithFields(logrus.Fields{
			"version": step.Version,
			"name":    step.Name,
		}).Info("マイグレーションを適用しました")
		count++
	}

	logger.WithFields(logrus.Fields{
		"applied": count,
		"total":   len(steps),
	}).Debug("スキーマは最新です")
	return nil
}

// Load はdir配下のup.sqlファイルを番号順に読み込む。
// 命名規則に合わないファイルは無視し、番号の重複はエラーにする。
func Load(fsys fs.FS, dir string) ([]Step, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("マイグレーションディレクトリの読み込みに失敗: %w", err)
	}

	seen := make(map[int]string)
	var steps []Step
	for _, entry := range entries {
		base, ok := strings.CutSuffix(entry.Name(), upSuffix)
		if entry.IsDir() || !ok {
			continue
		}
		prefix, name, ok := strings.Cut(base, "_")
		if !ok {
			continue
		}
		version, err := strconv.Atoi(prefix)
		if err != nil {
			continue
		}
		if other, dup := seen[version]; dup {
			return nil, fmt.Errorf("マイグレーション番号 %06d が重複しています: %s, %s", version, other, entry.Name())
		}
		seen[version] = entry.Name()

		content, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("%sの読み込みに失敗: %w", entry.Name(), err)
		}
		sum := sha256.Sum256(content)
		steps = append(steps, Step{
			Version:  version,
			Name:     name,
			SQL:      string(content),
			Checksum: hex.EncodeToString(sum[:]),
		})
	}

	sort.Slice(steps, func(i, j int) bool { return steps[i].Version < steps[j].Version })
	return steps, nil
}

// checksums は適用済みのバージョンとチェックサムを返す。
func checksums(ctx context.Context, db *sql.DB) (map[int]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT version, checksum FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	applied := make(map[int]string)
	for rows.Next() {
		var (
			v   int
			sum string
		)
		if err := rows.Scan(&v, &sum); err != nil {
			return nil, err
		}
		applied[v] = sum
	}
	return applied, rows.Err()
}

// apply は1つのマイグレーションとその記録を同じトランザクションで実行する。
func apply(ctx context.Context, db *sql.DB, step Step) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, step.SQL); err != nil {
		return fmt.Errorf("SQL実行に失敗: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, name, checksum) VALUES (?, ?, ?)",
		step.Version, step.Name, step.Checksum,
	); err != nil {
		return fmt.Errorf("バージョン記録に失敗: %w", err)
	}
	return tx.Commit()
}
