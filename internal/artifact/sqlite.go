package artifact

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/nao1215/interpreter/pkg/migration"
)

//go:embed migrations
var migrationsFS embed.FS

// SQLiteStore はSQLiteにアーティファクトを保存するStore。
type SQLiteStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite はdsnのSQLiteデータベースを開き、スキーマを適用する。
// ":memory:" の場合は接続ごとに別のデータベースになるため、接続数を1に制限する。
func OpenSQLite(ctx context.Context, dsn string, ttl time.Duration, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := migration.Run(ctx, db, migrationsFS, "migrations", logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	return &SQLiteStore{db: db, ttl: ttl, now: time.Now}, nil
}

// Save はアーティファクトを保存する。
func (s *SQLiteStore) Save(ctx context.Context, a *Artifact) error {
	if err := prepare(a, s.now()); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO audio_artifacts (id, content_type, data, created_at) VALUES (?, ?, ?, ?)",
		a.ID, a.ContentType, a.Data, a.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("アーティファクトの保存に失敗: %w", err)
	}
	return nil
}

// Get はIDで有効期限内のアーティファクトを取得する。
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Artifact, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx,
		"SELECT id, content_type, data, created_at FROM audio_artifacts WHERE id = ? AND created_at >= ?",
		id, s.cutoff(),
	)
	return scanArtifact(row)
}

// Latest は有効期限内で最も新しいアーティファクトを取得する。
func (s *SQLiteStore) Latest(ctx context.Context) (*Artifact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, content_type, data, created_at FROM audio_artifacts
		 WHERE created_at >= ? ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		s.cutoff(),
	)
	return scanArtifact(row)
}

// DeleteExpired はbeforeより前に作成されたアーティファクトを削除する。
func (s *SQLiteStore) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM audio_artifacts WHERE created_at < ?", before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("期限切れアーティファクトの削除に失敗: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗: %w", err)
	}
	return int(n), nil
}

// Close はデータベース接続を閉じる。
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// cutoff は有効とみなす作成日時の下限をUnixナノ秒で返す。
func (s *SQLiteStore) cutoff() int64 {
	return s.now().Add(-s.ttl).UnixNano()
}

func scanArtifact(row *sql.Row) (*Artifact, error) {
	var (
		a         Artifact
		createdAt int64
	)
	if err := row.Scan(&a.ID, &a.ContentType, &a.Data, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("アーティファクトの取得に失敗: %w", err)
	}
	a.CreatedAt = time.Unix(0, createdAt)
	return &a, nil
}
