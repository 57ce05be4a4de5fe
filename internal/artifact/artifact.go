// Package artifact は合成した音声を一定時間保持し、IDで取り出せるようにする。
//
// 翻訳ごとに一意なIDを払い出すため、同時に届いたリクエストが
// 互いの音声を上書きすることはない。保持期間を過ぎた音声は取得できず、
// Janitorが定期的に削除する。
package artifact

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nao1215/interpreter/internal/config"
)

// ErrNotFound はIDに対応する有効なアーティファクトが存在しないことを表す。
// 不正な形式のIDや期限切れの場合も同じエラーを返す。
var ErrNotFound = errors.New("アーティファクトが見つかりません")

// Artifact は保存された音声データ。
type Artifact struct {
	ID          string
	ContentType string
	Data        []byte
	CreatedAt   time.Time
}

// Store はアーティファクトの保存先。
type Store interface {
	// Save はaを保存する。a.IDとa.CreatedAtが空の場合は採番する。
	Save(ctx context.Context, a *Artifact) error
	// Get は有効期限内のアーティファクトを返す。無い場合はErrNotFound。
	Get(ctx context.Context, id string) (*Artifact, error)
	// Latest は有効期限内で最も新しいアーティファクトを返す。無い場合はErrNotFound。
	Latest(ctx context.Context) (*Artifact, error)
	// DeleteExpired はbeforeより前に作成されたアーティファクトを削除し、件数を返す。
	DeleteExpired(ctx context.Context, before time.Time) (int, error)
	Close() error
}

// NewID は新しいアーティファクトIDを払い出す。
func NewID() string {
	return uuid.NewString()
}

// validID はidがNewIDの形式であるかを判定する。
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// prepare は保存前にIDと作成日時を補完する。
func prepare(a *Artifact, now time.Time) error {
	if a == nil {
		return errors.New("アーティファクトがnilです")
	}
	if a.ID == "" {
		a.ID = NewID()
	}
	if !validID(a.ID) {
		return fmt.Errorf("不正なアーティファクトIDです: %q", a.ID)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	return nil
}

// Open はcfg.Backendに応じたStoreを開く。
func Open(ctx context.Context, cfg config.ArtifactConfig, logger *zap.Logger) (Store, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		return OpenSQLite(ctx, cfg.DBPath, cfg.TTL, logger)
	case config.BackendS3:
		return OpenS3(ctx, cfg.S3, cfg.TTL, logger)
	default:
		return nil, fmt.Errorf("未対応のARTIFACT_BACKENDです: %q", cfg.Backend)
	}
}
