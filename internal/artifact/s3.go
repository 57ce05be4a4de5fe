package artifact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/nao1215/interpreter/internal/config"
)

// latestName は最新のアーティファクトの複製を置くオブジェクト名。
const latestName = "latest"

// objectExt は保存するオブジェクトの拡張子。
const objectExt = ".mp3"

// metaID は最新の複製に元のIDを記録するユーザーメタデータのキー。
const metaID = "Artifact-Id"

// S3Store はS3互換ストレージにアーティファクトを保存するStore。
// オブジェクトは <prefix><id>.mp3 に置き、最新のものを <prefix>latest.mp3 に複製する。
type S3Store struct {
	client *minio.Client
	bucket string
	prefix string
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

var _ Store = (*S3Store)(nil)

// OpenS3 はS3互換ストレージに接続する。バケットが無い場合は作成する。
func OpenS3(ctx context.Context, cfg config.S3Config, ttl time.Duration, logger *zap.Logger) (*S3Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("S3クライアントの生成に失敗: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("バケットの確認に失敗: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("バケットの作成に失敗: %w", err)
		}
		logger.Info("バケットを作成しました", zap.String("bucket", cfg.Bucket))
	}

	return &S3Store{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}, nil
}

// Save はアーティファクトをアップロードし、最新の複製を更新する。
func (s *S3Store) Save(ctx context.Context, a *Artifact) error {
	if err := prepare(a, s.now()); err != nil {
		return err
	}

	opts := minio.PutObjectOptions{
		ContentType:  a.ContentType,
		UserMetadata: map[string]string{metaID: a.ID},
	}
	if _, err := s.client.PutObject(ctx, s.bucket, s.objectKey(a.ID), bytes.NewReader(a.Data), int64(len(a.Data)), opts); err != nil {
		return fmt.Errorf("アーティファクトのアップロードに失敗: %w", err)
	}

	// latestの複製に失敗しても保存自体は成功とする。
	// Saveが並行した場合、latestは後から完了した方ではなく後から書き込んだ方になる。
	if _, err := s.client.PutObject(ctx, s.bucket, s.objectKey(latestName), bytes.NewReader(a.Data), int64(len(a.Data)), opts); err != nil {
		s.logger.Warn("最新アーティファクトの更新に失敗", zap.String("id", a.ID), zap.Error(err))
	}
	return nil
}

// Get はIDで有効期限内のアーティファクトを取得する。
func (s *S3Store) Get(ctx context.Context, id string) (*Artifact, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	return s.fetch(ctx, s.objectKey(id), id)
}

// Latest は最新の複製を取得する。
func (s *S3Store) Latest(ctx context.Context) (*Artifact, error) {
	return s.fetch(ctx, s.objectKey(latestName), "")
}

// DeleteExpired はプレフィックス配下でbeforeより前に更新されたオブジェクトを削除する。
func (s *S3Store) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	deleted := 0
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: s.prefix, Recursive: true}) {
		if obj.Err != nil {
			return deleted, fmt.Errorf("オブジェクト一覧の取得に失敗: %w", obj.Err)
		}
		if !strings.HasSuffix(obj.Key, objectExt) || !obj.LastModified.Before(before) {
			continue
		}
		if err := s.client.RemoveObject(ctx, s.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return deleted, fmt.Errorf("オブジェクト %s の削除に失敗: %w", obj.Key, err)
		}
		deleted++
	}
	return deleted, nil
}

// Close は何もしない。minioのクライアントは閉じる必要が無い。
func (s *S3Store) Close() error {
	return nil
}

// fetch はkeyのオブジェクトを読み込む。idが空の場合はメタデータから補う。
func (s *S3Store) fetch(ctx context.Context, key, id string) (*Artifact, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.translateError(err)
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		return nil, s.translateError(err)
	}
	if info.LastModified.Before(s.now().Add(-s.ttl)) {
		return nil, ErrNotFound
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.translateError(err)
	}

	if id == "" {
		id = info.UserMetadata[metaID]
	}
	if id == "" {
		id = strings.TrimSuffix(path.Base(key), objectExt)
	}

	return &Artifact{
		ID:          id,
		ContentType: info.ContentType,
		Data:        data,
		CreatedAt:   info.LastModified,
	}, nil
}

// objectKey はnameに対応するオブジェクトキーを返す。
func (s *S3Store) objectKey(name string) string {
	return s.prefix + name + objectExt
}

// translateError はオブジェクトが存在しないエラーをErrNotFoundに変換する。
func (s *S3Store) translateError(err error) error {
	if isNotFound(err) {
		return ErrNotFound
	}
	return fmt.Errorf("アーティファクトの取得に失敗: %w", err)
}

func isNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return true
	default:
		return false
	}
}
