package service

import (
	"context"
	"fmt"

	"github.com/MaxChen228/Linker-sub001/internal/config"
	"github.com/MaxChen228/Linker-sub001/pkg/docstore"
	"github.com/MaxChen228/Linker-sub001/pkg/logger"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// MinioMirror 把备份文件同步上传到对象存储，丢本地盘也能找回
type MinioMirror struct {
	client *minio.Client
	bucket string
}

func NewMinioMirror(cfg config.StorageConfig) (*MinioMirror, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessID, cfg.MinioSecret, ""),
		Secure: false,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}
	return &MinioMirror{client: client, bucket: cfg.MinioBucket}, nil
}

func (m *MinioMirror) UploadFile(ctx context.Context, name, localPath, contentType string) error {
	_, err := m.client.FPutObject(ctx, m.bucket, name, localPath,
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("upload %s: %w", name, err)
	}
	return nil
}

// NewMirrorFromConfig 按配置决定要不要镜像备份。
// 镜像初始化失败只降级成不镜像，不阻塞主流程。
func NewMirrorFromConfig(cfg *config.Config) docstore.Mirror {
	switch cfg.Storage.MirrorType {
	case "minio":
		m, err := NewMinioMirror(cfg.Storage)
		if err != nil {
			logger.Log.Warn("备份镜像初始化失败，退回仅本地备份", zap.Error(err))
			return nil
		}
		return m
	default:
		return nil
	}
}
