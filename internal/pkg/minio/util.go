package minio

import (
	"Atrium/internal/api/config"
	"context"
	"fmt"
	"net/url"
	"time"
)

// PresignedPutURL 生成附件上传的预签名地址，客户端直传后只回传最终 URL
func PresignedPutURL(ctx context.Context, objectName string, expires time.Duration) (string, error) {
	if Client == nil {
		return "", fmt.Errorf("minio client is not initialized")
	}

	u, err := Client.PresignedPutObject(ctx, BucketName, objectName, expires)
	if err != nil {
		return "", fmt.Errorf("failed to presign upload: %w", err)
	}
	return u.String(), nil
}

// GetPublicURL 获取文件的公共访问URL
func GetPublicURL(objectName string) string {
	cfg := config.Cfg.MinIO

	publicURL := fmt.Sprintf("https://%s/%s/%s", cfg.ExternalEndpoint, BucketName, url.PathEscape(objectName))
	return publicURL
}
