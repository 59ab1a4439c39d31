// Package storage 提供了与对象存储服务（MinIO）交互的功能。
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"vector-pipeline-go/internal/config"
	"vector-pipeline-go/pkg/log"
)

// ErrObjectNotFound 表示按路径取文件时对象不存在。
var ErrObjectNotFound = errors.New("storage object not found")

// Client 持有 MinIO 客户端句柄和目标存储桶。
type Client struct {
	mc     *minio.Client
	bucket string
}

// NewClient 初始化 MinIO 客户端并确保存储桶存在。
func NewClient(cfg config.MinIOConfig) (*Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 MinIO 客户端失败: %w", err)
	}

	ctx := context.Background()
	exists, err := mc.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("检查 MinIO 存储桶失败: %w", err)
	}
	if !exists {
		log.Infof("存储桶 '%s' 不存在，正在创建...", cfg.BucketName)
		if err := mc.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("创建 MinIO 存储桶失败: %w", err)
		}
	}

	return &Client{mc: mc, bucket: cfg.BucketName}, nil
}

// Save 将文件内容写入指定的相对路径。
func (c *Client) Save(ctx context.Context, objectName string, content []byte) error {
	_, err := c.mc.PutObject(ctx, c.bucket, objectName,
		bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{})
	if err != nil {
		return fmt.Errorf("写入对象 %s 失败: %w", objectName, err)
	}
	return nil
}

// Fetch 按相对路径读取文件的全部内容。
// 对象不存在时返回 ErrObjectNotFound，调用方据此判定消息级致命错误。
func (c *Client) Fetch(ctx context.Context, objectName string) ([]byte, error) {
	object, err := c.mc.GetObject(ctx, c.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("读取对象 %s 失败: %w", objectName, err)
	}
	defer object.Close()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, object); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, objectName)
		}
		return nil, fmt.Errorf("读取对象流 %s 失败: %w", objectName, err)
	}
	return buf.Bytes(), nil
}

// Remove 删除指定对象，用于入队失败后的回滚清理。
func (c *Client) Remove(ctx context.Context, objectName string) error {
	return c.mc.RemoveObject(ctx, c.bucket, objectName, minio.RemoveObjectOptions{})
}
