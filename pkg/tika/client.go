// Package tika 提供了一个与 Apache Tika 服务器交互的客户端。
package tika

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"vector-pipeline-go/internal/config"
)

// Result 是一次文本提取的结果。
type Result struct {
	Text      string
	PageCount int
}

// Client 是 Tika 服务器的客户端。
type Client struct {
	serverURL string
	client    *http.Client
}

// NewClient 创建一个新的 Tika 客户端实例。
func NewClient(cfg config.TikaConfig) *Client {
	return &Client{serverURL: cfg.ServerURL, client: &http.Client{}}
}

// Extract 调用 Tika 提取纯文本和页数。
// 提取出的文本为空是合法结果（如纯图片 PDF），由调用方按零分块处理。
func (c *Client) Extract(ctx context.Context, content []byte, fileName string) (Result, error) {
	contentType := detectMimeType(fileName)

	text, err := c.extractText(ctx, content, contentType)
	if err != nil {
		return Result{}, err
	}

	// 页数来自 /meta 接口；拿不到页数不算失败，记 0 即可
	pageCount, _ := c.extractPageCount(ctx, content, contentType)

	return Result{Text: text, PageCount: pageCount}, nil
}

func (c *Client) extractText(ctx context.Context, content []byte, contentType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "PUT", c.serverURL+"/tika", bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("创建 Tika 请求失败: %w", err)
	}
	req.Header.Set("Accept", "text/plain")
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("调用 Tika 失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("Tika 返回错误 [%d]: %s", resp.StatusCode, string(body))
	}

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, resp.Body); err != nil {
		return "", fmt.Errorf("读取 Tika 响应失败: %w", err)
	}
	return buf.String(), nil
}

// extractPageCount 通过 /meta 接口获取文档元数据中的页数。
func (c *Client) extractPageCount(ctx context.Context, content []byte, contentType string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, "PUT", c.serverURL+"/meta", bytes.NewReader(content))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("Tika meta 返回错误 [%d]", resp.StatusCode)
	}

	var meta map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return 0, err
	}

	// PDF 的页数字段为 xmpTPg:NPages，其他格式退化为 meta:page-count
	for _, key := range []string{"xmpTPg:NPages", "meta:page-count"} {
		if v, ok := meta[key]; ok {
			switch n := v.(type) {
			case string:
				if parsed, err := strconv.Atoi(n); err == nil {
					return parsed, nil
				}
			case float64:
				return int(n), nil
			}
		}
	}
	return 0, nil
}

// detectMimeType 根据文件扩展名判断 Content-Type
func detectMimeType(fileName string) string {
	ext := filepath.Ext(fileName)
	if ext == "" {
		return "application/octet-stream"
	}
	mimeType := mime.TypeByExtension(ext)
	if mimeType == "" {
		return "application/octet-stream"
	}
	return mimeType
}
