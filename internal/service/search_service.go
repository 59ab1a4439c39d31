// Package service 提供了搜索相关的业务逻辑。
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/elastic/go-elasticsearch/v8"

	"vector-pipeline-go/internal/model"
	"vector-pipeline-go/internal/repository"
	"vector-pipeline-go/pkg/embedding"
	"vector-pipeline-go/pkg/log"
)

// SearchService 接口定义了语义搜索操作。
type SearchService interface {
	Search(ctx context.Context, query string, topK int) ([]model.SearchResponseDTO, error)
}

type searchService struct {
	embeddingClient embedding.Client
	esClient        *elasticsearch.Client
	docRepo         repository.DocumentRepository
	indexName       string
}

// NewSearchService 创建一个新的 SearchService 实例。
func NewSearchService(embeddingClient embedding.Client, esClient *elasticsearch.Client, docRepo repository.DocumentRepository, indexName string) SearchService {
	return &searchService{
		embeddingClient: embeddingClient,
		esClient:        esClient,
		docRepo:         docRepo,
		indexName:       indexName,
	}
}

// Search 对已向量化的分块执行 kNN 语义搜索，并补全文档元数据。
func (s *searchService) Search(ctx context.Context, query string, topK int) ([]model.SearchResponseDTO, error) {
	log.Infof("[SearchService] 开始执行语义搜索, query: '%s', topK: %d", query, topK)

	// 1. 向量化查询文本
	log.Info("[SearchService] 步骤1: 开始向量化查询")
	queryVector, err := s.embeddingClient.CreateEmbedding(ctx, query)
	if err != nil {
		log.Errorf("[SearchService] 向量化查询失败: %v", err)
		return nil, fmt.Errorf("failed to create query embedding: %w", err)
	}
	log.Infof("[SearchService] 步骤1: 向量化查询成功, 向量维度: %d", len(queryVector))

	// 2. 构建 kNN 查询
	log.Info("[SearchService] 步骤2: 构建 Elasticsearch kNN 查询")
	var buf bytes.Buffer
	esQuery := map[string]interface{}{
		"knn": map[string]interface{}{
			"field":          "vector",
			"query_vector":   queryVector,
			"k":              topK,
			"num_candidates": topK * 10,
		},
		"size": topK,
	}
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	// 3. 执行搜索
	log.Info("[SearchService] 步骤3: 向 Elasticsearch 发送搜索请求")
	res, err := s.esClient.Search(
		s.esClient.Search.WithContext(ctx),
		s.esClient.Search.WithIndex(s.indexName),
		s.esClient.Search.WithBody(&buf),
	)
	if err != nil {
		log.Errorf("[SearchService] 向 Elasticsearch 发送搜索请求失败: %v", err)
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		log.Errorf("[SearchService] Elasticsearch 返回错误, status: %s, body: %s", res.Status(), string(bodyBytes))
		return nil, fmt.Errorf("elasticsearch returned an error: %s", res.String())
	}

	// 4. 解析响应
	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source model.EsChunk `json:"_source"`
				Score  float64       `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("failed to decode es response: %w", err)
	}
	if len(esResponse.Hits.Hits) == 0 {
		log.Infof("[SearchService] Elasticsearch 返回 0 条命中结果")
		return []model.SearchResponseDTO{}, nil
	}

	// 5. 批量补全文档元数据
	log.Info("[SearchService] 步骤4: 批量获取文档元数据")
	uniqueIDs := make(map[uint]struct{})
	for _, hit := range esResponse.Hits.Hits {
		uniqueIDs[hit.Source.DocumentID] = struct{}{}
	}
	idList := make([]uint, 0, len(uniqueIDs))
	for id := range uniqueIDs {
		idList = append(idList, id)
	}
	docs, err := s.docRepo.FindBatchByIDs(idList)
	if err != nil {
		log.Errorf("[SearchService] 批量查询文档信息失败: %v", err)
		return nil, fmt.Errorf("批量查询文档信息失败: %w", err)
	}
	docMap := make(map[uint]*model.Document, len(docs))
	for _, doc := range docs {
		docMap[doc.ID] = doc
	}

	// 6. 组装最终结果
	results := make([]model.SearchResponseDTO, 0, len(esResponse.Hits.Hits))
	for _, hit := range esResponse.Hits.Hits {
		dto := model.SearchResponseDTO{
			DocumentID: hit.Source.DocumentID,
			ChunkIndex: hit.Source.ChunkIndex,
			ChunkText:  hit.Source.ChunkText,
			Score:      hit.Score,
		}
		if doc, ok := docMap[hit.Source.DocumentID]; ok {
			dto.Filename = doc.Filename
			dto.Title = doc.Title
		} else {
			log.Warnf("[SearchService] 未找到文档 %d 的元数据记录", hit.Source.DocumentID)
		}
		results = append(results, dto)
	}

	log.Infof("[SearchService] 语义搜索执行完毕, 返回 %d 条结果", len(results))
	return results, nil
}
