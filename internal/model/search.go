package model

// SearchResponseDTO 定义了返回给前端的搜索结果结构。
type SearchResponseDTO struct {
	DocumentID uint    `json:"documentId"`
	Filename   string  `json:"filename"`
	Title      string  `json:"title"`
	ChunkIndex int     `json:"chunkIndex"`
	ChunkText  string  `json:"chunkText"`
	Score      float64 `json:"score"`
}

// EsChunk 代表存储在 Elasticsearch 中的分块文档结构。
// VectorID 形如 "{documentID}_{chunkIndex}"，保证重复索引幂等覆盖。
type EsChunk struct {
	VectorID     string    `json:"vector_id"`
	DocumentID   uint      `json:"document_id"`
	ChunkIndex   int       `json:"chunk_index"`
	ChunkText    string    `json:"chunk_text"`
	Vector       []float32 `json:"vector"`
	ModelVersion string    `json:"model_version"`
}
