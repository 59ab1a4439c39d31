package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Vector 是以 JSON 形式持久化的定长浮点向量列。
// 列值为 NULL 表示该分块尚未完成向量化。
type Vector []float32

// Value 实现 driver.Valuer，将向量序列化为 JSON 存储。
func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// Scan 实现 sql.Scanner，从 JSON 列值还原向量。
func (v *Vector) Scan(src interface{}) error {
	if src == nil {
		*v = nil
		return nil
	}
	switch data := src.(type) {
	case []byte:
		return json.Unmarshal(data, v)
	case string:
		return json.Unmarshal([]byte(data), v)
	default:
		return fmt.Errorf("无法将 %T 扫描为 Vector", src)
	}
}

// DocumentChunk 对应于数据库中的 document_chunks 表。
// (document_id, chunk_index) 上有唯一约束；索引从 0 连续编号。
type DocumentChunk struct {
	ID         uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	DocumentID uint   `gorm:"not null;uniqueIndex:uk_doc_chunk,priority:1" json:"documentId"`
	ChunkIndex int    `gorm:"not null;uniqueIndex:uk_doc_chunk,priority:2" json:"chunkIndex"`
	ChunkText  string `gorm:"type:text;not null" json:"chunkText"`
	ChunkSize  int    `gorm:"not null" json:"chunkSize"`
	Embedding  Vector `gorm:"type:json" json:"embedding"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (DocumentChunk) TableName() string {
	return "document_chunks"
}
