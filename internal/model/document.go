// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// Document 对应于数据库中的 documents 表。
// 它记录了每个已上传文档的元数据和流水线处理状态。
type Document struct {
	ID               uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Filename         string     `gorm:"type:varchar(255);not null" json:"filename"`
	Title            string     `gorm:"type:varchar(255)" json:"title"`
	PageCount        int        `gorm:"not null;default:0" json:"pageCount"`
	FileHash         string     `gorm:"type:varchar(64);not null;index" json:"fileHash"`
	FilePath         string     `gorm:"type:varchar(255);not null" json:"filePath"`
	ProcessingStatus Status     `gorm:"type:varchar(20);not null;default:'pending';index" json:"processingStatus"`
	ChunksCount      int        `gorm:"not null;default:0" json:"chunksCount"`
	ProcessedTime    *time.Time `gorm:"default:null" json:"processedTime"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Document) TableName() string {
	return "documents"
}
