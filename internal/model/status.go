package model

import "errors"

// ErrInvalidTransition 表示不被状态机允许的文档状态转移。
var ErrInvalidTransition = errors.New("invalid document status transition")

// Status 是文档的处理状态。
// 状态沿 pending → chunked → embedded 单向推进；重新摄取会回到 chunked。
type Status string

const (
	// StatusPending 文档已创建，等待分块。
	StatusPending Status = "pending"
	// StatusChunked 分块已落库，分块消息已入队。
	StatusChunked Status = "chunked"
	// StatusEmbedded 全部分块均已携带向量。
	StatusEmbedded Status = "embedded"
)

// transitionSources 列出允许转移到目标状态的来源状态。
// 显式的转移表用来阻止两个 worker 同时认为文档是 pending 而重复分块。
var transitionSources = map[Status][]Status{
	// chunked→chunked 与 embedded→chunked 覆盖消息重复投递和重新摄取
	StatusChunked: {StatusPending, StatusChunked, StatusEmbedded},
	// embedded→embedded 覆盖最后一个分块消息的重复投递
	StatusEmbedded: {StatusChunked, StatusEmbedded},
}

// TransitionSources 返回允许进入 target 状态的来源状态列表。
// 仓储层用它构造受保护的条件更新。
func TransitionSources(target Status) []Status {
	return transitionSources[target]
}

// CanTransition 判断 from → to 是否为合法转移。
func CanTransition(from, to Status) bool {
	for _, s := range transitionSources[to] {
		if s == from {
			return true
		}
	}
	return false
}
