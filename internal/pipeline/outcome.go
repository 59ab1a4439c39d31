// Package pipeline 定义了文档摄取流水线的两个处理阶段。
package pipeline

// Outcome 是单条消息处理结果的封闭集合。
// worker 循环只对这三种结果做分支，而不依赖异常式的兜底捕获。
type Outcome int

const (
	// Done 消息处理成功，已被消费。
	Done Outcome = iota
	// Retry 基础设施暂时不可用，消息应重新入队等待再次处理。
	Retry
	// Drop 消息级致命错误，消息进入死信而不再重试。
	Drop
)

// String 返回结果的可读名称。
func (o Outcome) String() string {
	switch o {
	case Done:
		return "done"
	case Retry:
		return "retry"
	case Drop:
		return "drop"
	default:
		return "unknown"
	}
}
