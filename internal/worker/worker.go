package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"vector-pipeline-go/internal/pipeline"
	"vector-pipeline-go/pkg/kafka"
	"vector-pipeline-go/pkg/log"
	"vector-pipeline-go/pkg/queue"
)

// Handler 处理一条队列消息并给出结果分类。
type Handler func(ctx context.Context, raw json.RawMessage) (pipeline.Outcome, error)

// Config 描述一个后台工作者的运行参数。
type Config struct {
	// Name 用于日志标识，例如 "chunker"。
	Name string
	// Queue 是要消费的队列名。
	Queue string
	Store queue.Store
	// Handler 为空的工作者无法启动。
	Handler Handler
	// DeadLetter 可以为空，为空时 Drop 的消息只记日志。
	DeadLetter kafka.DeadLetterSink
	// WaitReady 非空时，工作者在其返回 true 之前不开始消费。
	WaitReady func(ctx context.Context) bool

	DequeueTimeout time.Duration
	StopTimeout    time.Duration
	ReadyPoll      time.Duration
	// RetryDelay 是消息重新入队后的退避时间，默认 5s。
	RetryDelay time.Duration
}

// Worker 在单独的 goroutine 中循环消费一个队列。
type Worker struct {
	cfg     Config
	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New 创建一个未启动的工作者。
func New(cfg Config) (*Worker, error) {
	if cfg.Handler == nil {
		return nil, fmt.Errorf("工作者 %s 缺少消息处理函数", cfg.Name)
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("工作者 %s 缺少队列存储", cfg.Name)
	}
	if cfg.DequeueTimeout <= 0 {
		cfg.DequeueTimeout = 30 * time.Second
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 10 * time.Second
	}
	if cfg.ReadyPoll <= 0 {
		cfg.ReadyPoll = 5 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		// 重新入队让队列始终非空，出队超时不再起节流作用，
		// 退避必须为正，否则基础设施故障时会空转
		cfg.RetryDelay = 5 * time.Second
	}
	return &Worker{cfg: cfg}, nil
}

// Start 启动后台消费循环。运行中重复调用无效；Stop 之后可以再次 Start。
func (w *Worker) Start() {
	if !w.running.CompareAndSwap(false, true) {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})
	done := w.done

	go func() {
		defer close(done)
		if !w.waitReady(ctx) {
			return
		}
		log.Infof("[Worker:%s] 开始消费队列 %s", w.cfg.Name, w.cfg.Queue)
		for w.running.Load() {
			w.pollOnce(ctx)
		}
	}()
}

// Stop 请求停止并等待当前消息处理完成，超时后强制取消。
func (w *Worker) Stop() {
	if !w.running.CompareAndSwap(true, false) {
		return
	}
	log.Infof("[Worker:%s] 正在停止...", w.cfg.Name)
	select {
	case <-w.done:
	case <-time.After(w.cfg.StopTimeout):
		log.Warnf("[Worker:%s] 等待退出超时, 强制取消", w.cfg.Name)
		w.cancel()
		<-w.done
	}
	if w.cancel != nil {
		w.cancel()
	}
	log.Infof("[Worker:%s] 已停止", w.cfg.Name)
}

// waitReady 按固定间隔轮询就绪条件，停止请求会打断等待。
func (w *Worker) waitReady(ctx context.Context) bool {
	if w.cfg.WaitReady == nil {
		return true
	}
	for w.running.Load() {
		if w.cfg.WaitReady(ctx) {
			return true
		}
		log.Infof("[Worker:%s] 依赖尚未就绪, %v 后重试", w.cfg.Name, w.cfg.ReadyPoll)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(w.cfg.ReadyPoll):
		}
	}
	return false
}

// pollOnce 阻塞等待一条消息并处理。单条消息的失败不会终止循环。
func (w *Worker) pollOnce(ctx context.Context) {
	raw, ok, err := w.cfg.Store.Dequeue(ctx, w.cfg.Queue, w.cfg.DequeueTimeout)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Errorf("[Worker:%s] 出队失败: %v", w.cfg.Name, err)
		select {
		case <-ctx.Done():
		case <-time.After(time.Second):
		}
		return
	}
	if !ok {
		// 等待超时，没有消息，继续下一轮
		return
	}
	w.handle(ctx, raw)
}

// handle 调用 Handler 并根据结果分类收尾，panic 按 Drop 处理。
func (w *Worker) handle(ctx context.Context, raw json.RawMessage) {
	outcome, err := w.safeInvoke(ctx, raw)
	switch outcome {
	case pipeline.Done:
		// 正常完成
	case pipeline.Retry:
		log.Warnf("[Worker:%s] 消息处理失败, 重新入队: %v", w.cfg.Name, err)
		if enqErr := w.cfg.Store.Enqueue(ctx, w.cfg.Queue, raw); enqErr != nil {
			log.Errorf("[Worker:%s] 重新入队失败, 消息丢弃: %v", w.cfg.Name, enqErr)
			w.deadLetter(ctx, raw, fmt.Sprintf("重新入队失败: %v", enqErr))
			return
		}
		if w.cfg.RetryDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(w.cfg.RetryDelay):
			}
		}
	case pipeline.Drop:
		log.Errorf("[Worker:%s] 消息无法处理, 转入死信: %v", w.cfg.Name, err)
		reason := "未知原因"
		if err != nil {
			reason = err.Error()
		}
		w.deadLetter(ctx, raw, reason)
	}
}

// safeInvoke 隔离 Handler 的 panic，避免单条坏消息拖垮整个工作者。
func (w *Worker) safeInvoke(ctx context.Context, raw json.RawMessage) (outcome pipeline.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome = pipeline.Drop
			err = fmt.Errorf("处理消息时发生 panic: %v", r)
		}
	}()
	return w.cfg.Handler(ctx, raw)
}

func (w *Worker) deadLetter(ctx context.Context, raw json.RawMessage, reason string) {
	if w.cfg.DeadLetter == nil {
		return
	}
	if err := w.cfg.DeadLetter.Publish(ctx, w.cfg.Queue, raw, reason); err != nil {
		log.Errorf("[Worker:%s] 写入死信队列失败: %v", w.cfg.Name, err)
	}
}
