package query

import (
	"context"
	"fmt"
	"sync"

	"github.com/any-hub/blog-em/internal/logging"
)

// MutationStatus 描述 mutation 的生命周期。
type MutationStatus string

const (
	MutationIdle    MutationStatus = "idle"
	MutationPending MutationStatus = "pending"
	MutationSuccess MutationStatus = "success"
	MutationError   MutationStatus = "error"
)

// MutationState 是最近一次调用的状态，不写入缓存。
type MutationState[Out any] struct {
	Status MutationStatus
	Err    error
	Data   Out
}

// MutationResult 是 Mutate 通道上的结果。
type MutationResult[Out any] struct {
	Data Out
	Err  error
}

// MutationFunc 执行写操作。
type MutationFunc[In, Out any] func(ctx context.Context, in In) (Out, error)

// MutationOptions 描述 mutation 的钩子。
type MutationOptions[In, Out any] struct {
	// Name 用于日志与指标。
	Name string
	// OnMutate 在请求前执行（乐观更新），返回的函数在失败时用于回滚。
	OnMutate func(ctx context.Context, c *Client, in In) (rollback func())
	// Reconcile 在成功后修补或失效缓存。
	Reconcile func(ctx context.Context, c *Client, out Out, in In) error
	// OnError 在失败并回滚之后调用。
	OnError func(err error, in In)
}

// Mutation 执行写操作并暴露状态；写操作从不自动重试。
type Mutation[In, Out any] struct {
	client *Client
	fn     MutationFunc[In, Out]
	opts   MutationOptions[In, Out]

	mu    sync.Mutex
	call  uint64
	state MutationState[Out]
}

// NewMutation 构造 mutation。
func NewMutation[In, Out any](client *Client, fn MutationFunc[In, Out], opts MutationOptions[In, Out]) *Mutation[In, Out] {
	if client == nil || fn == nil {
		panic("query: mutation requires a client and a function")
	}
	if opts.Name == "" {
		opts.Name = "mutation"
	}
	return &Mutation[In, Out]{
		client: client,
		fn:     fn,
		opts:   opts,
		state:  MutationState[Out]{Status: MutationIdle},
	}
}

// Execute 执行一次写操作并等待结果：idle -> pending -> success|error。
func (m *Mutation[In, Out]) Execute(ctx context.Context, in In) (Out, error) {
	var zero Out
	call := m.begin()

	var rollback func()
	if m.opts.OnMutate != nil {
		rollback = m.opts.OnMutate(ctx, m.client, in)
	}

	out, err := m.fn(ctx, in)
	if err != nil {
		if rollback != nil {
			rollback()
		}
		m.end(call, MutationState[Out]{Status: MutationError, Err: err})
		m.report(MutationError, err)
		if m.opts.OnError != nil {
			m.opts.OnError(err, in)
		}
		return zero, err
	}

	if m.opts.Reconcile != nil {
		if recErr := m.opts.Reconcile(ctx, m.client, out, in); recErr != nil {
			wrapped := fmt.Errorf("reconcile %s: %w", m.opts.Name, recErr)
			m.end(call, MutationState[Out]{Status: MutationError, Err: wrapped, Data: out})
			m.report(MutationError, wrapped)
			if m.opts.OnError != nil {
				m.opts.OnError(wrapped, in)
			}
			return out, wrapped
		}
	}

	m.end(call, MutationState[Out]{Status: MutationSuccess, Data: out})
	m.report(MutationSuccess, nil)
	return out, nil
}

// Mutate 在后台执行并通过只写一次的通道返回结果。
func (m *Mutation[In, Out]) Mutate(ctx context.Context, in In) <-chan MutationResult[Out] {
	ch := make(chan MutationResult[Out], 1)
	go func() {
		defer close(ch)
		out, err := m.Execute(ctx, in)
		ch <- MutationResult[Out]{Data: out, Err: err}
	}()
	return ch
}

// State 返回最近一次调用的状态。
func (m *Mutation[In, Out]) State() MutationState[Out] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Reset 回到 idle；仍在进行的调用不会再覆盖状态。
func (m *Mutation[In, Out]) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.call++
	m.state = MutationState[Out]{Status: MutationIdle}
}

func (m *Mutation[In, Out]) begin() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.call++
	m.state = MutationState[Out]{Status: MutationPending}
	return m.call
}

// end 只接受最近一次调用的结果。
func (m *Mutation[In, Out]) end(call uint64, state MutationState[Out]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if call != m.call {
		return
	}
	m.state = state
}

func (m *Mutation[In, Out]) report(status MutationStatus, err error) {
	m.client.opts.Metrics.ObserveMutation(m.opts.Name, string(status))
	entry := m.client.logger.WithFields(logging.MutationFields(m.opts.Name, string(status)))
	if err != nil {
		entry.WithError(err).Warn("mutation failed")
		return
	}
	entry.Debug("mutation complete")
}
