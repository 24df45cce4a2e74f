package services

import (
	"student-portal/logger"

	"github.com/panjf2000/ants/v2"
)

// IPool runs best-effort background work.
type IPool interface {
	Submit(task func())
	Release()
	Running() int
}

// Pool is a bounded goroutine pool.
type Pool struct {
	antsPool *ants.Pool
}

func NewPool(size int) (*Pool, error) {
	if size <= 0 {
		size = 16
	}
	p, err := ants.NewPool(size, ants.WithNonblocking(false), ants.WithPanicHandler(func(v interface{}) {
		logger.Default().WithFields(map[string]interface{}{"panic": v}).Error("background task panicked")
	}))
	if err != nil {
		return nil, err
	}
	return &Pool{antsPool: p}, nil
}

// Submit queues task. If the pool is closed the task runs on its own goroutine.
func (p *Pool) Submit(task func()) {
	if err := p.antsPool.Submit(task); err != nil {
		logger.Warn("pool rejected task: %v", err)
		go task()
	}
}

func (p *Pool) Release() {
	p.antsPool.Release()
}

func (p *Pool) Running() int {
	return p.antsPool.Running()
}

// inline runs tasks on the caller's goroutine.
type inline struct{}

func (inline) Submit(task func()) { task() }
func (inline) Release()           {}
func (inline) Running() int       { return 0 }
