// Package worker runs fire-and-forget tasks on a fixed set of goroutines.
// Tasks sharing a key always land on the same worker, so they run one at a
// time and in submission order.
package worker

import (
	"context"
	"fmt"
	"hash/fnv"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"

	"github.com/rxtech-lab/kline-sentinel/internal/logger"
	"github.com/rxtech-lab/kline-sentinel/pkg/errors"
)

// Task is a unit of work. A returned error is logged and otherwise ignored.
type Task func(ctx context.Context) error

// Config configures a KeyedPool.
type Config struct {
	// Workers is the number of goroutines
	Workers int `yaml:"workers" json:"workers" jsonschema:"title=Workers,default=8" validate:"gte=1"`
	// QueueSize is the per-worker queue length
	QueueSize int `yaml:"queue_size" json:"queue_size" jsonschema:"title=Queue Size,default=256" validate:"gte=1"`
}

// DefaultConfig returns the pool defaults.
func DefaultConfig() Config {
	return Config{Workers: 8, QueueSize: 256}
}

type job struct {
	key  string
	task Task
}

// KeyedPool executes tasks with per-key ordering.
type KeyedPool struct {
	name   string
	queues []chan job
	log    *logger.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	// OnDrop is called when a task is rejected because its worker queue is full.
	OnDrop func(key string)
	// OnFailure is called when a task returns an error or panics.
	OnFailure func(key string, err error)
}

// NewKeyedPool starts cfg.Workers goroutines.
func NewKeyedPool(name string, cfg Config, log *logger.Logger) *KeyedPool {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &KeyedPool{
		name:      name,
		queues:    make([]chan job, cfg.Workers),
		log:       log.Named(name),
		ctx:       ctx,
		cancel:    cancel,
		wg:        sync.WaitGroup{},
		mu:        sync.RWMutex{},
		closed:    false,
		OnDrop:    nil,
		OnFailure: nil,
	}

	for i := range p.queues {
		p.queues[i] = make(chan job, cfg.QueueSize)
		p.wg.Add(1)

		go p.run(p.queues[i])
	}

	return p
}

// Submit queues a task without blocking. It returns an Overloaded error when
// the worker for key is full and a Cancelled error after Close.
func (p *KeyedPool) Submit(key string, task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return errors.Newf(errors.ErrCodeCancelled, "%s pool is closed", p.name)
	}

	select {
	case p.queues[p.index(key)] <- job{key: key, task: task}:
		return nil
	default:
		if p.OnDrop != nil {
			p.OnDrop(key)
		}

		return errors.Newf(errors.ErrCodeOverloaded, "%s pool queue for %s is full", p.name, key)
	}
}

// Close stops accepting tasks, lets queued tasks finish and waits for the workers.
func (p *KeyedPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()

		return
	}

	p.closed = true
	for _, queue := range p.queues {
		close(queue)
	}
	p.mu.Unlock()

	p.wg.Wait()
	p.cancel()
}

func (p *KeyedPool) index(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))

	return int(h.Sum32() % uint32(len(p.queues)))
}

func (p *KeyedPool) run(queue chan job) {
	defer p.wg.Done()

	for j := range queue {
		if err := p.execute(j); err != nil {
			p.log.Warn("Task failed", zap.String("key", j.key), zap.Error(err))

			if p.OnFailure != nil {
				p.OnFailure(j.key, err)
			}
		}
	}
}

func (p *KeyedPool) execute(j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf(errors.ErrCodeUnknown, "task panicked: %v", r)
			p.log.Debug("Recovered task panic", zap.String("stack", string(debug.Stack())))
		}
	}()

	if err := j.task(p.ctx); err != nil {
		return fmt.Errorf("%s task: %w", p.name, err)
	}

	return nil
}
