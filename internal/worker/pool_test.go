package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/kline-sentinel/internal/logger"
	"github.com/rxtech-lab/kline-sentinel/pkg/errors"
)

type KeyedPoolTestSuite struct {
	suite.Suite
	pool *KeyedPool
}

func TestKeyedPoolSuite(t *testing.T) {
	suite.Run(t, new(KeyedPoolTestSuite))
}

func (suite *KeyedPoolTestSuite) SetupTest() {
	suite.pool = NewKeyedPool("test", Config{Workers: 4, QueueSize: 64}, logger.NewNop())
}

func (suite *KeyedPoolTestSuite) TearDownTest() {
	suite.pool.Close()
}

func (suite *KeyedPoolTestSuite) TestSameKeyRunsInOrder() {
	var mu sync.Mutex
	var order []int
	var running int32
	var overlapped atomic.Bool

	for i := 0; i < 50; i++ {
		suite.NoError(suite.pool.Submit("BTCUSDT", func(context.Context) error {
			if atomic.AddInt32(&running, 1) > 1 {
				overlapped.Store(true)
			}
			defer atomic.AddInt32(&running, -1)

			mu.Lock()
			order = append(order, i)
			mu.Unlock()

			return nil
		}))
	}

	suite.pool.Close()

	suite.False(overlapped.Load())
	suite.Len(order, 50)
	for i, v := range order {
		suite.Equal(i, v)
	}
}

func (suite *KeyedPoolTestSuite) TestFailuresAreIsolated() {
	var failures atomic.Int32
	suite.pool.OnFailure = func(string, error) { failures.Add(1) }

	var ran atomic.Int32

	suite.NoError(suite.pool.Submit("a", func(context.Context) error { panic("boom") }))
	suite.NoError(suite.pool.Submit("a", func(context.Context) error { return fmt.Errorf("bad") }))
	suite.NoError(suite.pool.Submit("a", func(context.Context) error {
		ran.Add(1)

		return nil
	}))

	suite.pool.Close()

	suite.Equal(int32(2), failures.Load())
	suite.Equal(int32(1), ran.Load())
}

func (suite *KeyedPoolTestSuite) TestSubmitWhenFull() {
	pool := NewKeyedPool("small", Config{Workers: 1, QueueSize: 1}, logger.NewNop())

	var dropped atomic.Int32
	pool.OnDrop = func(string) { dropped.Add(1) }

	release := make(chan struct{})
	started := make(chan struct{})

	suite.NoError(pool.Submit("k", func(context.Context) error {
		close(started)
		<-release

		return nil
	}))
	<-started

	suite.NoError(pool.Submit("k", func(context.Context) error { return nil }))

	err := pool.Submit("k", func(context.Context) error { return nil })
	suite.True(errors.HasCode(err, errors.ErrCodeOverloaded))
	suite.Equal(int32(1), dropped.Load())

	close(release)
	pool.Close()
}

func (suite *KeyedPoolTestSuite) TestSubmitAfterClose() {
	suite.pool.Close()

	err := suite.pool.Submit("k", func(context.Context) error { return nil })
	suite.True(errors.HasCode(err, errors.ErrCodeCancelled))

	// second close is a no-op
	suite.pool.Close()
}

func (suite *KeyedPoolTestSuite) TestDifferentKeysRunInParallel() {
	pool := NewKeyedPool("parallel", Config{Workers: 16, QueueSize: 4}, logger.NewNop())
	defer pool.Close()

	// find two keys that hash to different workers
	keyA, keyB := "a", ""
	for i := 0; i < 100; i++ {
		candidate := fmt.Sprintf("k%d", i)
		if pool.index(candidate) != pool.index(keyA) {
			keyB = candidate

			break
		}
	}
	suite.Require().NotEmpty(keyB)

	release := make(chan struct{})
	suite.NoError(pool.Submit(keyA, func(context.Context) error {
		<-release

		return nil
	}))

	done := make(chan struct{})
	suite.NoError(pool.Submit(keyB, func(context.Context) error {
		close(done)

		return nil
	}))

	select {
	case <-done:
	case <-time.After(time.Second):
		suite.Fail("task on another worker was blocked")
	}

	close(release)
}
