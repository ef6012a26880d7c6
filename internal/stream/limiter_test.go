package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/kline-sentinel/pkg/errors"
)

type LimiterTestSuite struct {
	suite.Suite
}

func TestLimiterSuite(t *testing.T) {
	suite.Run(t, new(LimiterTestSuite))
}

func (suite *LimiterTestSuite) TestSlidingWindow() {
	window := 100 * time.Millisecond
	limiter := newSlidingWindowLimiter(3, window)
	ctx := context.Background()

	var sent []time.Time

	for i := 0; i < 9; i++ {
		suite.NoError(limiter.Wait(ctx))

		now := time.Now()
		sent = append(sent, now)
		limiter.Record(now)
	}

	for i := 3; i < len(sent); i++ {
		suite.GreaterOrEqual(sent[i].Sub(sent[i-3]), window, "send %d", i)
	}

	// the first burst is not delayed
	suite.Less(sent[2].Sub(sent[0]), window)
}

func (suite *LimiterTestSuite) TestWaitHonoursContext() {
	limiter := newSlidingWindowLimiter(1, time.Hour)
	limiter.Record(time.Now())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	suite.ErrorIs(limiter.Wait(ctx), context.DeadlineExceeded)
}

func (suite *LimiterTestSuite) TestDisabled() {
	limiter := newSlidingWindowLimiter(0, time.Second)
	limiter.Record(time.Now())
	suite.NoError(limiter.Wait(context.Background()))
}

func (suite *LimiterTestSuite) TestOutboxFIFO() {
	box := newOutbox(0)
	ctx := context.Background()

	for i := uint64(1); i <= 3; i++ {
		suite.NoError(box.push(outboundMessage{id: i}))
	}

	suite.Equal(3, box.len())

	for i := uint64(1); i <= 3; i++ {
		msg, err := box.pop(ctx)
		suite.NoError(err)
		suite.Equal(i, msg.id)
	}
}

func (suite *LimiterTestSuite) TestOutboxBounded() {
	box := newOutbox(1)

	suite.NoError(box.push(outboundMessage{id: 1}))
	suite.True(errors.HasCode(box.push(outboundMessage{id: 2}), errors.ErrCodeOverloaded))
}

func (suite *LimiterTestSuite) TestOutboxPopWakesOnPush() {
	box := newOutbox(0)
	got := make(chan uint64, 1)

	go func() {
		msg, err := box.pop(context.Background())
		if err == nil {
			got <- msg.id
		}
	}()

	time.Sleep(20 * time.Millisecond)
	suite.NoError(box.push(outboundMessage{id: 7}))

	select {
	case id := <-got:
		suite.Equal(uint64(7), id)
	case <-time.After(time.Second):
		suite.Fail("pop did not wake up")
	}
}

func (suite *LimiterTestSuite) TestOutboxClose() {
	box := newOutbox(0)
	suite.NoError(box.push(outboundMessage{id: 1}))
	box.close()

	_, err := box.pop(context.Background())
	suite.True(errors.HasCode(err, errors.ErrCodeCancelled))
	suite.True(errors.HasCode(box.push(outboundMessage{id: 2}), errors.ErrCodeCancelled))
}
