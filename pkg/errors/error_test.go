package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ErrorTestSuite struct {
	suite.Suite
}

func TestErrorSuite(t *testing.T) {
	suite.Run(t, new(ErrorTestSuite))
}

func (suite *ErrorTestSuite) TestNewError() {
	err := New(ErrCodeInvalidChannel, "invalid channel")
	suite.NotNil(err)
	suite.Equal(ErrCodeInvalidChannel, err.Code)
	suite.Equal("invalid channel", err.Message)
	suite.Nil(err.Cause)
}

func (suite *ErrorTestSuite) TestNewfError() {
	err := Newf(ErrCodeProcessorNotFound, "processor %s not found", "BTCUSDT@1m")
	suite.Equal(ErrCodeProcessorNotFound, err.Code)
	suite.Equal("processor BTCUSDT@1m not found", err.Message)
}

func (suite *ErrorTestSuite) TestWrapError() {
	cause := errors.New("connection reset")
	err := Wrap(ErrCodeTransportRead, "failed to read frame", cause)
	suite.Equal(ErrCodeTransportRead, err.Code)
	suite.Equal(cause, err.Cause)
	suite.Equal(cause, err.Unwrap())
}

func (suite *ErrorTestSuite) TestWrapfError() {
	cause := errors.New("deadline")
	err := Wrapf(ErrCodeCorrelationTimeout, cause, "request %d timed out", 7)
	suite.Equal("request 7 timed out", err.Message)
	suite.Equal(cause, err.Cause)
}

func (suite *ErrorTestSuite) TestErrorString() {
	suite.Equal("[100] invalid parameter", New(ErrCodeInvalidParameter, "invalid parameter").Error())

	err := Wrap(ErrCodeTransportClosed, "connection closed", errors.New("EOF"))
	suite.Equal("[400] connection closed: EOF", err.Error())
}

func (suite *ErrorTestSuite) TestGetCode() {
	suite.Equal(ErrCodeCapacityExceeded, GetCode(New(ErrCodeCapacityExceeded, "full")))
	suite.Equal(ErrCodeUnknown, GetCode(errors.New("standard error")))

	// the outermost code wins
	inner := New(ErrCodeCancelled, "cancelled")
	suite.Equal(ErrCodeProtocol, GetCode(Wrap(ErrCodeProtocol, "subscribe failed", inner)))

	// codes survive fmt wrapping
	suite.True(HasCode(fmt.Errorf("outer: %w", inner), ErrCodeCancelled))
}

func (suite *ErrorTestSuite) TestHasCode() {
	err := New(ErrCodeOverloaded, "queue full")
	suite.True(HasCode(err, ErrCodeOverloaded))
	suite.False(HasCode(err, ErrCodeProtocol))
}

func (suite *ErrorTestSuite) TestIsAndAs() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeDeliveryFailed, "delivery failed", cause)
	suite.True(Is(err, cause))

	var target *Error
	suite.True(As(err, &target))
	suite.Equal(ErrCodeDeliveryFailed, target.Code)
}

func (suite *ErrorTestSuite) TestIsFatal() {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "transport closed", err: New(ErrCodeTransportClosed, "closed"), expected: true},
		{name: "transport write", err: New(ErrCodeTransportWrite, "write"), expected: true},
		{name: "timeout", err: New(ErrCodeCorrelationTimeout, "timeout"), expected: false},
		{name: "rule execution", err: New(ErrCodeRuleExecution, "rule"), expected: false},
		{name: "plain error", err: errors.New("plain"), expected: false},
		{name: "nil", err: nil, expected: false},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			suite.Equal(tc.expected, IsFatal(tc.err))
		})
	}
}

func (suite *ErrorTestSuite) TestErrorCodeValues() {
	suite.Equal(ErrorCode(1), ErrCodeUnknown)
	suite.Equal(ErrorCode(100), ErrCodeInvalidParameter)
	suite.Equal(ErrorCode(200), ErrCodeProtocol)
	suite.Equal(ErrorCode(300), ErrCodeCapacityExceeded)
	suite.Equal(ErrorCode(400), ErrCodeTransportClosed)
	suite.Equal(ErrorCode(500), ErrCodeProcessorNotFound)
	suite.Equal(ErrorCode(600), ErrCodeDeliveryFailed)
	suite.Equal(ErrorCode(700), ErrCodeConfigLoad)
}
