package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
)

type MetricsTestSuite struct {
	suite.Suite
}

func TestMetricsSuite(t *testing.T) {
	suite.Run(t, new(MetricsTestSuite))
}

func (suite *MetricsTestSuite) TestCounters() {
	m := New()

	m.FrameReceived("event")
	m.FrameReceived("event")
	m.RequestSent("SUBSCRIBE")
	m.RuleRun("HIGH_VOLUME_RISE", "ok")
	m.AlertRaised("HIGH_VOLUME_RISE")
	m.Delivery("failed")
	m.TaskDropped("dispatch")
	m.Reconnected()
	m.SetActiveChannels(12)
	m.SetProcessors(3)
	m.SetQueueDepth(2)
	m.ObserveRequest("SUBSCRIBE", "ok", 20*time.Millisecond)

	suite.Equal(2.0, testutil.ToFloat64(m.framesReceived.WithLabelValues("event")))
	suite.Equal(1.0, testutil.ToFloat64(m.requestsSent.WithLabelValues("SUBSCRIBE")))
	suite.Equal(1.0, testutil.ToFloat64(m.ruleRuns.WithLabelValues("HIGH_VOLUME_RISE", "ok")))
	suite.Equal(1.0, testutil.ToFloat64(m.alertsRaised.WithLabelValues("HIGH_VOLUME_RISE")))
	suite.Equal(1.0, testutil.ToFloat64(m.deliveries.WithLabelValues("failed")))
	suite.Equal(1.0, testutil.ToFloat64(m.tasksDropped.WithLabelValues("dispatch")))
	suite.Equal(1.0, testutil.ToFloat64(m.reconnects))
	suite.Equal(12.0, testutil.ToFloat64(m.activeChannels))
	suite.Equal(3.0, testutil.ToFloat64(m.processors))
	suite.Equal(2.0, testutil.ToFloat64(m.queueDepth))
}

func (suite *MetricsTestSuite) TestNilIsSafe() {
	var m *Metrics

	suite.NotPanics(func() {
		m.FrameReceived("event")
		m.RequestSent("SUBSCRIBE")
		m.ObserveRequest("SUBSCRIBE", "ok", time.Second)
		m.SetActiveChannels(1)
		m.SetQueueDepth(1)
		m.TaskDropped("dispatch")
		m.RuleRun("r", "ok")
		m.AlertRaised("r")
		m.Delivery("ok")
		m.SetProcessors(1)
		m.Reconnected()
	})
}

func (suite *MetricsTestSuite) TestHandler() {
	m := New()
	m.RequestSent("LIST_SUBSCRIPTIONS")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	suite.NoError(err)
	suite.Equal(200, rec.Code)
	suite.Contains(string(body), `sentinel_stream_requests_sent_total{method="LIST_SUBSCRIPTIONS"} 1`)
}
