package mocks

//go:generate mockgen -destination=./mock_rule.go -package=mocks github.com/rxtech-lab/kline-sentinel/internal/rule Rule
//go:generate mockgen -destination=./mock_sink.go -package=mocks github.com/rxtech-lab/kline-sentinel/internal/notify Sink
//go:generate mockgen -destination=./mock_fetcher.go -package=mocks github.com/rxtech-lab/kline-sentinel/internal/history Fetcher
//go:generate mockgen -destination=./mock_transport.go -package=mocks github.com/rxtech-lab/kline-sentinel/internal/transport Transport
//go:generate mockgen -destination=./mock_manager.go -package=mocks github.com/rxtech-lab/kline-sentinel/internal/stream Manager
//go:generate mockgen -destination=./mock_processor_registry.go -package=mocks github.com/rxtech-lab/kline-sentinel/internal/processor Registry
//go:generate mockgen -destination=./mock_alert_sink.go -package=mocks github.com/rxtech-lab/kline-sentinel/internal/processor AlertSink
//go:generate mockgen -destination=./mock_listener.go -package=mocks github.com/rxtech-lab/kline-sentinel/internal/ingest Listener
