package telemetry

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

const (
	bufferSize    = 10_000
	flushInterval = 100 * time.Millisecond
	flushBatch    = 1000
	drainTimeout  = 2 * time.Second
)

const insertToolExecuted = `
	INSERT INTO tool_executed_events (
		execution_id, workspace_id, integration_id, integration_name,
		integration_type, tool_name, is_error, duration_ms, timestamp
	)
`

// ClickHouseWriter batches tool-executed events into ClickHouse from a
// background goroutine. Write() only enqueues.
type ClickHouseWriter struct {
	conn    driver.Conn
	buffer  chan *ToolExecutedEvent
	done    chan struct{}
	flushed chan struct{}
	logger  *zap.Logger
}

// NewClickHouseWriter connects to ClickHouse and starts the flush loop.
func NewClickHouseWriter(dsn string, logger *zap.Logger) (*ClickHouseWriter, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	if opts.TLS == nil {
		opts.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, err
	}
	return newClickHouseWriterWithConn(conn, logger), nil
}

func newClickHouseWriterWithConn(conn driver.Conn, logger *zap.Logger) *ClickHouseWriter {
	w := &ClickHouseWriter{
		conn:    conn,
		buffer:  make(chan *ToolExecutedEvent, bufferSize),
		done:    make(chan struct{}),
		flushed: make(chan struct{}),
		logger:  logger,
	}
	go w.flushLoop()
	return w
}

// Write queues an event. The event is dropped if the buffer is full.
func (w *ClickHouseWriter) Write(event *ToolExecutedEvent) {
	select {
	case w.buffer <- event:
	default:
		w.logger.Warn("clickhouse buffer full, dropping event",
			zap.String("execution_id", event.ExecutionID),
		)
	}
}

// Close drains buffered events and waits for the final flush.
func (w *ClickHouseWriter) Close() {
	close(w.done)
	<-w.flushed
}

func (w *ClickHouseWriter) flushLoop() {
	defer close(w.flushed)

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]*ToolExecutedEvent, 0, flushBatch)
	for {
		select {
		case event := <-w.buffer:
			batch = append(batch, event)
			if len(batch) >= flushBatch {
				w.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(batch)
				batch = batch[:0]
			}
		case <-w.done:
			batch = w.drain(batch)
			if len(batch) > 0 {
				w.flush(batch)
			}
			return
		}
	}
}

func (w *ClickHouseWriter) drain(batch []*ToolExecutedEvent) []*ToolExecutedEvent {
	deadline := time.After(drainTimeout)
	for {
		select {
		case event := <-w.buffer:
			batch = append(batch, event)
		case <-deadline:
			return batch
		default:
			return batch
		}
	}
}

func (w *ClickHouseWriter) flush(events []*ToolExecutedEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	batch, err := w.conn.PrepareBatch(ctx, insertToolExecuted)
	if err != nil {
		w.logger.Error("clickhouse prepare batch failed", zap.Error(err))
		return
	}

	for _, e := range events {
		var isError uint8
		if e.IsError {
			isError = 1
		}
		if err := batch.Append(
			e.ExecutionID,
			e.WorkspaceID,
			e.IntegrationID,
			e.IntegrationName,
			e.IntegrationType,
			e.ToolName,
			isError,
			e.DurationMs,
			e.Timestamp,
		); err != nil {
			w.logger.Error("clickhouse append event failed",
				zap.String("execution_id", e.ExecutionID),
				zap.Error(err),
			)
		}
	}

	if err := batch.Send(); err != nil {
		w.logger.Error("clickhouse batch send failed",
			zap.Int("batch_size", len(events)),
			zap.Error(err),
		)
	}
}

// LogWriter is a fallback EventWriter for local development.
type LogWriter struct {
	logger *zap.Logger
}

// NewLogWriter creates a LogWriter that outputs events to the given logger.
func NewLogWriter(logger *zap.Logger) *LogWriter {
	return &LogWriter{logger: logger}
}

func (w *LogWriter) Write(event *ToolExecutedEvent) {
	w.logger.Info("tool_executed_event",
		zap.String("execution_id", event.ExecutionID),
		zap.String("workspace_id", event.WorkspaceID),
		zap.String("integration_id", event.IntegrationID),
		zap.String("integration_name", event.IntegrationName),
		zap.String("integration_type", event.IntegrationType),
		zap.String("tool_name", event.ToolName),
		zap.Bool("is_error", event.IsError),
		zap.Float32("duration_ms", event.DurationMs),
	)
}

func (w *LogWriter) Close() {}
