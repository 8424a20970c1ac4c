package observability

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// StartSpan starts a new span from context
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, opts...)
}

// StartServiceSpan starts a span for service operations
func StartServiceSpan(ctx context.Context, service, operation string) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("%s.%s", service, operation),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("service.component", service),
			attribute.String("service.operation", operation),
		),
	)
}

// RecordError records an error on the span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSuccess marks the span as successful
func SetSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// AddEvent adds an event to the span
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// DatabaseMetrics holds database-related metrics
type DatabaseMetrics struct {
	queryDuration   metric.Float64Histogram
	queryCount      metric.Int64Counter
	errorCount      metric.Int64Counter
	connectionCount metric.Int64UpDownCounter
}

// NewDatabaseMetrics creates database metrics instruments
func NewDatabaseMetrics() (*DatabaseMetrics, error) {
	meter := otel.Meter(instrumentationName)

	queryDuration, err := meter.Float64Histogram(
		"db.query.duration",
		metric.WithDescription("Database query duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	queryCount, err := meter.Int64Counter(
		"db.query.count",
		metric.WithDescription("Total number of database queries"),
		metric.WithUnit("{queries}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"db.error.count",
		metric.WithDescription("Total number of database errors"),
		metric.WithUnit("{errors}"),
	)
	if err != nil {
		return nil, err
	}

	connectionCount, err := meter.Int64UpDownCounter(
		"db.connection.count",
		metric.WithDescription("Number of active database connections"),
		metric.WithUnit("{connections}"),
	)
	if err != nil {
		return nil, err
	}

	return &DatabaseMetrics{
		queryDuration:   queryDuration,
		queryCount:      queryCount,
		errorCount:      errorCount,
		connectionCount: connectionCount,
	}, nil
}

// RecordQuery records a database query metrics
func (m *DatabaseMetrics) RecordQuery(ctx context.Context, operation, table string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("db.operation", operation),
		attribute.String("db.sql.table", table),
	}

	m.queryCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.queryDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	if err != nil {
		m.errorCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// TraceDB wraps sql.DB with tracing
type TraceDB struct {
	db      *sql.DB
	system  string
	metrics *DatabaseMetrics
}

// NewTraceDB creates a traced database wrapper. system is the db.system
// attribute, for example "sqlite" or "postgresql".
func NewTraceDB(db *sql.DB, system string) (*TraceDB, error) {
	metrics, err := NewDatabaseMetrics()
	if err != nil {
		return nil, err
	}

	return &TraceDB{
		db:      db,
		system:  system,
		metrics: metrics,
	}, nil
}

// QueryContext executes a query with tracing
func (t *TraceDB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	ctx, span := t.startSpan(ctx, "DB Query", query)
	defer span.End()

	start := time.Now()
	rows, err := t.db.QueryContext(ctx, query, args...)
	t.finish(ctx, span, query, time.Since(start), err)

	return rows, err
}

// ExecContext executes a statement with tracing
func (t *TraceDB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	ctx, span := t.startSpan(ctx, "DB Exec", query)
	defer span.End()

	start := time.Now()
	result, err := t.db.ExecContext(ctx, query, args...)
	t.finish(ctx, span, query, time.Since(start), err)

	if err == nil {
		if rowsAffected, raErr := result.RowsAffected(); raErr == nil {
			span.SetAttributes(attribute.Int64("db.rows_affected", rowsAffected))
		}
	}

	return result, err
}

// QueryRowContext executes a query that returns a single row with tracing
func (t *TraceDB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	ctx, span := t.startSpan(ctx, "DB QueryRow", query)
	// Note: span.End() should be called after scanning the row
	// This is a limitation of the sql.Row interface

	start := time.Now()
	row := t.db.QueryRowContext(ctx, query, args...)
	t.finish(ctx, span, query, time.Since(start), row.Err())
	span.End()
	return row
}

// DB returns the underlying database connection
func (t *TraceDB) DB() *sql.DB {
	return t.db
}

func (t *TraceDB) startSpan(ctx context.Context, name, query string) (context.Context, trace.Span) {
	return StartSpan(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", t.system),
			attribute.String("db.statement", truncateQuery(query)),
		),
	)
}

func (t *TraceDB) finish(ctx context.Context, span trace.Span, query string, duration time.Duration, err error) {
	if err != nil && err != sql.ErrNoRows {
		RecordError(span, err)
	} else {
		SetSuccess(span)
	}
	span.SetAttributes(attribute.Int64("db.query_duration_ms", duration.Milliseconds()))

	operation, table := describeQuery(query)
	t.metrics.RecordQuery(ctx, operation, table, duration, err)
}

// describeQuery extracts the statement verb and first table name
func describeQuery(query string) (string, string) {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return "UNKNOWN", ""
	}

	operation := strings.ToUpper(fields[0])
	for i, f := range fields[:len(fields)-1] {
		switch strings.ToUpper(f) {
		case "FROM", "INTO", "UPDATE", "TABLE", "EXISTS":
			next := strings.Trim(fields[i+1], "(`\"")
			if next != "" && !strings.EqualFold(next, "NOT") {
				return operation, next
			}
		}
	}
	return operation, ""
}

func truncateQuery(query string) string {
	if len(query) > 500 {
		return query[:500] + "..."
	}
	return query
}

// BusinessMetrics holds custom business metrics. A nil *BusinessMetrics
// records nothing.
type BusinessMetrics struct {
	guestbookEntries metric.Int64Counter
	rsvps            metric.Int64Counter
	rsvpGuests       metric.Int64Counter
	uploads          metric.Int64Counter
	uploadBytes      metric.Int64Counter
	imageFailures    metric.Int64Counter
	timelineSessions metric.Int64UpDownCounter
}

// NewBusinessMetrics creates business metrics instruments
func NewBusinessMetrics() (*BusinessMetrics, error) {
	meter := otel.Meter(instrumentationName)

	guestbookEntries, err := meter.Int64Counter(
		"wedding.guestbook.entries",
		metric.WithDescription("Total number of guestbook entries"),
		metric.WithUnit("{entries}"),
	)
	if err != nil {
		return nil, err
	}

	rsvps, err := meter.Int64Counter(
		"wedding.rsvp.replies",
		metric.WithDescription("Total number of RSVP replies"),
		metric.WithUnit("{replies}"),
	)
	if err != nil {
		return nil, err
	}

	rsvpGuests, err := meter.Int64Counter(
		"wedding.rsvp.guests",
		metric.WithDescription("Guests announced in RSVP replies"),
		metric.WithUnit("{guests}"),
	)
	if err != nil {
		return nil, err
	}

	uploads, err := meter.Int64Counter(
		"wedding.photo.uploads",
		metric.WithDescription("Total number of guest photo uploads"),
		metric.WithUnit("{uploads}"),
	)
	if err != nil {
		return nil, err
	}

	uploadBytes, err := meter.Int64Counter(
		"wedding.photo.upload_bytes",
		metric.WithDescription("Bytes of guest photos stored"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	imageFailures, err := meter.Int64Counter(
		"wedding.timeline.image_failures",
		metric.WithDescription("Timeline images reported as failed by viewers"),
		metric.WithUnit("{images}"),
	)
	if err != nil {
		return nil, err
	}

	timelineSessions, err := meter.Int64UpDownCounter(
		"wedding.timeline.sessions",
		metric.WithDescription("Number of open timeline viewer sessions"),
		metric.WithUnit("{sessions}"),
	)
	if err != nil {
		return nil, err
	}

	return &BusinessMetrics{
		guestbookEntries: guestbookEntries,
		rsvps:            rsvps,
		rsvpGuests:       rsvpGuests,
		uploads:          uploads,
		uploadBytes:      uploadBytes,
		imageFailures:    imageFailures,
		timelineSessions: timelineSessions,
	}, nil
}

// RecordGuestbookEntry records a new guestbook entry
func (m *BusinessMetrics) RecordGuestbookEntry(ctx context.Context, side string, withPhoto bool) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("side", side),
		attribute.Bool("with_photo", withPhoto),
	}
	m.guestbookEntries.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRSVP records an attendance reply
func (m *BusinessMetrics) RecordRSVP(ctx context.Context, attendance, side string, guests int) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("attendance", attendance),
		attribute.String("side", side),
	}
	m.rsvps.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.rsvpGuests.Add(ctx, int64(guests), metric.WithAttributes(attrs...))
}

// RecordUpload records a guest photo upload by outcome
// (stored, rejected or failed)
func (m *BusinessMetrics) RecordUpload(ctx context.Context, outcome string, size int64) {
	if m == nil {
		return
	}
	m.uploads.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	if outcome == "stored" {
		m.uploadBytes.Add(ctx, size)
	}
}

// RecordImageFailure records an image a viewer could not display
func (m *BusinessMetrics) RecordImageFailure(ctx context.Context, origin string) {
	if m == nil {
		return
	}
	m.imageFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("origin", origin)))
}

// RecordTimelineSession adjusts the open session gauge by delta
func (m *BusinessMetrics) RecordTimelineSession(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.timelineSessions.Add(ctx, delta)
}
