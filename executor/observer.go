package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hatlonely/sorm/log"
)

// Metrics 语句执行指标
type Metrics struct {
	statementCounter  *prometheus.CounterVec
	statementDuration *prometheus.HistogramVec
}

// NewMetrics 创建并注册指标，同名指标已注册时复用已有的
func NewMetrics(name string, registerer prometheus.Registerer) (*Metrics, error) {
	counter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: name + "_statements_total",
			Help: "Total number of executed statements",
		},
		[]string{"operation", "status"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    name + "_statement_duration_seconds",
			Help:    "Duration of executed statements in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		},
		[]string{"operation"},
	)

	if err := registerer.Register(counter); err != nil {
		are := prometheus.AlreadyRegisteredError{}
		if !errors.As(err, &are) {
			return nil, errors.Wrap(err, "register statement counter failed")
		}
		counter = are.ExistingCollector.(*prometheus.CounterVec)
	}
	if err := registerer.Register(duration); err != nil {
		are := prometheus.AlreadyRegisteredError{}
		if !errors.As(err, &are) {
			return nil, errors.Wrap(err, "register statement duration failed")
		}
		duration = are.ExistingCollector.(*prometheus.HistogramVec)
	}

	return &Metrics{
		statementCounter:  counter,
		statementDuration: duration,
	}, nil
}

// observer 为每条语句记录日志、指标和 span
type observer struct {
	name    string
	logger  log.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

func (o *observer) observe(ctx context.Context, operation string, statement string, args []any, fn func(context.Context) error) error {
	start := time.Now()

	var span trace.Span
	if o.tracer != nil {
		ctx, span = o.tracer.Start(ctx, fmt.Sprintf("%s.%s", o.name, operation),
			trace.WithAttributes(
				attribute.String("component", o.name),
				attribute.String("operation", operation),
				attribute.String("db.system", "sqlite"),
				attribute.String("db.statement", statement),
			),
		)
		defer span.End()
	}

	o.logger.DebugContext(ctx, "executing statement",
		"operation", operation,
		"statement", statement,
		"args", args,
	)

	err := fn(ctx)
	duration := time.Since(start)

	if span != nil {
		span.SetAttributes(attribute.Int64("duration_ms", duration.Milliseconds()))
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}

	if o.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		o.metrics.statementCounter.WithLabelValues(operation, status).Inc()
		o.metrics.statementDuration.WithLabelValues(operation).Observe(duration.Seconds())
	}

	if err != nil {
		o.logger.WarnContext(ctx, "statement failed",
			"operation", operation,
			"statement", statement,
			"duration_ms", duration.Milliseconds(),
			"error", err.Error(),
		)
	}

	return err
}

func newTracer(name string) trace.Tracer {
	return otel.Tracer(fmt.Sprintf("executor.%s", name))
}
