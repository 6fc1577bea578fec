package agent

import (
	"context"
	"io"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"seqpush/internal/config"
	"seqpush/internal/forwarder"
	"seqpush/internal/mapper"
	"seqpush/internal/metrics"
	"seqpush/internal/models"
)

// Package-level variables for the functions we want to make mockable.
var (
	readEventsFunc = forwarder.ReadEvents
)

// Emitter records counter increments and pushes them out.
type Emitter interface {
	Record(models.CounterData)
	Push(ctx context.Context) error
}

type Agent struct {
	cfg          *config.Config
	names        []string
	pushInterval time.Duration
	emitter      Emitter
	logger       log.Logger
}

// New builds an agent. A zero pushInterval pushes after every event.
func New(cfg *config.Config, pushInterval time.Duration, emitter Emitter, logger log.Logger) *Agent {
	return &Agent{
		cfg:          cfg,
		names:        mapper.ParsePropertyNames(cfg.PropertyNames),
		pushInterval: pushInterval,
		emitter:      emitter,
		logger:       logger,
	}
}

// Handle maps one event onto the counter and, when pushing per event,
// pushes it.
func (a *Agent) Handle(ctx context.Context, evt models.Event) error {
	data := mapper.FormatTemplate(evt, a.names)
	a.emitter.Record(data)
	level.Debug(a.logger).Log("msg", "recorded event", "resource", data.ResourceName, "message", data.RenderedMessage)

	if a.pushInterval > 0 {
		return nil
	}
	return a.emitter.Push(ctx)
}

// Run consumes events from r until it is exhausted or ctx is cancelled.
// Push failures are logged and counted but never stop the loop. The reader
// goroutine exits once r returns; callers reading a live stream close r on
// cancellation.
func (a *Agent) Run(ctx context.Context, r io.Reader) {
	readCtx, stopReading := context.WithCancel(ctx)
	defer stopReading()
	events := make(chan models.Event, 100)
	go readEventsFunc(readCtx, r, events, a.logger)

	var tick <-chan time.Time
	if a.pushInterval > 0 {
		ticker := time.NewTicker(a.pushInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	level.Info(a.logger).Log("msg", "event handler started", "counter", a.cfg.CounterName, "properties", len(a.names))

	for {
		select {
		case evt, ok := <-events:
			if !ok {
				level.Info(a.logger).Log("msg", "event stream ended")
				a.shutdown()
				return
			}
			if err := a.Handle(ctx, evt); err != nil {
				a.pushFailed(err)
				metrics.EventsHandled.WithLabelValues(metrics.OutcomeFailed).Inc()
				continue
			}
			metrics.EventsHandled.WithLabelValues(metrics.OutcomeOK).Inc()
		case <-tick:
			if err := a.emitter.Push(ctx); err != nil {
				a.pushFailed(err)
			}
		case <-ctx.Done():
			level.Info(a.logger).Log("msg", "shutdown signal received")
			a.shutdown()
			return
		}
	}
}

// shutdown flushes counts still waiting for the next tick. It uses its own
// context since the run context may already be cancelled.
func (a *Agent) shutdown() {
	if a.pushInterval <= 0 {
		return
	}
	if err := a.emitter.Push(context.Background()); err != nil {
		a.pushFailed(err)
	}
}

func (a *Agent) pushFailed(err error) {
	metrics.PushFailures.Inc()
	level.Error(a.logger).Log("msg", "push to pushgateway failed", "url", a.cfg.PushgatewayURL, "err", err)
}
