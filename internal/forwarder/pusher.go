package forwarder

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/prometheus/common/expfmt"

	"seqpush/internal/models"
)

// Label names of the pushed counter.
const (
	LabelApplicationName = "ApplicationName"
	LabelMessage         = "Message"
)

type PushOptions struct {
	URL         string
	CounterName string
	CounterHelp string
	Instance    string
	Timeout     time.Duration
	// Client defaults to an http.Client with Timeout set.
	Client *http.Client
}

// Pusher owns the pushed counter and the Pushgateway client. It is built
// once and shared by every event.
type Pusher struct {
	mu      sync.Mutex
	counter *prometheus.CounterVec
	pusher  *push.Pusher
	timeout time.Duration
}

// NewPusher registers the counter in a private registry and binds a push
// client to it. The counter name doubles as the Pushgateway job name.
func NewPusher(opts PushOptions) (*Pusher, error) {
	counter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: opts.CounterName,
			Help: opts.CounterHelp,
		},
		[]string{LabelApplicationName, LabelMessage},
	)
	registry := prometheus.NewRegistry()
	if err := registry.Register(counter); err != nil {
		return nil, fmt.Errorf("registering counter %q: %w", opts.CounterName, err)
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	p := push.New(opts.URL, opts.CounterName).
		Grouping("instance", opts.Instance).
		Gatherer(registry).
		Client(client).
		Format(expfmt.NewFormat(expfmt.TypeTextPlain))

	return &Pusher{counter: counter, pusher: p, timeout: opts.Timeout}, nil
}

// Record increments the counter labeled by data. Invalid UTF-8 in either
// label is replaced with U+FFFD since the client rejects such label values.
func (p *Pusher) Record(data models.CounterData) {
	p.counter.WithLabelValues(
		strings.ToValidUTF8(data.ResourceName, "\uFFFD"),
		strings.ToValidUTF8(data.RenderedMessage, "\uFFFD"),
	).Inc()
}

// Push sends the current counter state to the Pushgateway, replacing the
// series of the same name in the group and leaving others untouched.
func (p *Pusher) Push(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	if err := p.pusher.AddContext(ctx); err != nil {
		return fmt.Errorf("pushing to pushgateway: %w", err)
	}
	return nil
}
