package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultURL = "https://nr.doebi.at/thermobeacon"
	DefaultTimeout = 10 * time.Second
)

const (
	resultSuccess = "success"
	resultFailure = "failure"
	resultDropped = "dropped"
)

var postsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "thermobeacon_telemetry_posts_total",
	Help: "Telemetry posts by outcome. Dropped posts were submitted after the sink was closed.",
}, []string{"result"})

func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(postsCounter)
}

// Payload is the document posted for every decoded sensor sample.
type Payload struct {
	MAC string `json:"mac"`
	RSSI int `json:"rssi"`
	ID uint16 `json:"id"`
	Humidity float64 `json:"humidity"`
	Temperature float64 `json:"temperature"`
	Battery float64 `json:"battery"`
	Uptime int64 `json:"uptime"`
	Button bool `json:"button"`
}

// Sink accepts telemetry without ever blocking the caller. Delivery is best-effort:
// failures are counted and logged, never retried.
type Sink interface {
	Post(p Payload)
}

// Discard drops everything. Used when no telemetry endpoint is configured.
type Discard struct{}

func (Discard) Post(Payload) {}

type HTTPSink struct {
	url string
	client *http.Client

	// cancels posts still running once Close gives up on them.
	ctx context.Context
	cancel context.CancelFunc

	mu sync.Mutex
	closed bool
	inFlight errgroup.Group
}

func NewHTTPSink(url string, timeout time.Duration) *HTTPSink {
	ctx, cancel := context.WithCancel(context.Background())

	return &HTTPSink{
		url: url,
		client: &http.Client{Timeout: timeout},
		ctx: ctx,
		cancel: cancel,
	}
}

func (s *HTTPSink) Post(p Payload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		postsCounter.WithLabelValues(resultDropped).Inc()
		return
	}

	s.inFlight.Go(func() error {
		if err := s.post(p); err != nil {
			postsCounter.WithLabelValues(resultFailure).Inc()
			log.Warn().
				Err(err).
				Str("MAC", p.MAC).
				Msg("telemetry: failed to post sample")
		} else {
			postsCounter.WithLabelValues(resultSuccess).Inc()
		}

		// never fail the group, posts are independent.
		return nil
	})
}

func (s *HTTPSink) post(p Payload) error {
	body, err := json.Marshal(p)

	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(s.ctx, http.MethodPost, s.url, bytes.NewReader(body))

	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)

	if err != nil {
		return err
	}

	resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}

	log.Trace().
		Str("MAC", p.MAC).
		Int("Status", resp.StatusCode).
		Msg("telemetry: posted sample")

	return nil
}

// Close stops accepting posts and waits for in-flight ones until ctx is done. Posts still
// running at that point are aborted.
func (s *HTTPSink) Close(ctx context.Context) error {
	defer s.cancel()

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})

	go func() {
		s.inFlight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done

		return fmt.Errorf("telemetry: gave up waiting for in-flight posts: %w", ctx.Err())
	}
}
