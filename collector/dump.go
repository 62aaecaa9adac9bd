package collector

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robertof/go-thermobeacon/collector/model"
	"github.com/robertof/go-thermobeacon/device/thermobeacon"
	"github.com/rs/zerolog/log"
)

const DefaultDrainDelay = 500 * time.Millisecond

var sessionsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "thermobeacon_sessions_total",
	Help: "Connected sessions by operation and terminal state.",
}, []string{"operation", "state"})

type SessionState uint8

const (
	StateConnecting SessionState = iota
	StateQuerying
	StateStreaming
	StateDraining
	StateComplete
	StateFailed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "Connecting"
	case StateQuerying:
		return "Querying"
	case StateStreaming:
		return "Streaming"
	case StateDraining:
		return "Draining"
	case StateComplete:
		return "Complete"
	case StateFailed:
		return "Failed"
	default:
		panic("unknown SessionState value: " + strconv.Itoa(int(s)))
	}
}

type DumpOptions struct {
	// Bound on the connection attempt. Defaults to DefaultConnectTimeout.
	ConnectTimeout time.Duration
	// How long to wait for outstanding notifications once every chunk has been
	// requested. Defaults to DefaultDrainDelay.
	DrainDelay time.Duration
	// Invoked on every state transition, from the goroutine running Dump.
	OnStateChange func(SessionState)
}

// responses are appended from the transport goroutine and read once the session ends.
type responseBuffer struct {
	mu sync.Mutex
	responses []thermobeacon.DumpResponse
	invalid int
}

func (b *responseBuffer) append(r thermobeacon.DumpResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.responses = append(b.responses, r)
}

func (b *responseBuffer) skip() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.invalid += 1
}

func (b *responseBuffer) snapshot() ([]thermobeacon.DumpResponse, int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]thermobeacon.DumpResponse, len(b.responses))
	copy(out, b.responses)

	return out, b.invalid
}

type dumpSession struct {
	addr net.HardwareAddr
	opts DumpOptions
	state SessionState

	targetCount int
	retrievedSoFar int
	collected responseBuffer
}

func (s *dumpSession) transition(to SessionState) {
	log.Debug().
		Stringer("Addr", s.addr).
		Stringer("From", s.state).
		Stringer("To", to).
		Msg("collector: dump session state change")

	s.state = to

	if s.opts.OnStateChange != nil {
		s.opts.OnStateChange(to)
	}
}

// Never writes to the device: runs on the transport goroutine.
func (s *dumpSession) onNotification(frame []byte) {
	resp, err := thermobeacon.DecodeDumpResponse(frame)

	if err != nil {
		s.collected.skip()
		log.Warn().
			Err(err).
			Stringer("Addr", s.addr).
			Hex("Frame", frame).
			Msg("collector: skipping malformed dump response")

		return
	}

	log.Debug().
		Stringer("Addr", s.addr).
		Int("Offset", resp.Offset).
		Int("Count", resp.Count).
		Floats64("Data", resp.Data).
		Msg("collector: received dump response")

	s.collected.append(resp)
}

func (s *dumpSession) run(ctx context.Context, dialer Dialer) error {
	s.transition(StateConnecting)

	conn, err := connect(ctx, dialer, s.addr, s.opts.ConnectTimeout)

	if err != nil {
		return err
	}

	defer conn.Disconnect()

	gw := thermobeacon.NewGateway(conn)

	s.transition(StateQuerying)

	data, err := gw.Exchange(thermobeacon.EncodeQuery())

	if err != nil {
		return transportError("failed to query device", err)
	}

	query, err := thermobeacon.DecodeQueryResponse(data)

	if err != nil {
		return fmt.Errorf("failed to decode query response: %w", err)
	}

	s.targetCount = query.Count

	log.Debug().
		Stringer("Addr", s.addr).
		Int("TargetCount", s.targetCount).
		Msg("collector: device reported its record count")

	if s.targetCount == 0 {
		return nil
	}

	s.transition(StateStreaming)

	// must be in place before the first request, or early responses get lost.
	if err := gw.Subscribe(s.onNotification); err != nil {
		return transportError("failed to subscribe to responses", err)
	}

	// requests are pipelined: the device queues its own responses.
	for s.retrievedSoFar < s.targetCount {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunk := min(thermobeacon.MaxDumpChunk, s.targetCount - s.retrievedSoFar)
		frame, err := thermobeacon.EncodeDumpChunk(s.retrievedSoFar, chunk)

		if err != nil {
			return err
		}

		log.Trace().
			Int("Offset", s.retrievedSoFar).
			Int("Count", chunk).
			Msg("collector: requesting records")

		if err := gw.Send(frame); err != nil {
			return transportError(
				fmt.Sprintf("failed to request records %d-%d", s.retrievedSoFar, s.retrievedSoFar + chunk - 1),
				err,
			)
		}

		s.retrievedSoFar += chunk
	}

	s.transition(StateDraining)

	delay := s.opts.DrainDelay

	if delay <= 0 {
		delay = DefaultDrainDelay
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
	}

	// best effort: whatever is left in the response characteristic is only logged.
	if data, err := gw.ReadResponse(); err != nil {
		log.Warn().Err(err).Stringer("Addr", s.addr).Msg("collector: final drain read failed")
	} else {
		log.Debug().Stringer("Addr", s.addr).Hex("Data", data).Msg("collector: final drain read")
	}

	return nil
}

// Dump retrieves the whole history logged by the device. The connection is always closed
// before returning. On failure nothing collected so far is returned.
func Dump(ctx context.Context, dialer Dialer, addr net.HardwareAddr, opts DumpOptions) (*model.DumpResult, error) {
	s := &dumpSession{
		addr: addr,
		opts: opts,
	}

	err := s.run(ctx, dialer)
	responses, invalid := s.collected.snapshot()

	if err != nil {
		s.transition(StateFailed)
		sessionsCounter.WithLabelValues("dump", StateFailed.String()).Inc()

		log.Debug().
			Err(err).
			Stringer("Addr", addr).
			Int("DiscardedResponses", len(responses)).
			Msg("collector: dump failed, discarding partial data")

		return nil, err
	}

	s.transition(StateComplete)
	sessionsCounter.WithLabelValues("dump", StateComplete.String()).Inc()

	return &model.DumpResult{
		Addr: addr,
		TargetCount: s.targetCount,
		Requested: s.retrievedSoFar,
		Responses: responses,
		InvalidFrames: invalid,
	}, nil
}
