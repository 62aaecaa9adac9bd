package collector

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robertof/go-thermobeacon/ble"
	"github.com/rs/zerolog/log"
)

const DefaultConnectTimeout = 10 * time.Second

// ErrTransport marks failures of the wireless link: connect, write, read or subscribe.
var ErrTransport = errors.New("transport error")

// Dialer opens connections to peripherals. Implemented by *ble.Handle.
type Dialer interface {
	Dial(ctx context.Context, addr net.HardwareAddr) (ble.Conn, error)
}

func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(
		advertisementsCounter,
		recordsCounter,
		sessionsCounter,
	)
}

func transportError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrTransport, op, err)
}

// Open a connection, bounding only the connection attempt with timeout.
func connect(
	ctx context.Context,
	dialer Dialer,
	addr net.HardwareAddr,
	timeout time.Duration,
) (ble.Conn, error) {
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log.Debug().
		Stringer("Addr", addr).
		Dur("TimeoutSec", timeout).
		Msg("collector: connecting to device")

	conn, err := dialer.Dial(dialCtx, addr)

	if err != nil {
		return nil, transportError("failed to connect to device", err)
	}

	return conn, nil
}
