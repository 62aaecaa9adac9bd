package collector

import (
	"context"
	"net"
	"time"

	"github.com/robertof/go-thermobeacon/device/thermobeacon"
	"github.com/rs/zerolog/log"
)

// Identify asks the device to make itself noticeable. Nothing is read back: success means
// the command was written.
func Identify(ctx context.Context, dialer Dialer, addr net.HardwareAddr, connectTimeout time.Duration) (err error) {
	defer func() {
		state := StateComplete

		if err != nil {
			state = StateFailed
		}

		sessionsCounter.WithLabelValues("identify", state.String()).Inc()
	}()

	conn, err := connect(ctx, dialer, addr, connectTimeout)

	if err != nil {
		return err
	}

	defer conn.Disconnect()

	if err := thermobeacon.NewGateway(conn).Send(thermobeacon.EncodeIdentify()); err != nil {
		return transportError("failed to send identify command", err)
	}

	log.Debug().Stringer("Addr", addr).Msg("collector: identify command sent")

	return nil
}
