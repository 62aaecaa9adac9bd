package ble

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/go-ble/ble"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	ErrCharacteristicNotFound = errors.New("characteristic not found")
	ErrNotificationsUnsupported = errors.New("characteristic does not support notifications")
)

var (
	successfulConnectionsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "thermobeacon_ble_successful_connections_total",
	})
	failedConnectionsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "thermobeacon_ble_failed_connections_total",
	})
	disconnectsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "thermobeacon_ble_disconnections_total",
	})
	notificationsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "thermobeacon_ble_notifications_total",
	})
)

// Conn is an established link to a peripheral. Characteristics are addressed by UUID
// and resolved through GATT discovery on first use.
type Conn interface {
	Addr() net.HardwareAddr
	WriteCharacteristic(u UUID, data []byte) error
	ReadCharacteristic(u UUID) ([]byte, error)
	// Subscribe enables notifications for the characteristic. onNotification is invoked
	// from the transport goroutine and receives a private copy of the frame.
	Subscribe(u UUID, onNotification func([]byte)) error
	// Disconnect tears down the link. Safe to call more than once.
	Disconnect()
}

type connection struct {
	client ble.Client
	addr net.HardwareAddr

	mu sync.Mutex
	profile *ble.Profile

	disconnectOnce sync.Once
}

// Open a connection to the specified device. The context bounds the connection attempt only.
func (h *Handle) Dial(ctx context.Context, addr net.HardwareAddr) (Conn, error) {
	client, err := h.dev.Dial(ctx, addr)

	if err != nil {
		failedConnectionsCounter.Inc()
		return nil, err
	}

	successfulConnectionsCounter.Inc()
	log.Debug().Stringer("Addr", addr).Msg("ble: successfully opened new connection to device")

	// spawn a watchdog tracking when the link goes away, whoever closed it.
	go func() {
		<-client.Disconnected()

		disconnectsCounter.Inc()
		log.Debug().Stringer("Addr", addr).Msg("ble: connection with device closed")
	}()

	return &connection{
		client: client,
		addr: addr,
	}, nil
}

func (c *connection) Addr() net.HardwareAddr {
	return c.addr
}

func (c *connection) characteristic(u UUID) (*ble.Characteristic, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.profile == nil {
		p, err := c.client.DiscoverProfile(false)

		if err != nil {
			return nil, fmt.Errorf("cannot discover profile for device: %w", err)
		}

		c.profile = p
	}

	for _, svc := range c.profile.Services {
		for _, char := range svc.Characteristics {
			if char.UUID.Equal(u) {
				return char, nil
			}
		}
	}

	return nil, fmt.Errorf("%w: %v", ErrCharacteristicNotFound, u)
}

func (c *connection) WriteCharacteristic(u UUID, data []byte) error {
	char, err := c.characteristic(u)

	if err != nil {
		return err
	}

	noRsp := char.Property & ble.CharWriteNR == ble.CharWriteNR &&
		char.Property & ble.CharWrite != ble.CharWrite

	log.Trace().
		Stringer("Addr", c.addr).
		Stringer("UUID", u).
		Hex("Data", data).
		Bool("NoResponse", noRsp).
		Msg("ble: writing characteristic")

	if err := c.client.WriteCharacteristic(char, data, noRsp); err != nil {
		return fmt.Errorf("failed to write characteristic '%v': %w", u, err)
	}

	return nil
}

func (c *connection) ReadCharacteristic(u UUID) ([]byte, error) {
	char, err := c.characteristic(u)

	if err != nil {
		return nil, err
	}

	data, err := c.client.ReadCharacteristic(char)

	if err != nil {
		return nil, fmt.Errorf("failed to read characteristic '%v': %w", u, err)
	}

	log.Trace().
		Stringer("Addr", c.addr).
		Stringer("UUID", u).
		Hex("Data", data).
		Msg("ble: read characteristic")

	return data, nil
}

func (c *connection) Subscribe(u UUID, onNotification func([]byte)) error {
	char, err := c.characteristic(u)

	if err != nil {
		return err
	}

	if char.CCCD == nil {
		return fmt.Errorf("%w: %v", ErrNotificationsUnsupported, u)
	}

	// prefer notifications, fall back to indications if that's all the peripheral offers.
	indicate := char.Property & ble.CharNotify != ble.CharNotify &&
		char.Property & ble.CharIndicate == ble.CharIndicate

	err = c.client.Subscribe(char, indicate, func(req []byte) {
		notificationsCounter.Inc()

		// the transport may reuse its buffer once we return.
		frame := make([]byte, len(req))
		copy(frame, req)

		onNotification(frame)
	})

	if err != nil {
		return fmt.Errorf("failed to subscribe to characteristic '%v': %w", u, err)
	}

	return nil
}

func (c *connection) Disconnect() {
	c.disconnectOnce.Do(func() {
		if err := c.client.CancelConnection(); err != nil {
			log.Debug().Err(err).Stringer("Addr", c.addr).Msg("ble: error while disconnecting")
		}
	})
}
