// Package bletest provides in-memory fakes of the ble package interfaces.
package bletest

import (
	"net"
	"sync"

	goble "github.com/go-ble/ble"
	"github.com/robertof/go-thermobeacon/ble"
)

type OpKind string

const (
	OpWrite OpKind = "write"
	OpRead OpKind = "read"
	OpSubscribe OpKind = "subscribe"
	OpDisconnect OpKind = "disconnect"
)

type Op struct {
	Kind OpKind
	UUID ble.UUID
	Data []byte
}

// FakeConn records every operation performed on it. Behaviour is customized through
// the optional hooks, which are invoked without holding the internal lock.
type FakeConn struct {
	Address net.HardwareAddr

	OnWrite func(u ble.UUID, data []byte) error
	OnRead func(u ble.UUID) ([]byte, error)
	SubscribeErr error

	mu sync.Mutex
	ops []Op
	handlers map[string]func([]byte)
}

var _ ble.Conn = (*FakeConn)(nil)

func (c *FakeConn) record(op Op) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ops = append(c.ops, op)
}

func (c *FakeConn) Addr() net.HardwareAddr {
	return c.Address
}

func (c *FakeConn) WriteCharacteristic(u ble.UUID, data []byte) error {
	c.record(Op{Kind: OpWrite, UUID: u, Data: append([]byte(nil), data...)})

	if c.OnWrite != nil {
		return c.OnWrite(u, data)
	}

	return nil
}

func (c *FakeConn) ReadCharacteristic(u ble.UUID) ([]byte, error) {
	c.record(Op{Kind: OpRead, UUID: u})

	if c.OnRead != nil {
		return c.OnRead(u)
	}

	return nil, nil
}

func (c *FakeConn) Subscribe(u ble.UUID, onNotification func([]byte)) error {
	c.record(Op{Kind: OpSubscribe, UUID: u})

	if c.SubscribeErr != nil {
		return c.SubscribeErr
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handlers == nil {
		c.handlers = make(map[string]func([]byte))
	}

	c.handlers[u.String()] = onNotification

	return nil
}

func (c *FakeConn) Disconnect() {
	c.record(Op{Kind: OpDisconnect})
}

// Notify delivers a frame to the subscriber of u, if any. Reports whether a subscriber
// was found.
func (c *FakeConn) Notify(u ble.UUID, frame []byte) bool {
	c.mu.Lock()
	h := c.handlers[u.String()]
	c.mu.Unlock()

	if h == nil {
		return false
	}

	h(frame)

	return true
}

func (c *FakeConn) Ops() []Op {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]Op(nil), c.ops...)
}

// OpsOfKind returns the recorded operations of the given kind, in order.
func (c *FakeConn) OpsOfKind(kind OpKind) (ret []Op) {
	for _, op := range c.Ops() {
		if op.Kind == kind {
			ret = append(ret, op)
		}
	}

	return ret
}

type FakeAdvertisement struct {
	Name string
	Manufacturer []byte
	Address goble.Addr
	Rssi int
	ServiceUUIDs []goble.UUID
	IsConnectable bool
}

var _ ble.Advertisement = FakeAdvertisement{}

func (f FakeAdvertisement) LocalName() string {
	return f.Name
}

func (f FakeAdvertisement) ManufacturerData() []byte {
	return f.Manufacturer
}

func (f FakeAdvertisement) ServiceData() []goble.ServiceData {
	return nil
}

func (f FakeAdvertisement) Services() []goble.UUID {
	return f.ServiceUUIDs
}

func (f FakeAdvertisement) OverflowService() []goble.UUID {
	return nil
}

func (f FakeAdvertisement) TxPowerLevel() int {
	return 0
}

func (f FakeAdvertisement) Connectable() bool {
	return f.IsConnectable
}

func (f FakeAdvertisement) SolicitedService() []goble.UUID {
	return nil
}

func (f FakeAdvertisement) RSSI() int {
	return f.Rssi
}

func (f FakeAdvertisement) Addr() goble.Addr {
	return f.Address
}
