package thermobeacon

import (
	"github.com/robertof/go-thermobeacon/ble"
)

var (
	// Commands are written to this characteristic (handle 0x21 on known firmware).
	CommandCharacteristic = ble.UUID16(0xfff5)
	// Responses are read from, or notified on, this characteristic (handle 0x24).
	ResponseCharacteristic = ble.UUID16(0xfff3)
)

// Gateway issues command frames over an established connection. Transport errors are
// returned as-is and nothing is retried.
type Gateway struct {
	conn ble.Conn
}

func NewGateway(conn ble.Conn) *Gateway {
	return &Gateway{conn: conn}
}

// Send writes a single command frame.
func (g *Gateway) Send(frame []byte) error {
	return g.conn.WriteCharacteristic(CommandCharacteristic, frame)
}

// Exchange writes a command frame, then reads the response characteristic once.
func (g *Gateway) Exchange(frame []byte) ([]byte, error) {
	if err := g.Send(frame); err != nil {
		return nil, err
	}

	return g.conn.ReadCharacteristic(ResponseCharacteristic)
}

// ReadResponse reads the response characteristic without sending anything first.
func (g *Gateway) ReadResponse() ([]byte, error) {
	return g.conn.ReadCharacteristic(ResponseCharacteristic)
}

// Subscribe routes every response notification to onFrame.
func (g *Gateway) Subscribe(onFrame func([]byte)) error {
	return g.conn.Subscribe(ResponseCharacteristic, onFrame)
}
