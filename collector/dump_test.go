package collector_test

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/robertof/go-thermobeacon/ble"
	"github.com/robertof/go-thermobeacon/ble/bletest"
	"github.com/robertof/go-thermobeacon/collector"
	"github.com/robertof/go-thermobeacon/collector/model"
	"github.com/robertof/go-thermobeacon/device"
	"github.com/robertof/go-thermobeacon/device/thermobeacon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var deviceAddr, _ = net.ParseMAC("aa:bb:cc:dd:ee:ff")

type fakeDialer struct {
	conn *bletest.FakeConn
	err error
	dials int
}

func (d *fakeDialer) Dial(ctx context.Context, addr net.HardwareAddr) (ble.Conn, error) {
	d.dials += 1

	if d.err != nil {
		return nil, d.err
	}

	return d.conn, nil
}

type chunk struct {
	offset, count int
}

func queryResponse(count int) []byte {
	return []byte{0x01, byte(count), byte(count >> 8), byte(count >> 16)}
}

func dumpResponse(offset, count int) []byte {
	frame := []byte{0x07, byte(offset), byte(offset >> 8), byte(offset >> 16), byte(count)}

	for i := 0; i < count; i += 1 {
		// (offset + i) degrees, in 1/16th.
		raw := (offset + i) * 16
		frame = append(frame, byte(raw), byte(raw >> 8))
	}

	return frame
}

func isDumpCommand(op bletest.Op) bool {
	return op.Kind == bletest.OpWrite && len(op.Data) > 0 && op.Data[0] == 0x07
}

// simulated beacon storing `count` records and answering every dump command with a
// notification, unless respond is false.
func newFakeBeacon(count int, respond bool) *bletest.FakeConn {
	conn := &bletest.FakeConn{Address: deviceAddr}

	conn.OnRead = func(u ble.UUID) ([]byte, error) {
		return queryResponse(count), nil
	}

	conn.OnWrite = func(u ble.UUID, data []byte) error {
		if respond && data[0] == 0x07 {
			offset := int(data[1]) | int(data[2])<<8 | int(data[3])<<16
			conn.Notify(thermobeacon.ResponseCharacteristic, dumpResponse(offset, int(data[4])))
		}

		return nil
	}

	return conn
}

func requestedChunks(conn *bletest.FakeConn) (ret []chunk) {
	for _, op := range conn.Ops() {
		if isDumpCommand(op) {
			ret = append(ret, chunk{
				offset: int(op.Data[1]) | int(op.Data[2])<<8 | int(op.Data[3])<<16,
				count: int(op.Data[4]),
			})
		}
	}

	return ret
}

func runDump(t *testing.T, dialer collector.Dialer) ([]collector.SessionState, *model.DumpResult, error) {
	t.Helper()

	var states []collector.SessionState

	res, err := collector.Dump(context.Background(), dialer, deviceAddr, collector.DumpOptions{
		DrainDelay: time.Millisecond,
		OnStateChange: func(s collector.SessionState) {
			states = append(states, s)
		},
	})

	return states, res, err
}

func TestDump_ChunkSizesAddUp(t *testing.T) {
	for _, count := range []int{0, 1, 14, 15, 16, 30, 37, 100, 1000} {
		conn := newFakeBeacon(count, true)

		_, res, err := runDump(t, &fakeDialer{conn: conn})
		require.NoError(t, err, "count=%d", count)

		sum, next := 0, 0

		for _, c := range requestedChunks(conn) {
			assert.LessOrEqual(t, c.count, thermobeacon.MaxDumpChunk, "count=%d", count)
			assert.Greater(t, c.count, 0, "count=%d", count)
			assert.Equal(t, next, c.offset, "chunks must be contiguous (count=%d)", count)

			sum += c.count
			next = c.offset + c.count
		}

		assert.Equal(t, count, sum)
		assert.Equal(t, count, res.TargetCount)
		assert.Equal(t, count, res.Requested)
		assert.Equal(t, count, res.Records())
	}
}

func TestDump_ThirtySevenRecords(t *testing.T) {
	conn := newFakeBeacon(37, true)

	_, _, err := runDump(t, &fakeDialer{conn: conn})
	require.NoError(t, err)

	assert.Equal(t, []chunk{{0, 15}, {15, 15}, {30, 7}}, requestedChunks(conn))
}

func TestDump_EmptyDevice(t *testing.T) {
	conn := newFakeBeacon(0, true)

	states, res, err := runDump(t, &fakeDialer{conn: conn})
	require.NoError(t, err)

	assert.Equal(t, []collector.SessionState{
		collector.StateConnecting,
		collector.StateQuerying,
		collector.StateComplete,
	}, states)
	assert.Empty(t, requestedChunks(conn))
	assert.Empty(t, conn.OpsOfKind(bletest.OpSubscribe))
	assert.Len(t, conn.OpsOfKind(bletest.OpDisconnect), 1)
	assert.Empty(t, res.Responses)
}

func TestDump_ConnectFailure(t *testing.T) {
	connErr := errors.New("le-connection-abort-by-local")
	dialer := &fakeDialer{err: connErr}

	states, res, err := runDump(t, dialer)

	assert.Nil(t, res)
	assert.ErrorIs(t, err, collector.ErrTransport)
	assert.ErrorIs(t, err, connErr)
	assert.Equal(t, []collector.SessionState{
		collector.StateConnecting,
		collector.StateFailed,
	}, states)
	assert.Equal(t, 1, dialer.dials, "connect must not be retried")
}

func TestDump_SubscribesBeforeFirstChunk(t *testing.T) {
	conn := newFakeBeacon(20, true)

	_, _, err := runDump(t, &fakeDialer{conn: conn})
	require.NoError(t, err)

	subscribeAt, firstChunkAt := -1, -1

	for i, op := range conn.Ops() {
		if op.Kind == bletest.OpSubscribe && subscribeAt < 0 {
			subscribeAt = i
			assert.True(t, op.UUID.Equal(thermobeacon.ResponseCharacteristic))
		}

		if isDumpCommand(op) && firstChunkAt < 0 {
			firstChunkAt = i
		}
	}

	require.GreaterOrEqual(t, subscribeAt, 0)
	require.GreaterOrEqual(t, firstChunkAt, 0)
	assert.Less(t, subscribeAt, firstChunkAt)
}

func TestDump_CollectsNotifications(t *testing.T) {
	conn := newFakeBeacon(20, true)

	states, res, err := runDump(t, &fakeDialer{conn: conn})
	require.NoError(t, err)

	assert.Equal(t, []collector.SessionState{
		collector.StateConnecting,
		collector.StateQuerying,
		collector.StateStreaming,
		collector.StateDraining,
		collector.StateComplete,
	}, states)

	sorted := res.Sorted()
	require.Len(t, sorted, 2)
	assert.Equal(t, 0, sorted[0].Offset)
	assert.Equal(t, 15, sorted[1].Offset)
	assert.Equal(t, []float64{15, 16, 17, 18, 19}, sorted[1].Data)

	// query + final drain.
	assert.Len(t, conn.OpsOfKind(bletest.OpRead), 2)
	assert.Len(t, conn.OpsOfKind(bletest.OpDisconnect), 1)

	ops := conn.Ops()
	assert.Equal(t, bletest.OpDisconnect, ops[len(ops)-1].Kind, "disconnect must be the last operation")
}

func TestDump_SkipsMalformedNotifications(t *testing.T) {
	conn := newFakeBeacon(3, false)
	conn.OnWrite = func(u ble.UUID, data []byte) error {
		if data[0] == 0x07 {
			conn.Notify(thermobeacon.ResponseCharacteristic, []byte{0x07, 0x00})
			conn.Notify(thermobeacon.ResponseCharacteristic, dumpResponse(0, 3))
		}

		return nil
	}

	_, res, err := runDump(t, &fakeDialer{conn: conn})
	require.NoError(t, err)

	assert.Equal(t, 1, res.InvalidFrames)
	require.Len(t, res.Responses, 1)
	assert.Equal(t, []float64{0, 1, 2}, res.Responses[0].Data)
}

func TestDump_TransportErrorMidStream(t *testing.T) {
	busErr := errors.New("hci: bus error")
	conn := newFakeBeacon(40, true)
	writes := 0

	conn.OnWrite = func(u ble.UUID, data []byte) error {
		if data[0] != 0x07 {
			return nil
		}

		writes += 1

		if writes == 2 {
			return busErr
		}

		conn.Notify(thermobeacon.ResponseCharacteristic, dumpResponse(0, 15))

		return nil
	}

	states, res, err := runDump(t, &fakeDialer{conn: conn})

	assert.Nil(t, res, "partial data must not be returned")
	assert.ErrorIs(t, err, collector.ErrTransport)
	assert.ErrorIs(t, err, busErr)
	assert.Equal(t, collector.StateFailed, states[len(states)-1])
	assert.NotContains(t, states, collector.StateDraining)
	assert.Len(t, requestedChunks(conn), 2, "no request may follow a failed one")
	assert.Len(t, conn.OpsOfKind(bletest.OpDisconnect), 1)
}

func TestDump_InvalidQueryResponse(t *testing.T) {
	conn := newFakeBeacon(0, false)
	conn.OnRead = func(ble.UUID) ([]byte, error) {
		return []byte{0x01}, nil
	}

	_, res, err := runDump(t, &fakeDialer{conn: conn})

	assert.Nil(t, res)
	assert.ErrorIs(t, err, device.ErrInvalidData)
	assert.Empty(t, requestedChunks(conn))
	assert.Len(t, conn.OpsOfKind(bletest.OpDisconnect), 1)
}

func TestDump_SubscribeFailure(t *testing.T) {
	conn := newFakeBeacon(10, true)
	conn.SubscribeErr = ble.ErrNotificationsUnsupported

	_, res, err := runDump(t, &fakeDialer{conn: conn})

	assert.Nil(t, res)
	assert.ErrorIs(t, err, collector.ErrTransport)
	assert.ErrorIs(t, err, ble.ErrNotificationsUnsupported)
	assert.Empty(t, requestedChunks(conn))
	assert.Len(t, conn.OpsOfKind(bletest.OpDisconnect), 1)
}

func TestDump_DrainReadFailureIsNotFatal(t *testing.T) {
	conn := newFakeBeacon(5, true)
	reads := 0

	conn.OnRead = func(ble.UUID) ([]byte, error) {
		reads += 1

		if reads > 1 {
			return nil, errors.New("att: read timeout")
		}

		return queryResponse(5), nil
	}

	_, res, err := runDump(t, &fakeDialer{conn: conn})
	require.NoError(t, err)

	assert.Equal(t, 5, res.Records())
}

func TestDump_CanceledWhileDraining(t *testing.T) {
	conn := newFakeBeacon(5, true)
	ctx, cancel := context.WithCancel(context.Background())

	var states []collector.SessionState

	res, err := collector.Dump(ctx, &fakeDialer{conn: conn}, deviceAddr, collector.DumpOptions{
		DrainDelay: time.Hour,
		OnStateChange: func(s collector.SessionState) {
			states = append(states, s)

			if s == collector.StateDraining {
				cancel()
			}
		},
	})

	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, collector.StateFailed, states[len(states)-1])
	assert.Len(t, conn.OpsOfKind(bletest.OpDisconnect), 1)
}
