package thermobeacon

import (
  "encoding/binary"
  "fmt"

  "github.com/pkg/errors"
  "github.com/robertof/go-thermobeacon/device"
)

const (
  commandQuery    = 0x01
  commandIdentify = 0x04
  commandDump     = 0x07

  commandFrameLength = 7

  // Upper bound on the records requested by a single dump command. Larger requests don't
  // fit the payload the peripheral negotiates.
  MaxDumpChunk = 15

  // offsets are encoded in 24 bits.
  maxDumpOffset = 1<<24 - 1
)

type QueryResponse struct {
  // Number of records stored on the device.
  Count int
}

type DumpResponse struct {
  Offset int
  Count int
  Data []float64
}

func (r DumpResponse) String() string {
  return fmt.Sprintf("dump[offset=%d,count=%d,data=%v]", r.Offset, r.Count, r.Data)
}

func newCommand(cmd byte) []byte {
  frame := make([]byte, commandFrameLength)
  frame[0] = cmd

  return frame
}

func putUint24(b []byte, v int) {
  b[0] = byte(v)
  b[1] = byte(v >> 8)
  b[2] = byte(v >> 16)
}

func uint24(b []byte) int {
  return int(b[0]) | int(b[1])<<8 | int(b[2])<<16
}

func EncodeQuery() []byte {
  return newCommand(commandQuery)
}

func EncodeIdentify() []byte {
  return newCommand(commandIdentify)
}

// EncodeDumpChunk builds a request for `count` logged records starting at `offset`.
func EncodeDumpChunk(offset, count int) ([]byte, error) {
  if count <= 0 || count > MaxDumpChunk {
    return nil, fmt.Errorf("dump chunk size %d out of range [1, %d]", count, MaxDumpChunk)
  }

  if offset < 0 || offset > maxDumpOffset {
    return nil, fmt.Errorf("dump offset %d out of range [0, %d]", offset, maxDumpOffset)
  }

  frame := newCommand(commandDump)
  putUint24(frame[1:], offset)
  frame[4] = byte(count)

  return frame, nil
}

func DecodeQueryResponse(data []byte) (r QueryResponse, err error) {
  if len(data) < 4 {
    return r, errors.Wrapf(device.ErrInvalidData,
      "unexpected query response length (%d), want >= 4", len(data))
  }

  r.Count = uint24(data[1:])

  return r, nil
}

func DecodeDumpResponse(data []byte) (r DumpResponse, err error) {
  if len(data) < 5 {
    return r, errors.Wrapf(device.ErrInvalidData,
      "unexpected dump response length (%d), want >= 5", len(data))
  }

  if data[0] != commandDump {
    return r, errors.Wrapf(device.ErrCorruptedData,
      "unexpected dump response type %#02x", data[0])
  }

  r.Offset = uint24(data[1:])
  r.Count = int(data[4])

  values := data[5:]

  if len(values) < r.Count * 2 {
    return r, errors.Wrapf(device.ErrInvalidData,
      "dump response announces %d values but carries %d bytes", r.Count, len(values))
  }

  r.Data = make([]float64, r.Count)

  for i := range r.Data {
    r.Data[i] = decodeTemperature(binary.LittleEndian.Uint16(values[i*2:]))
  }

  return r, nil
}

// Temperatures are sent in 1/16th of a degree. Raw values above 4000 degrees are
// negative and wrap around 4096.
func decodeTemperature(raw uint16) float64 {
  v := float64(raw) / 16.0

  if v > 4000 {
    v -= 4096
  }

  return v
}
