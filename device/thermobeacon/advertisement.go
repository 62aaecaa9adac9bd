package thermobeacon

import (
  "encoding/binary"
  "fmt"
  "net"
  "strconv"
  "time"

  "github.com/pkg/errors"
  "github.com/robertof/go-thermobeacon/device"
  "github.com/robertof/go-thermobeacon/utils"
)

// Local name broadcast by every ThermoBeacon.
const LocalName = "ThermoBeacon"

const (
  sensorSampleLength = 18
  minMaxSummaryLength = 20

  // battery voltage (mV) reported with a full battery.
  fullBatteryMillivolts = 3400
)

type Kind uint8

const (
  KindSensorSample Kind = iota
  KindMinMaxSummary
)

func (k Kind) String() string {
  switch k {
  case KindSensorSample:
    return "SensorSample"
  case KindMinMaxSummary:
    return "MinMaxSummary"
  default:
    panic("unknown Kind value: " + strconv.Itoa(int(k)))
  }
}

// Classify picks the record shape carried by a manufacturer payload. The length is the
// only discriminator the beacons provide.
func Classify(payload []byte) Kind {
  if len(payload) == sensorSampleLength {
    return KindSensorSample
  }

  return KindMinMaxSummary
}

// Record is a decoded advertisement, either a SensorSample or a MinMaxSummary.
type Record interface {
  Kind() Kind
  String() string
}

type SensorSample struct {
  // manufacturer data key, identifies the beacon model.
  DeviceID uint16
  // address embedded in the payload.
  MAC net.HardwareAddr

  Temperature float64
  Humidity float64
  Battery float64
  Uptime time.Duration
  ButtonPressed bool
}

func (SensorSample) Kind() Kind {
  return KindSensorSample
}

func (s SensorSample) String() string {
  return fmt.Sprintf("SensorSample[ID=%02x,Temperature=%.2f,Humidity=%.2f%%,Battery=%.0f%%,Uptime=%v,Button=%v]",
    s.DeviceID, s.Temperature, s.Humidity, s.Battery, s.Uptime, s.ButtonPressed)
}

type MinMaxSummary struct {
  DeviceID uint16
  MAC net.HardwareAddr

  MaxTemperature float64
  // device uptime when the maximum was recorded.
  MaxTemperatureAt time.Duration
  MinTemperature float64
  MinTemperatureAt time.Duration
}

func (MinMaxSummary) Kind() Kind {
  return KindMinMaxSummary
}

func (s MinMaxSummary) String() string {
  return fmt.Sprintf("MinMaxSummary[ID=%02x,Max=%.2f@%v,Min=%.2f@%v]",
    s.DeviceID, s.MaxTemperature, s.MaxTemperatureAt, s.MinTemperature, s.MinTemperatureAt)
}

func seconds(b []byte) time.Duration {
  return time.Duration(binary.LittleEndian.Uint32(b)) * time.Second
}

func payloadMAC(b []byte) net.HardwareAddr {
  // little-endian on the wire.
  return net.HardwareAddr(utils.Reverse(b[2:8]))
}

func DecodeSensorSample(key uint16, data []byte) (s SensorSample, err error) {
  if len(data) != sensorSampleLength {
    return s, errors.Wrapf(device.ErrInvalidData,
      "unexpected data length (%d) for sensor sample, want %d", len(data), sensorSampleLength)
  }

  bo := binary.LittleEndian

  s.DeviceID = key
  s.ButtonPressed = data[1] != 0
  s.MAC = payloadMAC(data)
  s.Battery = float64(bo.Uint16(data[8:])) * 100 / fullBatteryMillivolts
  s.Temperature = decodeTemperature(bo.Uint16(data[10:]))
  s.Humidity = decodeTemperature(bo.Uint16(data[12:]))
  s.Uptime = seconds(data[14:])

  if s.Battery > 100 {
    s.Battery = 100
  }

  if s.Humidity > 100 {
    s.Humidity = 100
  }

  return s, nil
}

func DecodeMinMaxSummary(key uint16, data []byte) (s MinMaxSummary, err error) {
  if len(data) < minMaxSummaryLength {
    return s, errors.Wrapf(device.ErrInvalidData,
      "unexpected data length (%d) for min/max summary, want >= %d", len(data), minMaxSummaryLength)
  }

  bo := binary.LittleEndian

  s.DeviceID = key
  s.MAC = payloadMAC(data)
  s.MaxTemperature = decodeTemperature(bo.Uint16(data[8:]))
  s.MaxTemperatureAt = seconds(data[10:])
  s.MinTemperature = decodeTemperature(bo.Uint16(data[14:]))
  s.MinTemperatureAt = seconds(data[16:])

  return s, nil
}

// DecodeAdvertisement classifies and decodes a single manufacturer data entry.
func DecodeAdvertisement(key uint16, data []byte) (rec Record, err error) {
  switch Classify(data) {
  case KindSensorSample:
    rec, err = DecodeSensorSample(key, data)
  default:
    rec, err = DecodeMinMaxSummary(key, data)
  }

  if err != nil {
    return nil, err
  }

  return rec, nil
}
