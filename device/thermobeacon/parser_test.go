package thermobeacon_test

import (
  "errors"
  "net"
  "reflect"
  "testing"
  "time"

  "github.com/robertof/go-thermobeacon/device"
  "github.com/robertof/go-thermobeacon/device/thermobeacon"
)

var beaconMAC, _ = net.ParseMAC("aa:bb:cc:dd:ee:ff")

func TestClassify(t *testing.T) {
  for length := 0; length <= 32; length += 1 {
    want := thermobeacon.KindMinMaxSummary

    if length == 18 {
      want = thermobeacon.KindSensorSample
    }

    if got := thermobeacon.Classify(make([]byte, length)); got != want {
      t.Fatalf("Classify(len=%d) = %v, wanted %v", length, got, want)
    }
  }
}

func TestSensorSample(t *testing.T) {
  manufacturerData := []byte{
    0x00, 0x00,
    0xff, 0xee, 0xdd, 0xcc, 0xbb, 0xaa,
    0x48, 0x0d, // 3400 mV
    0x78, 0x01, // 23.5
    0xd4, 0x02, // 45.25
    0xd2, 0x04, 0x00, 0x00, // 1234 s
  }

  got, err := thermobeacon.DecodeAdvertisement(0x10, manufacturerData)

  if err != nil {
    t.Fatalf("DecodeAdvertisement(%x) got error: %v", manufacturerData, err)
  }

  want := thermobeacon.SensorSample{
    DeviceID:      0x10,
    MAC:           beaconMAC,
    Temperature:   23.5,
    Humidity:      45.25,
    Battery:       100,
    Uptime:        1234 * time.Second,
    ButtonPressed: false,
  }

  if !reflect.DeepEqual(got, want) {
    t.Fatalf("DecodeAdvertisement(%x): got %+#v, wanted %+#v", manufacturerData, got, want)
  }
}

func TestSensorSample_NegativeTemperatureAndButton(t *testing.T) {
  manufacturerData := []byte{
    0x00, 0x01,
    0xff, 0xee, 0xdd, 0xcc, 0xbb, 0xaa,
    0x98, 0x08, // 2200 mV
    0xb0, 0xff, // -5.0
    0x50, 0x06, // 101, capped to 100
    0x00, 0x00, 0x00, 0x00,
  }

  got, err := thermobeacon.DecodeSensorSample(0x11, manufacturerData)

  if err != nil {
    t.Fatalf("DecodeSensorSample(%x) got error: %v", manufacturerData, err)
  }

  if got.Temperature != -5 {
    t.Fatalf("Temperature: got %v, wanted -5", got.Temperature)
  }

  if got.Humidity != 100 {
    t.Fatalf("Humidity: got %v, wanted 100", got.Humidity)
  }

  if !got.ButtonPressed {
    t.Fatalf("ButtonPressed: got false, wanted true")
  }

  if want := 2200.0 * 100 / 3400; got.Battery != want {
    t.Fatalf("Battery: got %v, wanted %v", got.Battery, want)
  }
}

func TestSensorSample_BatteryCapped(t *testing.T) {
  manufacturerData := make([]byte, 18)
  manufacturerData[8], manufacturerData[9] = 0x10, 0x0e // 3600 mV

  got, err := thermobeacon.DecodeSensorSample(0x10, manufacturerData)

  if err != nil {
    t.Fatalf("DecodeSensorSample(%x) got error: %v", manufacturerData, err)
  }

  if got.Battery != 100 {
    t.Fatalf("Battery: got %v, wanted 100", got.Battery)
  }
}

func TestMinMaxSummary(t *testing.T) {
  manufacturerData := []byte{
    0x00, 0x00,
    0xff, 0xee, 0xdd, 0xcc, 0xbb, 0xaa,
    0x90, 0x01, // 25.0
    0x64, 0x00, 0x00, 0x00, // 100 s
    0x20, 0x01, // 18.0
    0xc8, 0x00, 0x00, 0x00, // 200 s
  }

  got, err := thermobeacon.DecodeAdvertisement(0x10, manufacturerData)

  if err != nil {
    t.Fatalf("DecodeAdvertisement(%x) got error: %v", manufacturerData, err)
  }

  want := thermobeacon.MinMaxSummary{
    DeviceID:         0x10,
    MAC:              beaconMAC,
    MaxTemperature:   25,
    MaxTemperatureAt: 100 * time.Second,
    MinTemperature:   18,
    MinTemperatureAt: 200 * time.Second,
  }

  if !reflect.DeepEqual(got, want) {
    t.Fatalf("DecodeAdvertisement(%x): got %+#v, wanted %+#v", manufacturerData, got, want)
  }
}

func TestMinMaxSummary_TooShort(t *testing.T) {
  for _, length := range []int{0, 9, 17, 19} {
    rec, err := thermobeacon.DecodeAdvertisement(0x10, make([]byte, length))

    if !errors.Is(err, device.ErrInvalidData) {
      t.Fatalf("DecodeAdvertisement(len=%d): got error %v, wanted ErrInvalidData", length, err)
    }

    if rec != nil {
      t.Fatalf("DecodeAdvertisement(len=%d): got record %v alongside error", length, rec)
    }
  }
}

func TestSensorSample_WrongLength(t *testing.T) {
  _, err := thermobeacon.DecodeSensorSample(0x10, make([]byte, 20))

  if !errors.Is(err, device.ErrInvalidData) {
    t.Fatalf("DecodeSensorSample(len=20): got error %v, wanted ErrInvalidData", err)
  }
}
