package metrics

import (
  "fmt"
  "sync"
  "time"

  "github.com/prometheus/client_golang/prometheus"
  "github.com/robertof/go-thermobeacon/device/thermobeacon"
)

var (
  labels = []string{"addr", "id"}

  descTemperature = prometheus.NewDesc(
    "sensor_temperature_celsius",
    "Temperature reported by the beacon in Celsius.",
    labels,
    nil,
  )

  descHumidity = prometheus.NewDesc(
    "sensor_humidity_ratio",
    "Relative humidity reported by the beacon.",
    labels,
    nil,
  )

  descBattery = prometheus.NewDesc(
    "sensor_battery_ratio",
    "Battery percentage reported by the beacon.",
    labels,
    nil,
  )

  descUptime = prometheus.NewDesc(
    "sensor_uptime_seconds",
    "Time since the beacon was powered on.",
    labels,
    nil,
  )

  descRSSI = prometheus.NewDesc(
    "sensor_rssi_dbm",
    "Signal strength of the last advertisement received from the beacon.",
    labels,
    nil,
  )
)

// Sample is the last sensor reading received from a beacon.
type Sample struct {
  thermobeacon.SensorSample
  RSSI int
  ReceivedAt time.Time
}

type CollectFunc func() map[string]Sample

// Samples keeps the latest sample for every beacon address seen during a scan.
type Samples struct {
  mu sync.Mutex
  latest map[string]Sample
}

func NewSamples() *Samples {
  return &Samples{
    latest: make(map[string]Sample),
  }
}

func (s *Samples) Record(addr string, rssi int, sample thermobeacon.SensorSample) {
  s.mu.Lock()
  defer s.mu.Unlock()

  s.latest[addr] = Sample{
    SensorSample: sample,
    RSSI: rssi,
    ReceivedAt: time.Now(),
  }
}

// Latest returns a copy of the samples recorded so far, keyed by address.
func (s *Samples) Latest() map[string]Sample {
  s.mu.Lock()
  defer s.mu.Unlock()

  out := make(map[string]Sample, len(s.latest))

  for addr, sample := range s.latest {
    out[addr] = sample
  }

  return out
}

type collector struct {
  CollectFunc
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
  prometheus.DescribeByCollect(c, ch)
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
  for addr, sample := range c.CollectFunc() {
    id := fmt.Sprintf("%02x", sample.DeviceID)

    values := []struct{
      desc *prometheus.Desc
      value float64
    }{
      {descTemperature, sample.Temperature},
      {descHumidity, sample.Humidity / 100},
      {descBattery, sample.Battery / 100},
      {descUptime, sample.Uptime.Seconds()},
      {descRSSI, float64(sample.RSSI)},
    }

    for _, v := range values {
      m := prometheus.MustNewConstMetric(v.desc, prometheus.GaugeValue, v.value, addr, id)

      ch <- prometheus.NewMetricWithTimestamp(sample.ReceivedAt, m)
    }
  }
}

func RegisterCollector(f CollectFunc, reg prometheus.Registerer) {
  c := &collector{f}

  reg.MustRegister(c)
}
