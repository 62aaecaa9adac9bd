package collector

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"slices"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robertof/go-thermobeacon/ble"
	"github.com/robertof/go-thermobeacon/device/thermobeacon"
	"github.com/robertof/go-thermobeacon/telemetry"
	"github.com/robertof/go-thermobeacon/utils"
	"github.com/rs/zerolog/log"
	"golang.org/x/exp/maps"
)

var (
	advertisementsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "thermobeacon_advertisements_total",
		Help: "Advertisements received during scans, by whether they came from a ThermoBeacon.",
	}, []string{"result"})
	recordsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "thermobeacon_records_total",
		Help: "Manufacturer data entries decoded from advertisements, by record kind.",
	}, []string{"kind"})
)

// Broadcast is a single advertisement as seen by the reporter.
type Broadcast struct {
	Name string
	// manufacturer data payloads keyed by company ID.
	ManufacturerData map[uint16][]byte
	RSSI int
	Addr string
}

// The transport hands over the raw manufacturer AD field, company ID included.
func BroadcastFromAdvertisement(a ble.Advertisement) Broadcast {
	b := Broadcast{
		Name: a.LocalName(),
		RSSI: a.RSSI(),
	}

	if addr := a.Addr(); addr != nil {
		b.Addr = strings.ToLower(addr.String())
	}

	if md := a.ManufacturerData(); len(md) >= 2 {
		b.ManufacturerData = map[uint16][]byte{
			binary.LittleEndian.Uint16(md): md[2:],
		}
	}

	return b
}

type SampleRecorder interface {
	Record(addr string, rssi int, sample thermobeacon.SensorSample)
}

// Reporter decodes ThermoBeacon advertisements, prints one line per record and forwards
// sensor samples to telemetry.
type Reporter struct {
	Out io.Writer
	// optional.
	Sink telemetry.Sink
	Samples SampleRecorder
	// when set, only advertisements from this address are reported.
	Address net.HardwareAddr
}

func (r *Reporter) accepts(b Broadcast) bool {
	if b.Name != thermobeacon.LocalName {
		return false
	}

	return r.Address == nil || strings.EqualFold(b.Addr, r.Address.String())
}

// Handle processes one broadcast and returns the records decoded from it.
func (r *Reporter) Handle(b Broadcast) (records []thermobeacon.Record) {
	if !r.accepts(b) {
		advertisementsCounter.WithLabelValues("ignored").Inc()
		return nil
	}

	advertisementsCounter.WithLabelValues("accepted").Inc()

	keys := maps.Keys(b.ManufacturerData)
	slices.Sort(keys)

	for _, key := range keys {
		payload := b.ManufacturerData[key]
		rec, err := thermobeacon.DecodeAdvertisement(key, payload)

		if err != nil {
			recordsCounter.WithLabelValues("invalid").Inc()
			log.Warn().
				Err(err).
				Str("Addr", b.Addr).
				Uint16("Key", key).
				Hex("ManufacturerData", payload).
				Msg("collector: failed to decode advertisement")

			continue
		}

		recordsCounter.WithLabelValues(rec.Kind().String()).Inc()
		records = append(records, rec)

		log.Trace().
			Str("Addr", b.Addr).
			Int("RSSI", b.RSSI).
			Stringer("Record", rec).
			Msg("collector: decoded advertisement")

		switch rec := rec.(type) {
		case thermobeacon.SensorSample:
			r.reportSample(b, rec)
		case thermobeacon.MinMaxSummary:
			fmt.Fprintf(r.Out, "[%s] [%02x] Max=%5.2f°C at %.0fs, Min=%5.2f°C at %.0fs, RSSI=%d\n",
				b.Addr, rec.DeviceID, rec.MaxTemperature, rec.MaxTemperatureAt.Seconds(),
				rec.MinTemperature, rec.MinTemperatureAt.Seconds(), b.RSSI)
		}
	}

	return records
}

func (r *Reporter) reportSample(b Broadcast, s thermobeacon.SensorSample) {
	button := "Off"

	if s.ButtonPressed {
		button = "On "
	}

	fmt.Fprintf(r.Out, "[%s] [%02x] T= %5.2f°C, H = %3.2f%%, Button:%s, Battery : %02.0f%%, UpTime = %8.0fs, RSSI=%d\n",
		b.Addr, s.DeviceID, s.Temperature, s.Humidity, button, s.Battery, s.Uptime.Seconds(), b.RSSI)

	if sender, err := net.ParseMAC(b.Addr); err == nil &&
		!slices.Equal(sender, s.MAC) && !slices.Equal(sender, utils.Reverse(s.MAC)) {
		log.Warn().
			Str("Addr", b.Addr).
			Stringer("EmbeddedMAC", s.MAC).
			Msg("collector: sample carries a MAC address different from its sender")
	}

	if r.Samples != nil {
		r.Samples.Record(b.Addr, b.RSSI, s)
	}

	if r.Sink == nil {
		return
	}

	r.Sink.Post(telemetry.Payload{
		MAC: b.Addr,
		RSSI: b.RSSI,
		ID: s.DeviceID,
		Humidity: s.Humidity,
		Temperature: s.Temperature,
		Battery: s.Battery,
		Uptime: int64(s.Uptime.Seconds()),
		Button: s.ButtonPressed,
	})
}

type Scanner interface {
	ScanAll(ctx context.Context, onAdvertisement func(ble.Advertisement)) error
}

// Scan feeds every advertisement to the reporter until ctx is done. Reaching the end of
// the scan window or being interrupted is not an error.
func Scan(ctx context.Context, scanner Scanner, r *Reporter) error {
	err := scanner.ScanAll(ctx, func(a ble.Advertisement) {
		r.Handle(BroadcastFromAdvertisement(a))
	})

	if utils.IsContextDone(err) {
		log.Debug().Err(err).Msg("collector: scan finished")
		return nil
	}

	return err
}
