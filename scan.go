package main

import (
  "context"
  "net"
  "time"

  "github.com/prometheus/client_golang/prometheus"
  "github.com/robertof/go-thermobeacon/ble"
  "github.com/robertof/go-thermobeacon/collector"
  "github.com/robertof/go-thermobeacon/metrics"
  "github.com/robertof/go-thermobeacon/telemetry"
  "github.com/rs/zerolog/log"
  "github.com/spf13/cobra"
  "golang.org/x/sync/errgroup"
)

var scanOpts struct {
  address addressFlag
  duration time.Duration
}

var scanCmd = &cobra.Command{
  Use:   "scan",
  Short: "Print every advertisement received from nearby ThermoBeacons",
  Args:  cobra.NoArgs,
  RunE:  runScan,
}

func init() {
  addAddressFlag(scanCmd, &scanOpts.address, false)
  addDurationFlag(scanCmd, &scanOpts.duration, 20 * time.Second,
    "How long to scan for, in seconds or as a duration (0 to scan until interrupted)")

  rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
  flags := ble.FlagScanTypeActive | ble.FlagScanAllowDuplicates

  if scanOpts.address.addr != nil {
    flags |= ble.FlagEnableDeviceAllowList
  }

  handle, err := initBle(flags)

  if err != nil {
    return err
  }

  defer handle.Stop()

  if scanOpts.address.addr != nil {
    // the reporter filters on the address anyway, the controller filter only saves work.
    if err := handle.SetAllowListedAddresses([]net.HardwareAddr{scanOpts.address.addr}); err != nil {
      log.Warn().Err(err).Msg("Failed to set allow-listed addresses on the controller")
    }
  }

  var sink telemetry.Sink = telemetry.Discard{}

  if cfg.TelemetryURL != "" {
    httpSink := telemetry.NewHTTPSink(cfg.TelemetryURL, cfg.TelemetryTimeout)

    defer func() {
      ctx, cancel := context.WithTimeout(context.Background(), cfg.TelemetryTimeout)
      defer cancel()

      if err := httpSink.Close(ctx); err != nil {
        log.Warn().Err(err).Msg("Gave up waiting for pending telemetry posts")
      }
    }()

    sink = httpSink
  }

  samples := metrics.NewSamples()
  reporter := &collector.Reporter{
    Out: cmd.OutOrStdout(),
    Sink: sink,
    Samples: samples,
    Address: scanOpts.address.addr,
  }

  var ctx context.Context
  var cancel context.CancelFunc

  if scanOpts.duration > 0 {
    ctx, cancel = context.WithTimeout(cmd.Context(), scanOpts.duration)
  } else {
    ctx, cancel = context.WithCancel(cmd.Context())
  }

  defer cancel()

  ctx = ble.WrapContextWithSigHandler(ctx, cancel)

  log.Info().
    Dur("Duration", scanOpts.duration).
    Stringer("Addr", scanOpts.address.addr).
    Msg("Scanning for ThermoBeacon devices")

  eg, egCtx := errgroup.WithContext(ctx)

  if cfg.MetricsBind != "" {
    registry := prometheus.NewRegistry()

    ble.RegisterMetrics(registry)
    collector.RegisterMetrics(registry)
    telemetry.RegisterMetrics(registry)
    metrics.RegisterCollector(samples.Latest, registry)

    eg.Go(func() error {
      return metrics.Serve(egCtx, cfg.MetricsBind, registry)
    })
  }

  eg.Go(func() error {
    // stop the metrics server once the scan window is over.
    defer cancel()

    return collector.Scan(egCtx, handle, reporter)
  })

  return eg.Wait()
}
