package main

import (
  "context"
  "os"
  "time"

  "github.com/robertof/go-thermobeacon/ble"
  "github.com/rs/zerolog"
  "github.com/rs/zerolog/log"
  "github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
  Use:   "thermobeacon",
  Short: "Scan, identify and dump ThermoBeacon BLE sensors",
  Long: `Talk to ThermoBeacon temperature/humidity beacons over Bluetooth Low Energy:

- scan: print (and optionally post) every advertisement received from nearby beacons
- identify: make a beacon flash its display
- dump: retrieve the whole history logged by a beacon`,
  PersistentPreRunE: setup,
  SilenceErrors:     true,
}

func main() {
  zerolog.DurationFieldUnit = time.Second
  zerolog.TimeFieldFormat = time.RFC3339Nano

  log.Logger = log.Output(zerolog.ConsoleWriter{
    Out: os.Stderr,
    TimeFormat: "15:04:05.000",
  })

  if err := rootCmd.ExecuteContext(context.Background()); err != nil {
    log.Error().Err(err).Msg("Command failed")
    os.Exit(1)
  }
}

func setup(cmd *cobra.Command, args []string) error {
  if err := bindEnvironment(cmd); err != nil {
    return err
  }

  if cfg.Trace {
    zerolog.SetGlobalLevel(zerolog.TraceLevel)
  } else if cfg.Debug {
    zerolog.SetGlobalLevel(zerolog.DebugLevel)
  } else {
    zerolog.SetGlobalLevel(zerolog.InfoLevel)
  }

  // arguments are valid past this point, don't print usage on runtime errors.
  cmd.SilenceUsage = true

  return nil
}

func initBle(flags ble.Flags) (*ble.Handle, error) {
  return ble.InitWithConnParams(cfg.BluetoothDeviceId, cfg.BluetoothConnParams, flags)
}

// Cancel the command context on SIGINT/SIGTERM.
func interruptibleContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
  ctx, cancel := context.WithCancel(cmd.Context())

  return ble.WrapContextWithSigHandler(ctx, cancel), cancel
}
