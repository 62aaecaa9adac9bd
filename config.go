package main

import (
  "fmt"
  "net"
  "strconv"
  "strings"
  "time"

  "github.com/robertof/go-thermobeacon/ble"
  "github.com/robertof/go-thermobeacon/collector"
  "github.com/robertof/go-thermobeacon/device"
  "github.com/robertof/go-thermobeacon/telemetry"
  "github.com/spf13/cobra"
  "github.com/spf13/pflag"
  "github.com/spf13/viper"
)

const envPrefix = "THERMOBEACON"

type config struct {
  Debug, Trace bool
  BluetoothDeviceId int
  BluetoothConnParams ble.ConnParams
  ConnectTimeout time.Duration
  MetricsBind string
  TelemetryURL string
  TelemetryTimeout time.Duration
}

var cfg = config{
  BluetoothConnParams: ble.ConnParamsDefault,
}

func init() {
  registerFlags(rootCmd.PersistentFlags(), &cfg)
}

func registerFlags(fs *pflag.FlagSet, cfg *config) {
  fs.BoolVar(&cfg.Debug, "debug", false, "Enable debug logs")
  fs.BoolVar(&cfg.Trace, "trace", false, "Enable trace logs")
  fs.IntVar(&cfg.BluetoothDeviceId, "bluetooth-device", 0, "Bluetooth (HCI) device ID")
  fs.Var(&cfg.BluetoothConnParams, "bluetooth-connection-params",
    "Bluetooth connection parameters (one of 'default' or 'power-saving')")
  fs.DurationVar(&cfg.ConnectTimeout, "connect-timeout", collector.DefaultConnectTimeout,
    "Timeout for establishing a connection to a device")
  fs.StringVar(&cfg.MetricsBind, "metrics-bind", "",
    "Serve Prometheus metrics on this address while scanning (disabled when empty)")
  fs.StringVar(&cfg.TelemetryURL, "telemetry-url", telemetry.DefaultURL,
    "Where sensor samples received while scanning are posted (disabled when empty)")
  fs.DurationVar(&cfg.TelemetryTimeout, "telemetry-timeout", telemetry.DefaultTimeout,
    "Timeout for each telemetry post, also bounds the wait for pending posts on exit")
}

// Flags not given on the command line fall back to THERMOBEACON_<FLAG_NAME>. debug and
// trace also honor the bare DEBUG and TRACE variables.
func bindEnvironment(cmd *cobra.Command) error {
  v := viper.New()
  v.SetEnvPrefix(envPrefix)
  v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
  v.AllowEmptyEnv(true)
  v.AutomaticEnv()

  if err := v.BindEnv("debug", envPrefix + "_DEBUG", "DEBUG"); err != nil {
    return err
  }

  if err := v.BindEnv("trace", envPrefix + "_TRACE", "TRACE"); err != nil {
    return err
  }

  var err error

  cmd.Flags().VisitAll(func(f *pflag.Flag) {
    if err != nil || f.Changed || !v.IsSet(f.Name) {
      return
    }

    value := v.GetString(f.Name)

    // an empty variable only clears string flags.
    if value == "" && f.Value.Type() != "string" {
      return
    }

    err = cmd.Flags().Set(f.Name, value)
  })

  return err
}

// addressFlag validates the device address as soon as the command line is parsed.
type addressFlag struct {
  addr net.HardwareAddr
}

func (a *addressFlag) String() string {
  if a.addr == nil {
    return ""
  }

  return a.addr.String()
}

func (a *addressFlag) Type() string {
  return "address"
}

func (a *addressFlag) Set(v string) error {
  addr, err := device.ParseAddress(v)

  if err != nil {
    return err
  }

  a.addr = addr
  return nil
}

func addAddressFlag(cmd *cobra.Command, a *addressFlag, required bool) {
  cmd.Flags().Var(a, "mac", "Device address (aa:bb:cc:dd:ee:ff)")

  if required {
    cobra.CheckErr(cmd.MarkFlagRequired("mac"))
  }
}

// durationFlag accepts a bare number of seconds ("30") or a duration ("1m30s").
type durationFlag time.Duration

func (d *durationFlag) String() string {
  return time.Duration(*d).String()
}

func (d *durationFlag) Type() string {
  return "seconds"
}

func (d *durationFlag) Set(v string) error {
  var parsed time.Duration

  if secs, err := strconv.Atoi(v); err == nil {
    parsed = time.Duration(secs) * time.Second
  } else if parsed, err = time.ParseDuration(v); err != nil {
    return fmt.Errorf("invalid duration %q (want seconds or a duration like 1m30s)", v)
  }

  if parsed < 0 {
    return fmt.Errorf("negative duration %q", v)
  }

  *d = durationFlag(parsed)
  return nil
}

func addDurationFlag(cmd *cobra.Command, d *time.Duration, value time.Duration, usage string) {
  *d = value
  cmd.Flags().VarP((*durationFlag)(d), "duration", "t", usage)
}
