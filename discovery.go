package main

import (
  "context"
  "encoding/binary"
  "slices"
  "time"

  "github.com/rs/zerolog/log"
  "github.com/spf13/cobra"
  "golang.org/x/exp/maps"

  "github.com/robertof/go-thermobeacon/ble"
  "github.com/robertof/go-thermobeacon/device/thermobeacon"
  "github.com/robertof/go-thermobeacon/utils"
)

var discoverOpts struct {
  duration time.Duration
}

var discoverCmd = &cobra.Command{
  Use:   "discover",
  Short: "List every BLE device in range, flagging ThermoBeacons",
  Args:  cobra.NoArgs,
  RunE:  runDiscovery,
}

func init() {
  addDurationFlag(discoverCmd, &discoverOpts.duration, 5 * time.Second,
    "How long to collect advertisements for, in seconds or as a duration")

  rootCmd.AddCommand(discoverCmd)
}

type deviceInfo struct {
  name string
  connectable bool
  services map[string]bool
  companies map[uint16]bool
}

func (d *deviceInfo) merge(a ble.Advertisement) {
  if d.name == "" {
    d.name = a.LocalName()
  }

  d.connectable = a.Connectable()

  for _, uuid := range a.Services() {
    d.services[uuid.String()] = true
  }

  if md := a.ManufacturerData(); len(md) >= 2 {
    d.companies[binary.LittleEndian.Uint16(md)] = true
  }
}

func runDiscovery(cmd *cobra.Command, args []string) error {
  log.Info().
    Dur("Duration", discoverOpts.duration).
    Msg("Starting in device discovery mode - collecting devices")

  handle, err := initBle(ble.FlagScanTypeActive)

  if err != nil {
    return err
  }

  defer handle.Stop()

  ctx, cancel := context.WithTimeout(cmd.Context(), discoverOpts.duration)
  defer cancel()

  ctx = ble.WrapContextWithSigHandler(ctx, cancel)

  devices := make(map[string]*deviceInfo)

  err = handle.ScanAll(ctx, func(a ble.Advertisement) {
    addr := a.Addr().String()
    info, ok := devices[addr]

    if !ok {
      info = &deviceInfo{
        services: make(map[string]bool),
        companies: make(map[uint16]bool),
      }
      devices[addr] = info
    }

    info.merge(a)

    log.Debug().
      Str("Addr", addr).
      Str("Name", a.LocalName()).
      Bool("Connectable", a.Connectable()).
      Int("RSSI", a.RSSI()).
      Hex("ManufacturerData", a.ManufacturerData()).
      Msg("Received device advertisement")
  })

  if err != nil && !utils.IsContextDone(err) {
    return err
  }

  log.Info().Int("Found", len(devices)).Msg("Finished device discovery")

  addrs := maps.Keys(devices)
  slices.Sort(addrs)

  for _, addr := range addrs {
    info := devices[addr]
    services := maps.Keys(info.services)
    companies := maps.Keys(info.companies)

    slices.Sort(services)
    slices.Sort(companies)

    log.Info().
      Str("Addr", addr).
      Str("Name", info.name).
      Bool("ThermoBeacon", info.name == thermobeacon.LocalName).
      Bool("Connectable", info.connectable).
      Strs("Services", services).
      Array("ManufacturerIDs", utils.ToZeroLogArrayf("%04x", companies)).
      Msg("Found device")
  }

  return nil
}
