package ble

import (
  "fmt"
  "net"

  "github.com/go-ble/ble"
  "github.com/go-ble/ble/linux"
  "github.com/go-ble/ble/linux/hci/cmd"
  "github.com/prometheus/client_golang/prometheus"
  "github.com/robertof/go-thermobeacon/utils"
  "github.com/rs/zerolog/log"
)

type Advertisement = ble.Advertisement
type Addr = ble.Addr
type UUID = ble.UUID

type Handle struct {
  dev *linux.Device
  flags Flags
}

func UUID16(i uint16) UUID {
  return ble.UUID16(i)
}

func RegisterMetrics(reg prometheus.Registerer) {
  reg.MustRegister(
    successfulConnectionsCounter,
    failedConnectionsCounter,
    disconnectsCounter,
    notificationsCounter,
  )
}

func InitWithConnParams(deviceId int, connParams ConnParams, flags Flags) (*Handle, error) {
  scanParams := flags.ScanParameters()

  log.Debug().
    Stringer("ScanType", scanType(scanParams.LEScanType)).
    Stringer("FilterPolicy", filterPolicy(scanParams.ScanningFilterPolicy)).
    Stringer("ConnParams", &connParams).
    Stringer("Flags", flags).
    Int("DeviceID", deviceId).
    Msg("ble: initializing Bluetooth device")

  dev, err := linux.NewDevice(
    ble.OptDeviceID(deviceId),
    ble.OptScanParams(scanParams),
    ble.OptConnParams(connParams.AdapterOptions()),
  )

  if err != nil {
    return nil, fmt.Errorf("failed to init bluetooth device: %w", err)
  }

  ble.SetDefaultDevice(dev)

  return &Handle{
    dev: dev,
    flags: flags,
  }, nil
}

// Restrict scan results to the given addresses. Only effective when the handle was
// initialized with FlagEnableDeviceAllowList.
func (h *Handle) SetAllowListedAddresses(a []net.HardwareAddr) error {
  log.Debug().
    Array("DeviceAddresses", utils.ToZeroLogArray(a)).
    Msg("Allow-listing the requested Bluetooth devices")

  // clear the white list to make sure we're starting from an empty slate.
  var res cmd.LEClearWhiteListRP

  err := h.dev.HCI.Send(&cmd.LEClearWhiteList{}, &res)

  if err != nil {
    return fmt.Errorf("failed to clear allow-list: %w", err)
  }

  if res.Status != 0 {
    return fmt.Errorf("failed to clear allow-list: got status: %v", res.Status)
  }

  for _, addr := range a {
    if len(addr) != 6 {
      return fmt.Errorf("refusing to allow-list non-6 byte address %q", addr.String())
    }

    var res cmd.LEAddDeviceToWhiteListRP

    err := h.dev.HCI.Send(&cmd.LEAddDeviceToWhiteList{
      AddressType: 0x00, // public
      // HCI wants the address in little-endian order.
      Address: [6]byte(utils.Reverse(addr)),
    }, &res)

    if err != nil {
      return fmt.Errorf("failed to allow-list device %q: %w", addr.String(), err)
    }

    if res.Status != 0 {
      return fmt.Errorf("failed to allow-list device %q: got status: %v", addr.String(), res.Status)
    }
  }

  return nil
}

func (h *Handle) Stop() {
  if err := h.dev.Stop(); err != nil {
    log.Debug().Err(err).Msg("ble: failed to stop Bluetooth device")
  }
}
