package ble

import (
  "strconv"
  "strings"

  "github.com/go-ble/ble/linux/hci/cmd"
)

type Flags int

const (
  // Run active scans, asking peripherals for their scan response (which carries the
  // local name on ThermoBeacons).
  FlagScanTypeActive Flags = 1 << iota
  // Only report peripherals programmed with `SetAllowListedAddresses()`.
  FlagEnableDeviceAllowList
  // Report every advertisement, including repeated broadcasts from the same peripheral.
  FlagScanAllowDuplicates
)

var flagNames = []struct {
  flag Flags
  name string
}{
  {FlagScanTypeActive, "active scan"},
  {FlagEnableDeviceAllowList, "device allow-list"},
  {FlagScanAllowDuplicates, "duplicates"},
}

func (f Flags) Has(flag Flags) bool {
  return f & flag == flag
}

func (f Flags) String() string {
  var names []string

  for _, n := range flagNames {
    if f.Has(n.flag) {
      names = append(names, n.name)
    }
  }

  if len(names) == 0 {
    return "none"
  }

  return strings.Join(names, ", ")
}

// ScanParameters translates the flags into the controller's scan configuration. Interval
// and window are equal, so the controller listens continuously.
func (f Flags) ScanParameters() cmd.LESetScanParameters {
  p := cmd.LESetScanParameters{
    LEScanInterval: 0x0004, // N * 0.625 msec
    LEScanWindow:   0x0004, // N * 0.625 msec
    OwnAddressType: 0x00,   // public
  }

  if f.Has(FlagScanTypeActive) {
    p.LEScanType = uint8(scanTypeActive)
  }

  if f.Has(FlagEnableDeviceAllowList) {
    p.ScanningFilterPolicy = uint8(filterPolicyAllowListedOnly)
  }

  return p
}

type scanType uint8

const (
  scanTypePassive scanType = iota
  scanTypeActive
)

func (s scanType) String() string {
  switch s {
  case scanTypeActive:
    return "Active"
  case scanTypePassive:
    return "Passive"
  default:
    panic("unknown scanType value: " + strconv.Itoa(int(s)))
  }
}

type filterPolicy uint8

const (
  filterPolicyAcceptAll filterPolicy = iota
  filterPolicyAllowListedOnly
)

func (f filterPolicy) String() string {
  switch f {
  case filterPolicyAcceptAll:
    return "Accept All"
  case filterPolicyAllowListedOnly:
    return "Allow-listed Only"
  default:
    panic("unknown filterPolicy value: " + strconv.Itoa(int(f)))
  }
}
