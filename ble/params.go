package ble

import (
  "fmt"
  "slices"
  "strings"

  "github.com/go-ble/ble/linux/hci/cmd"
)

type ConnParams string

const (
  ConnParamsDefault     ConnParams = "default"
  ConnParamsPowerSaving ConnParams = "power-saving"
)

var allConnParams = []ConnParams{ConnParamsDefault, ConnParamsPowerSaving}

// link timing negotiated for a connection, in controller units.
type connTiming struct {
  interval uint16           // N * 1.25 msec, used as both min and max
  latency uint16            // connection events the peripheral may skip
  supervisionTimeout uint16 // N * 10 msec
}

var connTimings = map[ConnParams]connTiming{
  // fast 7.5ms interval: a dump session is short and chatty.
  ConnParamsDefault: {interval: 0x0006, latency: 0, supervisionTimeout: 0x0048},
  // 300ms interval, 20 skippable events, 18s timeout. Keeps interval * (latency + 1)
  // under half the supervision timeout, as the link layer requires.
  ConnParamsPowerSaving: {interval: 0x00f0, latency: 0x0014, supervisionTimeout: 0x0708},
}

// pflag.Value
func (c *ConnParams) String() string {
  if *c == "" {
    return string(ConnParamsDefault)
  }

  return string(*c)
}

func (c *ConnParams) Type() string {
  return "conn-params"
}

func (c *ConnParams) Set(v string) error {
  if v == "" {
    *c = ConnParamsDefault
    return nil
  }

  p := ConnParams(strings.ToLower(v))

  if !slices.Contains(allConnParams, p) {
    return fmt.Errorf("unknown connection param %v (must be one of %v)", v, allConnParams)
  }

  *c = p
  return nil
}

func (c ConnParams) AdapterOptions() cmd.LECreateConnection {
  if c == "" {
    c = ConnParamsDefault
  }

  t, ok := connTimings[c]

  if !ok {
    panic("unknown Bluetooth connection param: " + c)
  }

  return cmd.LECreateConnection{
    LEScanInterval:        0x0004, // N * 0.625 msec
    LEScanWindow:          0x0004, // N * 0.625 msec
    InitiatorFilterPolicy: 0x00,   // connect to the given peer, not the allow-list
    PeerAddressType:       0x00,   // public
    OwnAddressType:        0x00,   // public
    ConnIntervalMin:       t.interval,
    ConnIntervalMax:       t.interval,
    ConnLatency:           t.latency,
    SupervisionTimeout:    t.supervisionTimeout,
  }
}
