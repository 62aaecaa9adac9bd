package main

import (
  "fmt"

  "github.com/robertof/go-thermobeacon/collector"
  "github.com/rs/zerolog/log"
  "github.com/spf13/cobra"
)

var identifyOpts struct {
  address addressFlag
}

var identifyCmd = &cobra.Command{
  Use:   "identify",
  Short: "Make a ThermoBeacon flash its display",
  Args:  cobra.NoArgs,
  RunE: func(cmd *cobra.Command, args []string) error {
    handle, err := initBle(0)

    if err != nil {
      return err
    }

    defer handle.Stop()

    ctx, cancel := interruptibleContext(cmd)
    defer cancel()

    if err := collector.Identify(ctx, handle, identifyOpts.address.addr, cfg.ConnectTimeout); err != nil {
      return fmt.Errorf("failed to identify %v: %w", identifyOpts.address.addr, err)
    }

    log.Info().Stringer("Addr", identifyOpts.address.addr).Msg("Identify command sent")

    return nil
  },
}

func init() {
  addAddressFlag(identifyCmd, &identifyOpts.address, true)

  rootCmd.AddCommand(identifyCmd)
}
