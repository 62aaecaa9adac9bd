package main

import (
  "fmt"

  "github.com/robertof/go-thermobeacon/collector"
  "github.com/rs/zerolog/log"
  "github.com/spf13/cobra"
)

var dumpOpts struct {
  address addressFlag
}

var dumpCmd = &cobra.Command{
  Use:   "dump",
  Short: "Retrieve the temperature history logged by a ThermoBeacon",
  Args:  cobra.NoArgs,
  RunE:  runDump,
}

func init() {
  addAddressFlag(dumpCmd, &dumpOpts.address, true)

  rootCmd.AddCommand(dumpCmd)
}

func runDump(cmd *cobra.Command, args []string) error {
  handle, err := initBle(0)

  if err != nil {
    return err
  }

  defer handle.Stop()

  ctx, cancel := interruptibleContext(cmd)
  defer cancel()

  log.Info().Stringer("Addr", dumpOpts.address.addr).Msg("Dumping device history")

  res, err := collector.Dump(ctx, handle, dumpOpts.address.addr, collector.DumpOptions{
    ConnectTimeout: cfg.ConnectTimeout,
    OnStateChange: func(s collector.SessionState) {
      log.Trace().Stringer("State", s).Msg("Dump session state changed")
    },
  })

  if err != nil {
    return fmt.Errorf("failed to dump %v: %w", dumpOpts.address.addr, err)
  }

  if res.InvalidFrames > 0 {
    log.Warn().Int("Skipped", res.InvalidFrames).Msg("Some responses could not be decoded")
  }

  if res.Records() != res.TargetCount {
    log.Warn().
      Int("Expected", res.TargetCount).
      Int("Received", res.Records()).
      Msg("Device did not send back every record")
  }

  out := cmd.OutOrStdout()

  fmt.Fprintf(out, "Retrieved %d of %d records from %v\n", res.Records(), res.TargetCount, res.Addr)

  for _, resp := range res.Sorted() {
    for i, t := range resp.Data {
      fmt.Fprintf(out, "%6d %6.2f°C\n", resp.Offset + i, t)
    }
  }

  return nil
}
