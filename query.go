package main

import (
  "fmt"

  "github.com/spf13/cobra"
)

var queryOpts struct {
  address addressFlag
}

// Reserved: the address is validated, but no command is sent.
var queryCmd = &cobra.Command{
  Use:   "query",
  Short: "Query the state of a ThermoBeacon (not yet implemented)",
  Args:  cobra.NoArgs,
  RunE: func(cmd *cobra.Command, args []string) error {
    fmt.Fprintln(cmd.OutOrStdout(), "not yet implemented")

    return nil
  },
}

func init() {
  addAddressFlag(queryCmd, &queryOpts.address, true)

  rootCmd.AddCommand(queryCmd)
}
