package ble

import (
  "context"
  "fmt"

  "github.com/go-ble/ble"
  "github.com/rs/zerolog/log"
)

// Cancel the returned context on SIGINT/SIGTERM.
func WrapContextWithSigHandler(ctx context.Context, cancel func()) context.Context {
  return ble.WithSigHandler(ctx, cancel)
}

// Perform an active or passive scan and pass every advertisement found to onAdvertisement,
// until the context is done. The returned error wraps the context error in that case.
func (h *Handle) ScanAll(ctx context.Context, onAdvertisement func(Advertisement)) error {
  allowDup := h.flags.Has(FlagScanAllowDuplicates)

  log.Trace().Bool("AllowDuplicates", allowDup).Msg("ble: starting scan")

  callback := func(a Advertisement) {
    // the BLE lib could send an advertisement even after `Scan()` returns. do not waste
    // time processing data if we're done.
    select {
    case <-ctx.Done():
      return
    default:
    }

    onAdvertisement(a)
  }

  if err := h.dev.Scan(ctx, allowDup, callback); err != nil {
    return fmt.Errorf("scan ended: %w", err)
  }

  return nil
}
