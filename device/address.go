package device

import (
  "fmt"
  "net"
  "regexp"
  "strings"
)

// six hex octets, optionally separated by ':' or '-'.
var addressPattern = regexp.MustCompile(`^[0-9a-f]{2}(?:[-:]?[0-9a-f]{2}){5}$`)

// ParseAddress validates a Bluetooth device address in one of the forms
// `aa:bb:cc:dd:ee:ff`, `aa-bb-cc-dd-ee-ff` or `aabbccddeeff`.
func ParseAddress(s string) (net.HardwareAddr, error) {
  normalized := strings.ToLower(strings.TrimSpace(s))

  if !addressPattern.MatchString(normalized) {
    return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
  }

  digits := strings.NewReplacer(":", "", "-", "").Replace(normalized)
  numSeparators := len(normalized) - len(digits)

  // the pattern can't express a back-reference, check separators are consistent here.
  if sep := normalized[2:3]; sep == ":" || sep == "-" {
    if strings.Count(normalized, sep) != 5 {
      return nil, fmt.Errorf("%w: %q (mixed separators)", ErrInvalidAddress, s)
    }
  } else if numSeparators != 0 {
    return nil, fmt.Errorf("%w: %q (mixed separators)", ErrInvalidAddress, s)
  }

  parts := make([]string, 0, 6)

  for i := 0; i < len(digits); i += 2 {
    parts = append(parts, digits[i:i+2])
  }

  addr, err := net.ParseMAC(strings.Join(parts, ":"))

  if err != nil {
    return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
  }

  return addr, nil
}
