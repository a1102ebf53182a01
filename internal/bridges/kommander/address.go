package kommander

import (
	"fmt"
	"regexp"
)

// addressPattern is the accepted device URL form: ws:// or wss://, a lower
// case host, an optional port of up to five digits, and an optional path.
var addressPattern = regexp.MustCompile(`^wss?:\/\/([\da-z\.-]+)(:\d{1,5})?(?:\/(.*))?$`)

// badAddressMessage is the status text shown while the address is invalid.
const badAddressMessage = "Invalid URL provided. Please make sure the URL is valid and matches the required format"

// ValidateAddress checks a device URL against the transport address pattern.
//
// Returns:
//   - error: ErrInvalidAddress (wrapped) if the URL is empty or does not match
func ValidateAddress(address string) error {
	if address == "" || !addressPattern.MatchString(address) {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	return nil
}
