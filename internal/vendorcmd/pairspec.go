package vendorcmd

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrBadPairSpec means the input was missing its "@" separator.
var ErrBadPairSpec = errors.New("vendorcmd: missing \"@\" separator")

// ErrBadAddress means one side of a pair spec was not a valid MAC.
var ErrBadAddress = errors.New("vendorcmd: invalid MAC address")

// ParsePair parses a "<master>@<slave>" spec into two raw 6-byte MAC
// arrays in the order they appear in the string.
// It does not reverse byte order; callers that need firmware-reversed
// bytes are responsible for that themselves.
func ParsePair(spec string) (master, slave [6]byte, err error) {
	parts := strings.Split(spec, "@")
	if len(parts) != 2 {
		return master, slave, fmt.Errorf("%q: %w", spec, ErrBadPairSpec)
	}
	master, err = parseMAC(parts[0])
	if err != nil {
		return master, slave, err
	}
	slave, err = parseMAC(parts[1])
	if err != nil {
		return master, slave, err
	}
	return master, slave, nil
}

func parseMAC(s string) ([6]byte, error) {
	var out [6]byte
	hw, err := net.ParseMAC(s)
	if err != nil || len(hw) != 6 {
		return out, fmt.Errorf("%q: %w", s, ErrBadAddress)
	}
	copy(out[:], hw)
	return out, nil
}
