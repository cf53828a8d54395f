package sniffer

import (
	"errors"

	"github.com/nopper/packet-manipulator/internal/vendorcmd"
)

// ParsePair parses a "<master>@<slave>" MAC-pair spec, wrapping
// vendorcmd's sentinel errors in the session's own error Kind so
// callers branch on errors.As(err, *Error) uniformly across every
// command.
func ParsePair(spec string) (master, slave [6]byte, err error) {
	master, slave, err = vendorcmd.ParsePair(spec)
	if err == nil {
		return master, slave, nil
	}
	switch {
	case errors.Is(err, vendorcmd.ErrBadAddress):
		return master, slave, newErr("ParsePair", KindBadAddress, err)
	case errors.Is(err, vendorcmd.ErrBadPairSpec):
		return master, slave, newErr("ParsePair", KindBadPairSpec, err)
	default:
		return master, slave, newErr("ParsePair", KindBadPairSpec, err)
	}
}
