// Package sniffer drives a vendor-extended HCI device through a
// Bluetooth baseband capture session: issuing vendor debug-channel
// commands, decoding the frontline frames the firmware streams back,
// persisting L2CAP and synthetic LMP events to an HCI dump file, and
// accumulating the cryptographic transcript needed for an offline
// Bluetooth legacy-pairing PIN-recovery attack.
//
// The interactive shell, configuration parsing, and packaging glue
// that drive this package in a real deployment live outside it; this
// package consumes only device names, MAC addresses, filter settings,
// and an already-opened dump writer handed to it by that caller.
package sniffer
