package routing

import (
	"errors"
	"net"

	"sstproute/domain/network"
)

// Manager installs, removes and resolves unicast host routes in the
// operating system's routing table. A backend is selected once at startup;
// the caller holds a single Manager and closes it when the tunnel goes down.
type Manager interface {
	// Replace installs the route, overwriting an equivalent existing one.
	Replace(route network.Route) error

	// Delete removes a matching route. Deleting a route that was never
	// installed fails.
	Delete(route network.Route) error

	// Get resolves the kernel's chosen route to dst, including its gateway,
	// preferred source and egress interface.
	Get(dst net.IP) (network.Route, error)

	// Close releases backend resources. Safe to call repeatedly.
	Close() error
}

// ErrManagerClosed is returned by operations invoked after Close.
var ErrManagerClosed = errors.New("route manager is closed")
