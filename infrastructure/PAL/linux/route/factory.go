//go:build linux

package route

import (
	"sstproute/application/logging"
	"sstproute/application/network/routing"
	"sstproute/infrastructure/PAL"
	"sstproute/settings"
)

// NewAutoManager picks the best available backend: the netlink protocol
// backend when a routing socket can be opened, otherwise the ip-command
// fallback. Settings may force a specific backend instead of probing.
func NewAutoManager(s settings.RouteSettings, commander PAL.Commander, logger logging.Logger) (routing.Manager, error) {
	switch s.Backend {
	case settings.RouteBackendNetlink:
		return NewNetlinkManager()
	case settings.RouteBackendShell:
		return NewShellManager(commander), nil
	}

	manager, err := NewNetlinkManager()
	if err != nil {
		logger.Printf("netlink routing unavailable (%v), falling back to the ip command", err)
		return NewShellManager(commander), nil
	}
	return manager, nil
}
