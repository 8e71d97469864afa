package client_routing

import (
	"fmt"
	"net"
	"sync"

	"golang.org/x/sync/errgroup"

	"sstproute/application/logging"
	"sstproute/application/network/routing"
	"sstproute/domain/network"
)

// RouteKeeper pins host routes toward tunnel endpoints through the physical
// gateway, so endpoint traffic keeps using the underlying link after the
// default route moves into the tunnel. It remembers what it pinned and can
// undo all of it.
type RouteKeeper struct {
	mu      sync.Mutex
	manager routing.Manager
	logger  logging.Logger
	pinned  []network.Route
}

func NewRouteKeeper(manager routing.Manager, logger logging.Logger) *RouteKeeper {
	return &RouteKeeper{manager: manager, logger: logger}
}

// Pin resolves the current path to endpoint and installs a host route that
// freezes that path. Pinning the same endpoint twice is harmless: the second
// replace overwrites the first.
func (k *RouteKeeper) Pin(endpoint net.IP) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	current, err := k.manager.Get(endpoint)
	if err != nil {
		return fmt.Errorf("failed to resolve path to %s: %w", endpoint, err)
	}

	pin, err := network.NewRoute(endpoint)
	if err != nil {
		return err
	}
	if current.Have.Gwy {
		if err := pin.SetGwy(current.GwyIP()); err != nil {
			return err
		}
	}
	if current.Have.Oif {
		pin.SetOif(current.OifIndex)
	}
	pin.IfName = current.IfName

	if err := k.manager.Replace(pin); err != nil {
		return fmt.Errorf("failed to pin route to %s: %w", endpoint, err)
	}
	k.logger.Printf("pinned route to %s via %s dev %s", endpoint, current.GwyIP(), current.IfName)

	k.pinned = append(k.pinned, pin)
	return nil
}

// Unpin removes every pinned route. Deletions run concurrently and all
// failures are collected; routes are forgotten even when their deletion
// fails, so a torn-down tunnel never leaves the keeper retrying forever.
func (k *RouteKeeper) Unpin() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	var g errgroup.Group
	for _, pin := range k.pinned {
		pin := pin
		g.Go(func() error {
			if err := k.manager.Delete(pin); err != nil {
				return fmt.Errorf("failed to unpin route to %s: %w", pin.DstIP(), err)
			}
			k.logger.Printf("unpinned route to %s", pin.DstIP())
			return nil
		})
	}
	k.pinned = nil
	return g.Wait()
}
