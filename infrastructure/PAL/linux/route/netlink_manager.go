//go:build linux

package route

import (
	"fmt"
	"net"
	"sync"

	"golang.org/x/sys/unix"

	"sstproute/application/network/routing"
	"sstproute/domain/network"
	"sstproute/infrastructure/PAL/linux/netlink"
)

// NetlinkManager implements routing.Manager over a raw NETLINK_ROUTE
// session. The session allows one in-flight exchange at a time, so all
// operations are serialized on a mutex.
type NetlinkManager struct {
	mu      sync.Mutex
	session *netlink.Session
	closed  bool
}

// NewNetlinkManager opens a routing session against the kernel.
func NewNetlinkManager() (routing.Manager, error) {
	session, err := netlink.Open()
	if err != nil {
		return nil, err
	}
	return &NetlinkManager{session: session}, nil
}

// NewNetlinkManagerWithSession wraps an already open session.
func NewNetlinkManagerWithSession(session *netlink.Session) routing.Manager {
	return &NetlinkManager{session: session}
}

func (m *NetlinkManager) Replace(route network.Route) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return routing.ErrManagerClosed
	}

	msgLen, err := m.session.NewRouteMessage(&route, unix.RTM_NEWROUTE, unix.NLM_F_CREATE|unix.NLM_F_REPLACE)
	if err != nil {
		return err
	}
	if _, err := m.session.Exchange(msgLen); err != nil {
		return fmt.Errorf("failed to replace route: %w", err)
	}
	return nil
}

func (m *NetlinkManager) Delete(route network.Route) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return routing.ErrManagerClosed
	}

	msgLen, err := m.session.NewRouteMessage(&route, unix.RTM_DELROUTE, 0)
	if err != nil {
		return err
	}
	if _, err := m.session.Exchange(msgLen); err != nil {
		return fmt.Errorf("failed to delete route: %w", err)
	}
	return nil
}

func (m *NetlinkManager) Get(dst net.IP) (network.Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return network.Route{}, routing.ErrManagerClosed
	}

	msgLen, err := m.session.NewGetMessage(dst)
	if err != nil {
		return network.Route{}, err
	}
	replyLen, err := m.session.Exchange(msgLen)
	if err != nil {
		return network.Route{}, fmt.Errorf("failed to get route to %s: %w", dst, err)
	}

	result, err := netlink.DecodeRouteMessage(m.session.Buffer()[:replyLen])
	if err != nil {
		return network.Route{}, fmt.Errorf("failed to decode route to %s: %w", dst, err)
	}
	return result, nil
}

func (m *NetlinkManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.session.Close()
}
