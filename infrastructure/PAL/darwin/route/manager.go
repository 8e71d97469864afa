//go:build darwin

package route

import (
	"fmt"
	"net"
	"sync"

	netroute "golang.org/x/net/route"
	"golang.org/x/sys/unix"

	"sstproute/application/network/routing"
	"sstproute/domain/network"
	"sstproute/infrastructure/PAL"
)

// Manager implements routing.Manager on macOS. Lookups read the routing
// information base through golang.org/x/net/route; mutations shell out to
// the route command, which owns the AF_ROUTE write side.
type Manager struct {
	mu     sync.Mutex
	cmd    PAL.Commander
	closed bool
}

func NewManager(commander PAL.Commander) routing.Manager {
	return &Manager{cmd: commander}
}

func (m *Manager) Replace(route network.Route) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return routing.ErrManagerClosed
	}

	args, err := addArgs(&route)
	if err != nil {
		return err
	}
	// route has no replace verb; drop a matching host route first and
	// ignore the error when there was none.
	_ = m.cmd.Run("route", "-n", "delete", "-host", route.DstIP().String())

	output, err := m.cmd.CombinedOutput("route", args...)
	if err != nil {
		return fmt.Errorf("failed to add route to %s: %v, output: %s", route.DstIP(), err, output)
	}
	return nil
}

func (m *Manager) Delete(route network.Route) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return routing.ErrManagerClosed
	}

	if !route.Have.Dst {
		return fmt.Errorf("route destination is required")
	}
	output, err := m.cmd.CombinedOutput("route", "-n", "delete", "-host", route.DstIP().String())
	if err != nil {
		return fmt.Errorf("failed to delete route to %s: %v, output: %s", route.DstIP(), err, output)
	}
	return nil
}

func (m *Manager) Get(dst net.IP) (network.Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return network.Route{}, routing.ErrManagerClosed
	}

	result, err := network.NewRoute(dst)
	if err != nil {
		return network.Route{}, err
	}

	af := unix.AF_INET
	if result.Family == network.FamilyIPv6 {
		af = unix.AF_INET6
	}
	rib, err := netroute.FetchRIB(af, netroute.RIBTypeRoute, 0)
	if err != nil {
		return network.Route{}, fmt.Errorf("failed to fetch the routing table: %w", err)
	}
	msgs, err := netroute.ParseRIB(netroute.RIBTypeRoute, rib)
	if err != nil {
		return network.Route{}, fmt.Errorf("failed to parse the routing table: %w", err)
	}

	best := bestMatch(msgs, result.DstIP(), result.AddrLen())
	if best == nil {
		return network.Route{}, fmt.Errorf("no route to %s", dst)
	}

	if best.Flags&unix.RTF_GATEWAY != 0 {
		if gwy := addrIP(messageAddr(best, unix.RTAX_GATEWAY)); gwy != nil {
			if err := result.SetGwy(gwy); err != nil {
				return network.Route{}, err
			}
		}
	}
	if best.Index > 0 {
		result.SetOif(best.Index)
		if ifi, ifErr := net.InterfaceByIndex(best.Index); ifErr == nil {
			result.IfName = ifi.Name
		}
	}
	return result, nil
}

func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// addArgs renders a Route as a route-add invocation. A gateway route goes
// through the gateway address, a link route through -interface.
func addArgs(route *network.Route) ([]string, error) {
	if !route.Have.Dst {
		return nil, fmt.Errorf("route destination is required")
	}
	args := []string{"-n", "add", "-host", route.DstIP().String()}
	switch {
	case route.Have.Gwy:
		return append(args, route.GwyIP().String()), nil
	case route.IfName != "":
		return append(args, "-interface", route.IfName), nil
	default:
		return nil, fmt.Errorf("route to %s needs a gateway or an interface", route.DstIP())
	}
}

// bestMatch picks the most specific routing-table entry covering dst.
func bestMatch(msgs []netroute.Message, dst net.IP, addrLen int) *netroute.RouteMessage {
	var best *netroute.RouteMessage
	bestOnes := -1
	for _, raw := range msgs {
		msg, ok := raw.(*netroute.RouteMessage)
		if !ok || msg.Err != nil {
			continue
		}
		entry := addrIP(messageAddr(msg, unix.RTAX_DST))
		if entry == nil || len(entry) != addrLen {
			continue
		}
		ones, ok := maskOnes(msg, addrLen)
		if !ok || ones <= bestOnes {
			continue
		}
		mask := net.CIDRMask(ones, addrLen*8)
		if !entry.Mask(mask).Equal(dst.Mask(mask)) {
			continue
		}
		best, bestOnes = msg, ones
	}
	return best
}

func messageAddr(msg *netroute.RouteMessage, index int) netroute.Addr {
	if index >= len(msg.Addrs) {
		return nil
	}
	return msg.Addrs[index]
}

func addrIP(addr netroute.Addr) net.IP {
	switch a := addr.(type) {
	case *netroute.Inet4Addr:
		return net.IP(a.IP[:])
	case *netroute.Inet6Addr:
		return net.IP(a.IP[:])
	default:
		return nil
	}
}

// maskOnes extracts the prefix length of a table entry. A host route carries
// no netmask and matches on the full address width.
func maskOnes(msg *netroute.RouteMessage, addrLen int) (int, bool) {
	if msg.Flags&unix.RTF_HOST != 0 {
		return addrLen * 8, true
	}
	addr := messageAddr(msg, unix.RTAX_NETMASK)
	if addr == nil {
		// default-route entries may omit the mask entirely
		return 0, true
	}
	mask := addrIP(addr)
	if mask == nil {
		return 0, false
	}
	ones, bits := net.IPMask(mask).Size()
	if bits != addrLen*8 {
		return 0, false
	}
	return ones, true
}
