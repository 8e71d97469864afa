//go:build linux

package route

import (
	"errors"
	"net"
	"strings"
	"sync"

	"sstproute/application/network/routing"
	"sstproute/domain/network"
	"sstproute/infrastructure/PAL"
	"sstproute/infrastructure/PAL/linux/ip"
)

// ShellManager implements routing.Manager by shelling out to the ip command.
// It is the fallback for hosts where a routing socket cannot be opened.
//
// Get stores the first line of `ip route get` verbatim in Route.Spec and
// parses the via/dev/src tokens back into structured fields on a best-effort
// basis, so its contract is weaker than the netlink backend's.
type ShellManager struct {
	mu     sync.Mutex
	cmd    ip.Contract
	closed bool
}

// NewShellManager builds the fallback backend over the given commander.
func NewShellManager(commander PAL.Commander) routing.Manager {
	return &ShellManager{cmd: ip.NewWrapper(commander)}
}

// NewShellManagerWithContract wraps an existing ip wrapper.
func NewShellManagerWithContract(cmd ip.Contract) routing.Manager {
	return &ShellManager{cmd: cmd}
}

func (m *ShellManager) Replace(route network.Route) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return routing.ErrManagerClosed
	}

	spec, err := routeSpec(&route)
	if err != nil {
		return err
	}
	return m.cmd.RouteReplace(spec...)
}

func (m *ShellManager) Delete(route network.Route) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return routing.ErrManagerClosed
	}

	spec, err := routeSpec(&route)
	if err != nil {
		return err
	}
	return m.cmd.RouteDel(spec...)
}

func (m *ShellManager) Get(dst net.IP) (network.Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return network.Route{}, routing.ErrManagerClosed
	}

	result, err := network.NewRoute(dst)
	if err != nil {
		return network.Route{}, err
	}

	out, err := m.cmd.RouteGet(dst.String())
	if err != nil {
		return network.Route{}, err
	}

	line, _, _ := strings.Cut(out, "\n")
	result.Spec = line

	fields := strings.Fields(line)
	for i, field := range fields {
		if i+1 >= len(fields) {
			break
		}
		switch field {
		case "via":
			if gwy := net.ParseIP(fields[i+1]); gwy != nil {
				_ = result.SetGwy(gwy)
			}
		case "src":
			if src := net.ParseIP(fields[i+1]); src != nil {
				_ = result.SetSrc(src)
			}
		case "dev":
			result.IfName = fields[i+1]
		}
	}
	if result.IfName == "" {
		// directly reachable hosts may omit dev; fall back to the
		// default interface
		if name, defErr := m.cmd.RouteDefault(); defErr == nil {
			result.IfName = name
		}
	}
	if result.IfName != "" {
		if ifi, ifErr := net.InterfaceByName(result.IfName); ifErr == nil {
			result.SetOif(ifi.Index)
		}
	}
	return result, nil
}

func (m *ShellManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// routeSpec renders a Route as an ip-route specification, e.g.
// "4.4.2.2 via 192.168.1.1 dev eth0 src 192.168.1.5".
func routeSpec(route *network.Route) ([]string, error) {
	if !route.Have.Dst {
		return nil, errors.New("route destination is required")
	}

	spec := []string{route.DstIP().String()}
	if route.Have.Gwy {
		spec = append(spec, "via", route.GwyIP().String())
	}
	if name := deviceName(route); name != "" {
		spec = append(spec, "dev", name)
	}
	if route.Have.Src {
		spec = append(spec, "src", route.SrcIP().String())
	}
	return spec, nil
}

// deviceName prefers the resolved interface name and falls back to resolving
// the index; an unresolvable index leaves the device out of the spec.
func deviceName(route *network.Route) string {
	if route.IfName != "" {
		return route.IfName
	}
	if !route.Have.Oif {
		return ""
	}
	ifi, err := net.InterfaceByIndex(route.OifIndex)
	if err != nil {
		return ""
	}
	return ifi.Name
}
