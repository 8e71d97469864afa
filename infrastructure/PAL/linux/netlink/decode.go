//go:build linux

package netlink

import (
	"encoding/binary"
	"net"

	"golang.org/x/sys/unix"

	"sstproute/domain/network"
)

// ifNameResolver resolves an interface index to its name.
type ifNameResolver func(index int) (string, error)

func resolveInterfaceName(index int) (string, error) {
	ifi, err := net.InterfaceByIndex(index)
	if err != nil {
		return "", err
	}
	return ifi.Name, nil
}

// DecodeRouteMessage interprets msg as a route reply and returns the route
// it describes. The egress interface name is resolved from its index on a
// best-effort basis; a failed resolution leaves the name empty.
func DecodeRouteMessage(msg []byte) (network.Route, error) {
	return decodeRouteMessage(msg, resolveInterfaceName)
}

func decodeRouteMessage(msg []byte, resolve ifNameResolver) (network.Route, error) {
	var route network.Route

	h, err := parseHeader(msg)
	if err != nil {
		return route, err
	}
	payload := msg[unix.NLMSG_HDRLEN:h.Len]
	body, err := parseRouteBody(payload)
	if err != nil {
		return route, err
	}

	switch body.Family {
	case unix.AF_INET:
		route.Family = network.FamilyIPv4
	case unix.AF_INET6:
		route.Family = network.FamilyIPv6
	default:
		return route, ErrUnsupportedFamily
	}

	addrLen := route.AddrLen()
	err = walkAttrs(payload[nlmsgAlign(unix.SizeofRtMsg):], func(typ uint16, value []byte) {
		switch typ {
		case unix.RTA_DST:
			if len(value) >= addrLen {
				copy(route.Dst[:], value[:addrLen])
				route.Have.Dst = true
			}
		case unix.RTA_PREFSRC:
			if len(value) >= addrLen {
				copy(route.Src[:], value[:addrLen])
				route.Have.Src = true
			}
		case unix.RTA_GATEWAY:
			if len(value) >= addrLen {
				copy(route.Gwy[:], value[:addrLen])
				route.Have.Gwy = true
			}
		case unix.RTA_OIF:
			if len(value) >= 4 {
				route.OifIndex = int(int32(binary.NativeEndian.Uint32(value[:4])))
				route.Have.Oif = true
				if name, resolveErr := resolve(route.OifIndex); resolveErr == nil {
					route.IfName = name
				}
			}
		}
	})
	if err != nil {
		return network.Route{}, err
	}
	return route, nil
}
