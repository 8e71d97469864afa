package network

import (
	"fmt"
	"net"
)

// Family tags the address family of a Route.
type Family int

const (
	FamilyIPv4 Family = iota
	FamilyIPv6
)

func (f Family) String() string {
	switch f {
	case FamilyIPv4:
		return "IPv4"
	case FamilyIPv6:
		return "IPv6"
	default:
		return "unknown"
	}
}

// AddrLen returns the address width in bytes for the family.
func (f Family) AddrLen() int {
	if f == FamilyIPv6 {
		return 16
	}
	return 4
}

// RoutePresence marks which optional route fields are semantically set.
// An unset field is absent, not zero.
type RoutePresence struct {
	Dst bool
	Src bool
	Gwy bool
	Oif bool
}

// Route describes a single unicast host route. Address fields hold raw bytes
// whose significant width is fixed by Family (4 for IPv4, 16 for IPv6); only
// fields flagged in Have carry meaning.
type Route struct {
	Family   Family
	Dst      [16]byte
	Src      [16]byte
	Gwy      [16]byte
	OifIndex int
	IfName   string

	// Spec holds the opaque textual route description produced by the
	// ip-command fallback's get; the netlink backend never sets it.
	Spec string

	Have RoutePresence
}

// NewRoute builds a route to dst, deriving the family from the address.
func NewRoute(dst net.IP) (Route, error) {
	var r Route
	if err := r.SetDst(dst); err != nil {
		return Route{}, err
	}
	return r, nil
}

// AddrLen returns the byte length of the route's address fields.
func (r *Route) AddrLen() int {
	return r.Family.AddrLen()
}

// SetDst sets the destination address and its presence flag.
func (r *Route) SetDst(ip net.IP) error {
	return r.setAddr(&r.Dst, &r.Have.Dst, ip)
}

// SetSrc sets the preferred source address and its presence flag.
func (r *Route) SetSrc(ip net.IP) error {
	return r.setAddr(&r.Src, &r.Have.Src, ip)
}

// SetGwy sets the gateway address and its presence flag.
func (r *Route) SetGwy(ip net.IP) error {
	return r.setAddr(&r.Gwy, &r.Have.Gwy, ip)
}

// SetOif sets the output interface index and its presence flag.
func (r *Route) SetOif(index int) {
	r.OifIndex = index
	r.Have.Oif = true
}

// DstIP returns the destination as net.IP, or nil if absent.
func (r *Route) DstIP() net.IP {
	if !r.Have.Dst {
		return nil
	}
	return r.addrIP(r.Dst)
}

// SrcIP returns the preferred source as net.IP, or nil if absent.
func (r *Route) SrcIP() net.IP {
	if !r.Have.Src {
		return nil
	}
	return r.addrIP(r.Src)
}

// GwyIP returns the gateway as net.IP, or nil if absent.
func (r *Route) GwyIP() net.IP {
	if !r.Have.Gwy {
		return nil
	}
	return r.addrIP(r.Gwy)
}

func (r *Route) setAddr(field *[16]byte, flag *bool, ip net.IP) error {
	raw, family, err := addrBytes(ip)
	if err != nil {
		return err
	}
	if err := r.adoptFamily(family); err != nil {
		return err
	}
	copy(field[:], raw)
	*flag = true
	return nil
}

// adoptFamily fixes the route family on the first address set and rejects
// mixed-family routes afterwards.
func (r *Route) adoptFamily(family Family) error {
	if !r.Have.Dst && !r.Have.Src && !r.Have.Gwy {
		r.Family = family
		return nil
	}
	if r.Family != family {
		return fmt.Errorf("address family mismatch: route is %v, address is %v", r.Family, family)
	}
	return nil
}

func (r *Route) addrIP(field [16]byte) net.IP {
	ip := make(net.IP, r.AddrLen())
	copy(ip, field[:r.AddrLen()])
	return ip
}

func addrBytes(ip net.IP) ([]byte, Family, error) {
	if v4 := ip.To4(); v4 != nil {
		return v4, FamilyIPv4, nil
	}
	if v16 := ip.To16(); v16 != nil {
		return v16, FamilyIPv6, nil
	}
	return nil, 0, fmt.Errorf("invalid IP address: %v", ip)
}
