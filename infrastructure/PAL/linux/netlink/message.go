//go:build linux

package netlink

import (
	"encoding/binary"
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"sstproute/domain/network"
)

// header mirrors struct nlmsghdr. Netlink is a host-endian protocol, so all
// multi-byte fields go through binary.NativeEndian.
type header struct {
	Len   uint32
	Type  uint16
	Flags uint16
	Seq   uint32
	Pid   uint32
}

// routeBody mirrors struct rtmsg.
type routeBody struct {
	Family   uint8
	DstLen   uint8
	SrcLen   uint8
	Tos      uint8
	Table    uint8
	Protocol uint8
	Scope    uint8
	Type     uint8
	Flags    uint32
}

func nlmsgAlign(n int) int {
	return (n + unix.NLMSG_ALIGNTO - 1) &^ (unix.NLMSG_ALIGNTO - 1)
}

func rtaAlign(n int) int {
	return (n + unix.RTA_ALIGNTO - 1) &^ (unix.RTA_ALIGNTO - 1)
}

func rtaLength(payload int) int {
	return unix.SizeofRtAttr + payload
}

func rtaSpace(payload int) int {
	return rtaAlign(rtaLength(payload))
}

func putHeader(buf []byte, h header) {
	binary.NativeEndian.PutUint32(buf[0:4], h.Len)
	binary.NativeEndian.PutUint16(buf[4:6], h.Type)
	binary.NativeEndian.PutUint16(buf[6:8], h.Flags)
	binary.NativeEndian.PutUint32(buf[8:12], h.Seq)
	binary.NativeEndian.PutUint32(buf[12:16], h.Pid)
}

// parseHeader validates that span holds a complete message: at least a
// header, with a declared length that fits inside the span.
func parseHeader(span []byte) (header, error) {
	if len(span) < unix.NLMSG_HDRLEN {
		return header{}, ErrTruncated
	}
	h := header{
		Len:   binary.NativeEndian.Uint32(span[0:4]),
		Type:  binary.NativeEndian.Uint16(span[4:6]),
		Flags: binary.NativeEndian.Uint16(span[6:8]),
		Seq:   binary.NativeEndian.Uint32(span[8:12]),
		Pid:   binary.NativeEndian.Uint32(span[12:16]),
	}
	if int(h.Len) < unix.NLMSG_HDRLEN || int(h.Len) > len(span) {
		return header{}, ErrTruncated
	}
	return h, nil
}

// parseErrorCode extracts the status from an NLMSG_ERROR frame. The kernel
// reports errors as negated errno values; zero is an acknowledgment.
func parseErrorCode(span []byte) (int32, error) {
	if len(span) < unix.NLMSG_HDRLEN+4 {
		return 0, ErrTruncated
	}
	return int32(binary.NativeEndian.Uint32(span[unix.NLMSG_HDRLEN : unix.NLMSG_HDRLEN+4])), nil
}

func putRouteBody(buf []byte, b routeBody) {
	buf[0] = b.Family
	buf[1] = b.DstLen
	buf[2] = b.SrcLen
	buf[3] = b.Tos
	buf[4] = b.Table
	buf[5] = b.Protocol
	buf[6] = b.Scope
	buf[7] = b.Type
	binary.NativeEndian.PutUint32(buf[8:12], b.Flags)
}

func parseRouteBody(payload []byte) (routeBody, error) {
	if len(payload) < unix.SizeofRtMsg {
		return routeBody{}, ErrTruncated
	}
	return routeBody{
		Family:   payload[0],
		DstLen:   payload[1],
		SrcLen:   payload[2],
		Tos:      payload[3],
		Table:    payload[4],
		Protocol: payload[5],
		Scope:    payload[6],
		Type:     payload[7],
		Flags:    binary.NativeEndian.Uint32(payload[8:12]),
	}, nil
}

// appendAttr writes one rtattr TLV at the aligned tail of a message of
// msgLen bytes and returns the new message length.
func appendAttr(buf []byte, msgLen int, typ uint16, value []byte) (int, error) {
	off := nlmsgAlign(msgLen)
	if off+rtaSpace(len(value)) > len(buf) {
		return 0, ErrMessageTooLarge
	}
	binary.NativeEndian.PutUint16(buf[off:off+2], uint16(rtaLength(len(value))))
	binary.NativeEndian.PutUint16(buf[off+2:off+4], typ)
	copy(buf[off+unix.SizeofRtAttr:], value)
	return off + rtaSpace(len(value)), nil
}

// walkAttrs iterates the rtattr TLVs in b. Attribute order is not
// significant; unknown types are for the visitor to ignore. Iteration stops
// silently on a sub-header remainder (trailing padding) and fails on an
// attribute whose declared length breaks the framing.
func walkAttrs(b []byte, visit func(typ uint16, value []byte)) error {
	for len(b) >= unix.SizeofRtAttr {
		attrLen := int(binary.NativeEndian.Uint16(b[0:2]))
		typ := binary.NativeEndian.Uint16(b[2:4])
		if attrLen < unix.SizeofRtAttr || attrLen > len(b) {
			return ErrMalformedAttribute
		}
		visit(typ, b[unix.SizeofRtAttr:attrLen])
		step := rtaAlign(attrLen)
		if step >= len(b) {
			return nil
		}
		b = b[step:]
	}
	return nil
}

func familyOf(f network.Family) (uint8, error) {
	switch f {
	case network.FamilyIPv4:
		return unix.AF_INET, nil
	case network.FamilyIPv6:
		return unix.AF_INET6, nil
	default:
		return 0, fmt.Errorf("unsupported route family: %v", f)
	}
}

// NewRouteMessage assembles an RTM_NEWROUTE or RTM_DELROUTE request for
// route into the session buffer and returns the message length. The header
// always requests an acknowledgment; extraFlags adds operation-specific
// semantics such as create-or-replace.
func (s *Session) NewRouteMessage(route *network.Route, cmd uint16, extraFlags uint16) (int, error) {
	family, err := familyOf(route.Family)
	if err != nil {
		return 0, err
	}

	s.zeroBuffer()
	h := header{
		Len:   uint32(unix.NLMSG_HDRLEN + unix.SizeofRtMsg),
		Type:  cmd,
		Flags: unix.NLM_F_REQUEST | unix.NLM_F_ACK | extraFlags,
		Seq:   s.nextSeq(),
		Pid:   s.pid,
	}
	body := routeBody{
		Family: family,
		Table:  unix.RT_TABLE_MAIN,
		Scope:  unix.RT_SCOPE_LINK,
	}
	if route.Have.Gwy {
		body.Scope = unix.RT_SCOPE_UNIVERSE
	}
	if cmd != unix.RTM_DELROUTE {
		body.Protocol = unix.RTPROT_BOOT
		body.Type = unix.RTN_UNICAST
	}

	addrLen := route.AddrLen()
	msgLen := int(h.Len)
	if route.Have.Dst {
		if msgLen, err = appendAttr(s.buf[:], msgLen, unix.RTA_DST, route.Dst[:addrLen]); err != nil {
			return 0, err
		}
		body.DstLen = uint8(addrLen * 8)
	}
	if route.Have.Src {
		if msgLen, err = appendAttr(s.buf[:], msgLen, unix.RTA_PREFSRC, route.Src[:addrLen]); err != nil {
			return 0, err
		}
		body.SrcLen = uint8(addrLen * 8)
	}
	if route.Have.Gwy {
		if msgLen, err = appendAttr(s.buf[:], msgLen, unix.RTA_GATEWAY, route.Gwy[:addrLen]); err != nil {
			return 0, err
		}
	}
	if route.Have.Oif {
		var oif [4]byte
		binary.NativeEndian.PutUint32(oif[:], uint32(route.OifIndex))
		if msgLen, err = appendAttr(s.buf[:], msgLen, unix.RTA_OIF, oif[:]); err != nil {
			return 0, err
		}
	}

	h.Len = uint32(msgLen)
	putHeader(s.buf[:], h)
	putRouteBody(s.buf[unix.NLMSG_HDRLEN:], body)
	return msgLen, nil
}

// NewGetMessage assembles an RTM_GETROUTE query for dst into the session
// buffer. The query carries only the destination, with a full-length prefix
// for its family.
func (s *Session) NewGetMessage(dst net.IP) (int, error) {
	var family uint8
	var addr []byte
	if v4 := dst.To4(); v4 != nil {
		family = unix.AF_INET
		addr = v4
	} else if v16 := dst.To16(); v16 != nil {
		family = unix.AF_INET6
		addr = v16
	} else {
		return 0, fmt.Errorf("invalid destination address: %v", dst)
	}

	s.zeroBuffer()
	h := header{
		Len:   uint32(unix.NLMSG_HDRLEN + unix.SizeofRtMsg),
		Type:  unix.RTM_GETROUTE,
		Flags: unix.NLM_F_REQUEST,
		Seq:   s.nextSeq(),
		Pid:   s.pid,
	}
	body := routeBody{
		Family: family,
		DstLen: uint8(len(addr) * 8),
		Table:  unix.RT_TABLE_MAIN,
	}

	msgLen, err := appendAttr(s.buf[:], int(h.Len), unix.RTA_DST, addr)
	if err != nil {
		return 0, err
	}
	h.Len = uint32(msgLen)
	putHeader(s.buf[:], h)
	putRouteBody(s.buf[unix.NLMSG_HDRLEN:], body)
	return msgLen, nil
}
