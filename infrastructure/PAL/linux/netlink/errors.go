//go:build linux

package netlink

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

var (
	// ErrSessionClosed is returned by operations on a closed session.
	ErrSessionClosed = errors.New("netlink session is closed")

	// ErrShortWrite is returned when a request could not be sent in one write.
	ErrShortWrite = errors.New("short write on routing socket")

	// ErrTruncated is returned when a message span is shorter than its
	// declared or minimum length.
	ErrTruncated = errors.New("truncated netlink message")

	// ErrMalformedAttribute is returned when an attribute's declared length
	// violates the framing of its message.
	ErrMalformedAttribute = errors.New("malformed route attribute")

	// ErrMessageTooLarge is returned when a request does not fit the session buffer.
	ErrMessageTooLarge = errors.New("route request exceeds session buffer")

	// ErrResponseTooLarge is returned when an accumulated reply would overflow
	// the session buffer.
	ErrResponseTooLarge = errors.New("netlink reply exceeds session buffer")

	// ErrUnsupportedFamily is returned when a route reply carries an address
	// family other than IPv4 or IPv6.
	ErrUnsupportedFamily = errors.New("route reply has unsupported address family")
)

// KernelError is a non-zero status the kernel reported in an error frame,
// e.g. ESRCH when deleting a route that does not exist.
type KernelError struct {
	Errno unix.Errno
}

func (e *KernelError) Error() string {
	return fmt.Sprintf("kernel rejected route request: %v", e.Errno)
}

func (e *KernelError) Unwrap() error { return e.Errno }
