//go:build linux

package netlink

import "golang.org/x/sys/unix"

// SocketAPI abstracts the raw routing-socket syscalls so the exchange loop
// can be exercised against a fake socket in tests.
type SocketAPI interface {
	Socket() (int, error)
	Send(fd int, p []byte) (int, error)
	Recv(fd int, p []byte) (int, error)
	Close(fd int) error
}

type UnixSocketAPI struct {
}

func NewUnixSocketAPI() SocketAPI {
	return &UnixSocketAPI{}
}

func (a *UnixSocketAPI) Socket() (int, error) {
	return unix.Socket(unix.AF_NETLINK, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, unix.NETLINK_ROUTE)
}

func (a *UnixSocketAPI) Send(fd int, p []byte) (int, error) {
	return unix.Write(fd, p)
}

func (a *UnixSocketAPI) Recv(fd int, p []byte) (int, error) {
	return unix.Read(fd, p)
}

func (a *UnixSocketAPI) Close(fd int) error {
	return unix.Close(fd)
}
