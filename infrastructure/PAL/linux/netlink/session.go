//go:build linux

package netlink

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// BufferSize is the capacity of the per-session message buffer, shared by
// outbound requests and inbound replies.
const BufferSize = 1024

// maxRecvRetries caps EINTR/EAGAIN retries so a misbehaving socket cannot
// spin the exchange loop forever.
const maxRecvRetries = 1024

// Session owns one NETLINK_ROUTE socket, the request sequence counter and a
// reusable fixed-size buffer. A session carries at most one exchange at a
// time; the buffer is never aliased between a request and its reply.
type Session struct {
	api    SocketAPI
	fd     int
	seq    uint32
	pid    uint32
	closed bool
	buf    [BufferSize]byte
}

// Open opens a routing-protocol session against the kernel.
func Open() (*Session, error) {
	return OpenWith(NewUnixSocketAPI())
}

// OpenWith opens a session through the given SocketAPI.
func OpenWith(api SocketAPI) (*Session, error) {
	fd, err := api.Socket()
	if err != nil {
		return nil, fmt.Errorf("failed to open routing socket: %w", err)
	}
	return &Session{api: api, fd: fd, pid: uint32(os.Getpid())}, nil
}

// Close releases the socket. It is safe to call more than once.
func (s *Session) Close() error {
	if s == nil || s.closed {
		return nil
	}
	s.closed = true
	return s.api.Close(s.fd)
}

// Buffer exposes the session buffer. After a successful Exchange the first
// returned-length bytes hold the accumulated reply.
func (s *Session) Buffer() []byte {
	return s.buf[:]
}

func (s *Session) nextSeq() uint32 {
	s.seq++
	return s.seq
}

func (s *Session) zeroBuffer() {
	clear(s.buf[:])
}

// Exchange sends the first reqLen bytes of the session buffer and blocks
// until a complete, correlated reply has been accumulated in the same
// buffer. It returns the total reply length.
func (s *Session) Exchange(reqLen int) (int, error) {
	if s == nil || s.closed {
		return 0, ErrSessionClosed
	}
	if reqLen < unix.NLMSG_HDRLEN || reqLen > len(s.buf) {
		return 0, ErrMessageTooLarge
	}

	n, err := s.api.Send(s.fd, s.buf[:reqLen])
	if err != nil {
		return 0, fmt.Errorf("failed to send route request: %w", err)
	}
	if n != reqLen {
		return 0, ErrShortWrite
	}
	return s.receive()
}

// receive accumulates the reply to the request just sent. Transient read
// errors are retried up to maxRecvRetries, kernel error frames abort the
// exchange, messages with a foreign sequence number or pid are discarded
// (the socket class also carries unrelated kernel traffic), and multi-part
// replies are accumulated until the terminal done marker or a message not
// flagged as part of a series.
func (s *Session) receive() (int, error) {
	total := 0
	retries := 0
	for {
		if total >= len(s.buf) {
			return 0, ErrResponseTooLarge
		}
		n, err := s.api.Recv(s.fd, s.buf[total:])
		if err != nil {
			if err == unix.EINTR || err == unix.EAGAIN {
				retries++
				if retries > maxRecvRetries {
					return 0, fmt.Errorf("failed to read route reply: %w", err)
				}
				continue
			}
			return 0, fmt.Errorf("failed to read route reply: %w", err)
		}
		if n == 0 {
			return 0, fmt.Errorf("routing socket closed during reply")
		}

		span := s.buf[total : total+n]
		h, err := parseHeader(span)
		if err != nil {
			return 0, err
		}

		if h.Type == unix.NLMSG_ERROR {
			code, codeErr := parseErrorCode(span)
			if codeErr != nil {
				return 0, codeErr
			}
			if code != 0 {
				return 0, &KernelError{Errno: unix.Errno(-code)}
			}
		}

		if h.Seq != s.seq || h.Pid != s.pid {
			continue
		}

		total += n
		if h.Type == unix.NLMSG_DONE {
			return total, nil
		}
		if h.Flags&unix.NLM_F_MULTI == 0 {
			return total, nil
		}
	}
}
