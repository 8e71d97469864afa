//go:build linux

package netlink

import (
	"encoding/binary"
	"errors"
	"net"
	"os"
	"testing"

	"golang.org/x/sys/unix"
)

// recvStep is one scripted outcome of a Recv call.
type recvStep struct {
	data []byte
	err  error
}

type fakeSocketAPI struct {
	socketErr  error
	sendErr    error
	shortWrite bool
	recvSteps  []recvStep
	recvErr    error // returned once recvSteps are exhausted

	sent       [][]byte
	closeCalls int
}

func (f *fakeSocketAPI) Socket() (int, error) {
	if f.socketErr != nil {
		return -1, f.socketErr
	}
	return 42, nil
}

func (f *fakeSocketAPI) Send(fd int, p []byte) (int, error) {
	if f.sendErr != nil {
		return 0, f.sendErr
	}
	f.sent = append(f.sent, append([]byte(nil), p...))
	if f.shortWrite {
		return len(p) - 1, nil
	}
	return len(p), nil
}

func (f *fakeSocketAPI) Recv(fd int, p []byte) (int, error) {
	if len(f.recvSteps) == 0 {
		if f.recvErr != nil {
			return 0, f.recvErr
		}
		return 0, nil
	}
	step := f.recvSteps[0]
	f.recvSteps = f.recvSteps[1:]
	if step.err != nil {
		return 0, step.err
	}
	return copy(p, step.data), nil
}

func (f *fakeSocketAPI) Close(fd int) error {
	f.closeCalls++
	return nil
}

// frame builds one netlink message with the given header fields and payload.
func frame(typ uint16, flags uint16, seq uint32, pid uint32, payload []byte) []byte {
	b := make([]byte, nlmsgAlign(unix.NLMSG_HDRLEN+len(payload)))
	putHeader(b, header{
		Len:   uint32(unix.NLMSG_HDRLEN + len(payload)),
		Type:  typ,
		Flags: flags,
		Seq:   seq,
		Pid:   pid,
	})
	copy(b[unix.NLMSG_HDRLEN:], payload)
	return b
}

// errorFrame builds an NLMSG_ERROR frame carrying code (0 for an ack).
func errorFrame(seq uint32, pid uint32, code int32) []byte {
	payload := make([]byte, 4+unix.NLMSG_HDRLEN)
	binary.NativeEndian.PutUint32(payload[0:4], uint32(code))
	return frame(unix.NLMSG_ERROR, 0, seq, pid, payload)
}

func pid() uint32 { return uint32(os.Getpid()) }

// exchangeGet builds a query so the session has a live sequence number, then
// runs the exchange against the scripted socket.
func exchangeGet(t *testing.T, fake *fakeSocketAPI) (int, error) {
	t.Helper()
	s, err := OpenWith(fake)
	if err != nil {
		t.Fatalf("failed to open session: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	n, err := s.NewGetMessage(net.ParseIP("4.4.2.2"))
	if err != nil {
		t.Fatalf("failed to build query: %v", err)
	}
	return s.Exchange(n)
}

func TestExchange_SingleMessageTerminates(t *testing.T) {
	reply := frame(unix.RTM_NEWROUTE, 0, 1, pid(), make([]byte, unix.SizeofRtMsg))
	fake := &fakeSocketAPI{recvSteps: []recvStep{{data: reply}}}

	n, err := exchangeGet(t, fake)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != len(reply) {
		t.Errorf("unexpected reply length: got %d, want %d", n, len(reply))
	}
	if len(fake.sent) != 1 {
		t.Errorf("expected exactly one send, got %d", len(fake.sent))
	}
}

func TestExchange_DiscardsForeignSeqAndPid(t *testing.T) {
	foreignSeq := frame(unix.RTM_NEWROUTE, 0, 99, pid(), make([]byte, unix.SizeofRtMsg))
	foreignPid := frame(unix.RTM_NEWROUTE, 0, 1, pid()+1, make([]byte, unix.SizeofRtMsg))
	good := frame(unix.RTM_NEWROUTE, 0, 1, pid(), make([]byte, unix.SizeofRtMsg))
	fake := &fakeSocketAPI{recvSteps: []recvStep{
		{data: foreignSeq},
		{data: foreignPid},
		{data: good},
	}}

	n, err := exchangeGet(t, fake)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != len(good) {
		t.Errorf("foreign messages must not be accumulated: got %d, want %d", n, len(good))
	}
}

func TestExchange_MultipartAccumulation(t *testing.T) {
	part1 := frame(unix.RTM_NEWROUTE, unix.NLM_F_MULTI, 1, pid(), make([]byte, unix.SizeofRtMsg))
	part2 := frame(unix.RTM_NEWROUTE, unix.NLM_F_MULTI, 1, pid(), make([]byte, unix.SizeofRtMsg))
	done := frame(unix.NLMSG_DONE, unix.NLM_F_MULTI, 1, pid(), make([]byte, 4))
	fake := &fakeSocketAPI{recvSteps: []recvStep{
		{data: part1},
		{data: part2},
		{data: done},
	}}

	n, err := exchangeGet(t, fake)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := len(part1) + len(part2) + len(done)
	if n != want {
		t.Errorf("multipart reply not fully accumulated: got %d, want %d", n, want)
	}
}

func TestExchange_KernelError(t *testing.T) {
	fake := &fakeSocketAPI{recvSteps: []recvStep{
		{data: errorFrame(1, pid(), -int32(unix.ESRCH))},
	}}

	_, err := exchangeGet(t, fake)
	var kerr *KernelError
	if !errors.As(err, &kerr) {
		t.Fatalf("expected KernelError, got %v", err)
	}
	if kerr.Errno != unix.ESRCH {
		t.Errorf("unexpected errno: %v", kerr.Errno)
	}
}

func TestExchange_AckTerminates(t *testing.T) {
	ack := errorFrame(1, pid(), 0)
	fake := &fakeSocketAPI{recvSteps: []recvStep{{data: ack}}}

	n, err := exchangeGet(t, fake)
	if err != nil {
		t.Fatalf("an ack must terminate the exchange cleanly, got %v", err)
	}
	if n != len(ack) {
		t.Errorf("unexpected reply length: got %d, want %d", n, len(ack))
	}
}

func TestExchange_TransientReadRetried(t *testing.T) {
	good := frame(unix.RTM_NEWROUTE, 0, 1, pid(), make([]byte, unix.SizeofRtMsg))
	fake := &fakeSocketAPI{recvSteps: []recvStep{
		{err: unix.EINTR},
		{err: unix.EAGAIN},
		{data: good},
	}}

	n, err := exchangeGet(t, fake)
	if err != nil {
		t.Fatalf("transient errors must be retried, got %v", err)
	}
	if n != len(good) {
		t.Errorf("unexpected reply length: got %d, want %d", n, len(good))
	}
}

func TestExchange_RetryCeiling(t *testing.T) {
	fake := &fakeSocketAPI{recvErr: unix.EINTR}

	_, err := exchangeGet(t, fake)
	if !errors.Is(err, unix.EINTR) {
		t.Fatalf("expected the retry ceiling to surface EINTR, got %v", err)
	}
}

func TestExchange_FatalReadError(t *testing.T) {
	fake := &fakeSocketAPI{recvErr: unix.EBADF}

	_, err := exchangeGet(t, fake)
	if !errors.Is(err, unix.EBADF) {
		t.Fatalf("expected EBADF, got %v", err)
	}
}

func TestExchange_EmptyRead(t *testing.T) {
	fake := &fakeSocketAPI{recvSteps: []recvStep{{data: nil}}}

	if _, err := exchangeGet(t, fake); err == nil {
		t.Fatal("expected error for a zero-length read")
	}
}

func TestExchange_MalformedFrame(t *testing.T) {
	bad := frame(unix.RTM_NEWROUTE, 0, 1, pid(), make([]byte, unix.SizeofRtMsg))
	binary.NativeEndian.PutUint32(bad[0:4], uint32(len(bad)+64)) // declared length beyond span
	fake := &fakeSocketAPI{recvSteps: []recvStep{{data: bad}}}

	if _, err := exchangeGet(t, fake); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestExchange_ShortWrite(t *testing.T) {
	fake := &fakeSocketAPI{shortWrite: true}

	if _, err := exchangeGet(t, fake); !errors.Is(err, ErrShortWrite) {
		t.Fatalf("expected ErrShortWrite, got %v", err)
	}
}

func TestExchange_SendError(t *testing.T) {
	fake := &fakeSocketAPI{sendErr: unix.ENOBUFS}

	if _, err := exchangeGet(t, fake); !errors.Is(err, unix.ENOBUFS) {
		t.Fatalf("expected ENOBUFS, got %v", err)
	}
}

func TestExchange_ClosedSession(t *testing.T) {
	s, err := OpenWith(&fakeSocketAPI{})
	if err != nil {
		t.Fatalf("failed to open session: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Exchange(unix.NLMSG_HDRLEN); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}

func TestSession_CloseIdempotent(t *testing.T) {
	fake := &fakeSocketAPI{}
	s, err := OpenWith(fake)
	if err != nil {
		t.Fatalf("failed to open session: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close must be a no-op, got %v", err)
	}
	if fake.closeCalls != 1 {
		t.Errorf("socket must be closed exactly once, got %d", fake.closeCalls)
	}
}

func TestOpenWith_SocketError(t *testing.T) {
	fake := &fakeSocketAPI{socketErr: unix.EPROTONOSUPPORT}
	if _, err := OpenWith(fake); !errors.Is(err, unix.EPROTONOSUPPORT) {
		t.Fatalf("expected EPROTONOSUPPORT, got %v", err)
	}
}
