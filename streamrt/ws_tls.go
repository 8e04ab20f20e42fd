package streamrt

import (
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// TLSHandshakePhase is the pre-application sub-state a TLS-wrapped
// stream passes through before frames can flow.
type TLSHandshakePhase int

const (
	TLSIdle TLSHandshakePhase = iota
	TLSAccepting
	TLSConnecting
	TLSDone
	TLSFailed
)

// TLSWant narrows why a handshake step didn't complete, mirroring the
// underlying library's rw hints.
type TLSWant int

const (
	TLSWantNone TLSWant = iota
	TLSWantRead
	TLSWantWrite
)

// TLSHandshake drives crypto/tls's Handshake() as the additional
// pre-application phase: driveHandshake calls Step until it reports
// TLSDone or TLSFailed.
type TLSHandshake struct {
	conn  *tls.Conn
	phase TLSHandshakePhase
	want  TLSWant
}

// NewTLSHandshake wraps conn for a server (isServer=true) or client role.
func NewTLSHandshake(conn *tls.Conn, isServer bool) *TLSHandshake {
	phase := TLSConnecting
	if isServer {
		phase = TLSAccepting
	}
	return &TLSHandshake{conn: conn, phase: phase}
}

// Step attempts to advance the handshake; call again when the fd next
// becomes ready for the returned Want direction.
func (h *TLSHandshake) Step() (TLSHandshakePhase, TLSWant, error) {
	if h.phase == TLSDone || h.phase == TLSFailed {
		return h.phase, TLSWantNone, nil
	}
	err := h.conn.Handshake()
	if err == nil {
		h.phase = TLSDone
		h.want = TLSWantNone
		return h.phase, h.want, nil
	}
	if err == errWantRead {
		h.want = TLSWantRead
		return h.phase, h.want, nil
	}
	if err == errWantWrite {
		h.want = TLSWantWrite
		return h.phase, h.want, nil
	}
	h.phase = TLSFailed
	return h.phase, TLSWantNone, errors.Wrap(err, "streamrt: TLS handshake failed")
}

// crypto/tls does not expose WANT_READ/WANT_WRITE directly the way
// OpenSSL does; rawNonBlockConn returns these sentinels when its
// transport reports ErrAgain. Over a netConnIO transport that does not
// happen, so Handshake runs to completion (or failure) in one call.
var (
	errWantRead  = errors.New("streamrt: tls handshake wants read")
	errWantWrite = errors.New("streamrt: tls handshake wants write")
)

// SessionCacheMode bits select which other uids may attach to a shared
// TLS session cache.
type SessionCacheMode int

const (
	CacheGroup SessionCacheMode = 1 << iota
	CacheOther
)

// SessionCachePerm derives the POSIX shm mode bits for a session cache
// segment: the owner always has 0600, group/other read-write are ORed
// in per the requested mode.
func SessionCachePerm(mode SessionCacheMode) uint32 {
	perm := uint32(0o600)
	if mode&CacheGroup != 0 {
		perm |= 0o060
	}
	if mode&CacheOther != 0 {
		perm |= 0o006
	}
	return perm
}

// SessionCache is a POSIX shared-memory-backed TLS session cache
// identified by name, shared across stream-runtime instances in the
// same process tree.
type SessionCache struct {
	name string
	fd   int
	size int
}

// shmDir is where Linux keeps the tmpfs backing POSIX shared memory;
// x/sys/unix exposes the raw open/unlink syscalls but not the glibc
// shm_open wrapper, so the cache opens this path directly as shm_open
// itself does on Linux.
const shmDir = "/dev/shm"

// OpenSessionCache creates or attaches to a named shm segment sized for
// a session cache, applying the derived access-bit permissions.
func OpenSessionCache(id string, mode SessionCacheMode, size int) (*SessionCache, error) {
	if len(id) == 0 || len(id) > 64 {
		return nil, errors.New("streamrt: session cache id must be 1-64 bytes")
	}
	name := fmt.Sprintf("%s/purcvariant-tls-%s", shmDir, id)
	perm := SessionCachePerm(mode)

	fd, err := unix.Open(name, unix.O_CREAT|unix.O_RDWR, perm)
	if err != nil {
		return nil, errors.Wrap(err, "streamrt: opening shm segment")
	}
	if size < 4096 {
		size = 4096
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		_ = unix.Close(fd)
		return nil, errors.Wrap(err, "streamrt: ftruncate shm segment")
	}
	return &SessionCache{name: name, fd: fd, size: size}, nil
}

// Close releases the cache's file descriptor; the shm segment itself
// persists until Unlink is called by the last owner.
func (c *SessionCache) Close() error {
	return unix.Close(c.fd)
}

// Unlink removes the shm segment's name so no further processes can
// attach to it.
func (c *SessionCache) Unlink() error {
	return unix.Unlink(c.name)
}

// Fd returns the shm segment's descriptor for Mmap-ing by the caller.
func (c *SessionCache) Fd() int { return c.fd }

// Size returns the segment size in bytes.
func (c *SessionCache) Size() int { return c.size }

// rawNonBlockConn adapts a netConnIO's raw-syscall Read/Write to the
// net.Conn shape crypto/tls.Server/Client require, translating an
// ErrAgain result into the errWantRead/errWantWrite sentinels
// TLSHandshake.Step watches for. netConnIO waits for readiness instead
// of returning ErrAgain, so its calls block until they complete.
type rawNonBlockConn struct {
	nc *netConnIO
}

func (c *rawNonBlockConn) Read(p []byte) (int, error) {
	n, err := c.nc.Read(p)
	if err == ErrAgain {
		return n, errWantRead
	}
	return n, err
}

func (c *rawNonBlockConn) Write(p []byte) (int, error) {
	n, err := c.nc.Write(p)
	if err == ErrAgain {
		return n, errWantWrite
	}
	return n, err
}

func (c *rawNonBlockConn) Close() error                       { return c.nc.Close() }
func (c *rawNonBlockConn) LocalAddr() net.Addr                { return c.nc.conn.LocalAddr() }
func (c *rawNonBlockConn) RemoteAddr() net.Addr               { return c.nc.conn.RemoteAddr() }
func (c *rawNonBlockConn) SetDeadline(t time.Time) error      { return c.nc.conn.SetDeadline(t) }
func (c *rawNonBlockConn) SetReadDeadline(t time.Time) error  { return c.nc.conn.SetReadDeadline(t) }
func (c *rawNonBlockConn) SetWriteDeadline(t time.Time) error { return c.nc.conn.SetWriteDeadline(t) }

// waitReady blocks in poll(2) until the underlying fd is ready for the
// direction Step last asked for.
func (c *rawNonBlockConn) waitReady(want TLSWant) error {
	events := int16(unix.POLLIN)
	if want == TLSWantWrite {
		events = unix.POLLOUT
	}
	fds := []unix.PollFd{{Fd: int32(c.nc.Fd()), Events: events}}
	for {
		_, err := unix.Poll(fds, -1)
		if err == unix.EINTR {
			continue
		}
		return err
	}
}

// driveHandshake steps hs to completion, blocking on rc's fd between
// steps for whichever direction Step last requested.
func driveHandshake(hs *TLSHandshake, rc *rawNonBlockConn) error {
	for {
		phase, want, err := hs.Step()
		if err != nil {
			return err
		}
		switch phase {
		case TLSDone:
			return nil
		case TLSFailed:
			return errors.New("streamrt: TLS handshake failed")
		}
		if err := rc.waitReady(want); err != nil {
			return errors.Wrap(err, "streamrt: waiting for TLS handshake readiness")
		}
	}
}

// tlsConnIO is the post-handshake RawIO for a TLS-wrapped stream: reads
// and writes pass through tls.Conn's record layer, with would-block
// folded back to ErrAgain so the rest of the package sees the same
// contract as a plaintext netConnIO.
type tlsConnIO struct {
	conn *tls.Conn
	fd   int
}

func (t *tlsConnIO) Fd() int { return t.fd }

func (t *tlsConnIO) Read(p []byte) (int, error) {
	n, err := t.conn.Read(p)
	if err == errWantRead || err == errWantWrite {
		return n, ErrAgain
	}
	return n, err
}

func (t *tlsConnIO) Write(p []byte) (int, error) {
	n, err := t.conn.Write(p)
	if err == errWantRead || err == errWantWrite {
		return n, ErrAgain
	}
	return n, err
}

func (t *tlsConnIO) Close() error { return t.conn.Close() }

// wrapServerTLS completes a server-side TLS handshake over raw (already
// accepted) and returns the resulting encrypted stream's RawIO.
func wrapServerTLS(raw *netConnIO, opts *TLSOptions) (RawIO, error) {
	cfg, err := tlsConfigFromOptions(opts)
	if err != nil {
		return nil, err
	}
	rc := &rawNonBlockConn{nc: raw}
	conn := tls.Server(rc, cfg)
	if err := driveHandshake(NewTLSHandshake(conn, true), rc); err != nil {
		return nil, err
	}
	return &tlsConnIO{conn: conn, fd: raw.Fd()}, nil
}

// wrapClientTLS completes a client-side TLS handshake over raw (already
// dialed) and returns the resulting encrypted stream's RawIO.
func wrapClientTLS(raw *netConnIO, serverName string, opts *TLSOptions) (RawIO, error) {
	cfg, err := tlsConfigFromOptions(opts)
	if err != nil {
		return nil, err
	}
	if cfg.ServerName == "" {
		cfg.ServerName = serverName
	}
	rc := &rawNonBlockConn{nc: raw}
	conn := tls.Client(rc, cfg)
	if err := driveHandshake(NewTLSHandshake(conn, false), rc); err != nil {
		return nil, err
	}
	return &tlsConnIO{conn: conn, fd: raw.Fd()}, nil
}

// tlsConfigFromOptions builds a *tls.Config from the certificate pair in
// opts; SSLCert/SSLKey are optional for a client (verifying against the
// system root pool), required for a server.
func tlsConfigFromOptions(opts *TLSOptions) (*tls.Config, error) {
	cfg := &tls.Config{}
	if opts.SSLCert == "" && opts.SSLKey == "" {
		return cfg, nil
	}
	cert, err := tls.LoadX509KeyPair(opts.SSLCert, opts.SSLKey)
	if err != nil {
		return nil, errors.Wrap(err, "streamrt: loading TLS certificate")
	}
	cfg.Certificates = []tls.Certificate{cert}
	return cfg, nil
}
