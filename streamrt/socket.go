package streamrt

import (
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/pkg/errors"
)

// Scheme is a recognized stream.open URL scheme.
type Scheme string

const (
	SchemeFile  Scheme = "file"
	SchemePipe  Scheme = "pipe"
	SchemeFifo  Scheme = "fifo"
	SchemeUnix  Scheme = "unix"
	SchemeLocal Scheme = "local" // alias for unix
	SchemeInet  Scheme = "inet"
	SchemeInet4 Scheme = "inet4"
	SchemeInet6 Scheme = "inet6"
)

// OpenFlag is one token of an open_opts flag list.
type OpenFlag int

const (
	FlagGlobal OpenFlag = 1 << iota
	FlagNameless
	FlagNonblock
	FlagCloexec
)

// FlagDefault is "default" = nonblock|cloexec; FlagNone ("none") is 0.
const FlagDefault = FlagNonblock | FlagCloexec
const FlagNone OpenFlag = 0

// ParseOpenFlags converts the textual open-flag tokens into an OpenFlag
// bit-set.
func ParseOpenFlags(tokens []string) (OpenFlag, error) {
	var f OpenFlag
	for _, tok := range tokens {
		switch strings.ToLower(strings.TrimSpace(tok)) {
		case "global":
			f |= FlagGlobal
		case "nameless":
			f |= FlagNameless
		case "nonblock":
			f |= FlagNonblock
		case "cloexec":
			f |= FlagCloexec
		case "default":
			f |= FlagDefault
		case "none":
			// explicit no-op
		default:
			return 0, errors.Errorf("streamrt: unknown open flag %q", tok)
		}
	}
	return f, nil
}

// TLSOptions configures socket.stream's optional TLS wrapping.
type TLSOptions struct {
	SSLCert string
	SSLKey  string

	SessionCacheID    string
	SessionCacheUsers SessionCacheMode
	SessionCacheSize  int
}

// parsedURL is the scheme-dispatch result of a stream.open/socket.* URL.
type parsedURL struct {
	scheme Scheme
	host   string
	port   int
	path   string
}

func parseStreamURL(raw string) (*parsedURL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.Wrap(err, "streamrt: malformed stream URL")
	}
	scheme := Scheme(strings.ToLower(u.Scheme))
	switch scheme {
	case SchemeFile, SchemePipe, SchemeFifo:
		return &parsedURL{scheme: scheme, path: u.Opaque + u.Path}, nil
	case SchemeUnix, SchemeLocal:
		return &parsedURL{scheme: SchemeUnix, path: u.Opaque + u.Path}, nil
	case SchemeInet, SchemeInet4, SchemeInet6:
		host := u.Hostname()
		portStr := u.Port()
		if host == "" || portStr == "" {
			return nil, errors.New("streamrt: inet URL requires host and port")
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, errors.Wrap(err, "streamrt: invalid port")
		}
		return &parsedURL{scheme: scheme, host: host, port: port}, nil
	default:
		return nil, errors.Errorf("streamrt: unrecognized URL scheme %q", u.Scheme)
	}
}

func (p *parsedURL) network() string {
	switch p.scheme {
	case SchemeUnix:
		return "unix"
	case SchemeInet4:
		return "tcp4"
	case SchemeInet6:
		return "tcp6"
	default:
		return "tcp"
	}
}

func (p *parsedURL) address() string {
	if p.scheme == SchemeUnix {
		return p.path
	}
	return net.JoinHostPort(p.host, strconv.Itoa(p.port))
}

// netConnIO adapts a net.Conn to the RawIO interface NewStream expects.
// It issues the read/write syscalls through syscall.RawConn. When a
// syscall reports EAGAIN, RawConn.Read/Write park the calling goroutine
// on Go's runtime netpoller and retry once the fd is ready, so Read and
// Write wait for readiness and do not return ErrAgain in practice.
type netConnIO struct {
	conn net.Conn
	raw  syscall.RawConn
	fd   int
}

func newNetConnIO(conn net.Conn) (*netConnIO, error) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return nil, errors.New("streamrt: connection does not expose a raw fd")
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return nil, errors.Wrap(err, "streamrt: SyscallConn")
	}
	var fd int
	ctrlErr := raw.Control(func(v uintptr) { fd = int(v) })
	if ctrlErr != nil {
		return nil, errors.Wrap(ctrlErr, "streamrt: reading raw fd")
	}
	return &netConnIO{conn: conn, raw: raw, fd: fd}, nil
}

func (n *netConnIO) Fd() int { return n.fd }

func (n *netConnIO) Read(p []byte) (int, error) {
	var nr int
	var rerr error
	err := n.raw.Read(func(fd uintptr) bool {
		nr, rerr = syscall.Read(int(fd), p)
		if rerr == syscall.EAGAIN {
			return false // not ready: RawConn waits on Go's netpoller, then calls again
		}
		return true
	})
	if err != nil {
		return 0, errors.Wrap(err, "streamrt: raw read")
	}
	if rerr == syscall.EAGAIN {
		return 0, ErrAgain
	}
	return nr, rerr
}

func (n *netConnIO) Write(p []byte) (int, error) {
	var nw int
	var werr error
	err := n.raw.Write(func(fd uintptr) bool {
		nw, werr = syscall.Write(int(fd), p)
		if werr == syscall.EAGAIN {
			return false
		}
		return true
	})
	if err != nil {
		return 0, errors.Wrap(err, "streamrt: raw write")
	}
	if werr == syscall.EAGAIN {
		return nw, ErrAgain
	}
	return nw, werr
}

func (n *netConnIO) Close() error { return n.conn.Close() }

// Listener is a bound, listening socket created by StreamListen.
type Listener struct {
	ln     net.Listener
	parsed *parsedURL
	tls    *TLSOptions
}

// StreamListen creates a listening stream socket (TCP/unix) with the
// given backlog hint and optional TLS wrapping. net.ListenConfig offers
// no way to override the pending-connection backlog it passes to
// listen(2), so the socket is built with raw syscalls instead and
// handed to net.FileListener once bound.
func StreamListen(rawURL string, flags OpenFlag, backlog int, tlsOpts *TLSOptions) (*Listener, error) {
	p, err := parseStreamURL(rawURL)
	if err != nil {
		return nil, err
	}
	ln, err := backlogListen(p, backlog)
	if err != nil {
		return nil, errors.Wrap(err, "streamrt: listen")
	}
	if flags&FlagNameless != 0 && p.scheme == SchemeUnix {
		// Nameless unix sockets are unlinked right after bind/listen so
		// no other process can reach them by path; only fds already
		// derived from this listener (via Accept) see traffic.
		_ = syscall.Unlink(p.path)
	}
	return &Listener{ln: ln, parsed: p, tls: tlsOpts}, nil
}

// backlogListen binds and listens a socket for p with an explicit
// backlog, bypassing net.ListenConfig's fixed internal value.
func backlogListen(p *parsedURL, backlog int) (net.Listener, error) {
	if backlog <= 0 {
		backlog = syscall.SOMAXCONN
	}
	if p.scheme == SchemeUnix {
		return backlogListenUnix(p.path, backlog)
	}
	return backlogListenInet(p, backlog)
}

func backlogListenInet(p *parsedURL, backlog int) (net.Listener, error) {
	addr, err := net.ResolveTCPAddr(p.network(), p.address())
	if err != nil {
		return nil, errors.Wrap(err, "streamrt: resolve tcp addr")
	}
	domain := syscall.AF_INET
	if p.scheme == SchemeInet6 || (addr.IP != nil && addr.IP.To4() == nil) {
		domain = syscall.AF_INET6
	}
	fd, err := syscall.Socket(domain, syscall.SOCK_STREAM, 0)
	if err != nil {
		return nil, errors.Wrap(err, "streamrt: socket")
	}
	if err := syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1); err != nil {
		_ = syscall.Close(fd)
		return nil, errors.Wrap(err, "streamrt: setsockopt SO_REUSEADDR")
	}
	sa, err := tcpSockaddr(domain, addr)
	if err != nil {
		_ = syscall.Close(fd)
		return nil, err
	}
	if err := syscall.Bind(fd, sa); err != nil {
		_ = syscall.Close(fd)
		return nil, errors.Wrap(err, "streamrt: bind")
	}
	if err := syscall.Listen(fd, backlog); err != nil {
		_ = syscall.Close(fd)
		return nil, errors.Wrap(err, "streamrt: listen")
	}
	return fileListener(fd, p.address())
}

func tcpSockaddr(domain int, addr *net.TCPAddr) (syscall.Sockaddr, error) {
	if domain == syscall.AF_INET6 {
		sa := &syscall.SockaddrInet6{Port: addr.Port}
		if addr.IP != nil {
			copy(sa.Addr[:], addr.IP.To16())
		}
		return sa, nil
	}
	sa := &syscall.SockaddrInet4{Port: addr.Port}
	if addr.IP != nil {
		ip4 := addr.IP.To4()
		if ip4 == nil {
			return nil, errors.New("streamrt: inet4 listener given a non-IPv4 address")
		}
		copy(sa.Addr[:], ip4)
	}
	return sa, nil
}

func backlogListenUnix(path string, backlog int) (net.Listener, error) {
	fd, err := syscall.Socket(syscall.AF_UNIX, syscall.SOCK_STREAM, 0)
	if err != nil {
		return nil, errors.Wrap(err, "streamrt: socket")
	}
	if err := syscall.Bind(fd, &syscall.SockaddrUnix{Name: path}); err != nil {
		_ = syscall.Close(fd)
		return nil, errors.Wrap(err, "streamrt: bind")
	}
	if err := syscall.Listen(fd, backlog); err != nil {
		_ = syscall.Close(fd)
		return nil, errors.Wrap(err, "streamrt: listen")
	}
	return fileListener(fd, path)
}

// fileListener hands a bound, listening fd to net.FileListener, which
// dups it internally; the original fd is always closed afterward.
func fileListener(fd int, name string) (net.Listener, error) {
	f := os.NewFile(uintptr(fd), name)
	defer f.Close()
	ln, err := net.FileListener(f)
	if err != nil {
		return nil, errors.Wrap(err, "streamrt: FileListener")
	}
	return ln, nil
}

// Accept blocks for (in caller's run-loop terms, is invoked from) a
// readable listener fd and returns a connected stream's raw IO. When the
// listener was created with TLSOptions, the returned stream has already
// completed the TLS server handshake.
func (l *Listener) Accept() (RawIO, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, errors.Wrap(err, "streamrt: accept")
	}
	raw, err := newNetConnIO(conn)
	if err != nil {
		return nil, err
	}
	if l.tls == nil {
		return raw, nil
	}
	return wrapServerTLS(raw, l.tls)
}

// Addr returns the listener's bound address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Close releases the listening socket.
func (l *Listener) Close() error { return l.ln.Close() }

// StreamDial opens a connected client stream socket, optionally
// completing a TLS client handshake before returning when tlsOpts is
// non-nil.
func StreamDial(rawURL string, flags OpenFlag, tlsOpts *TLSOptions) (RawIO, error) {
	p, err := parseStreamURL(rawURL)
	if err != nil {
		return nil, err
	}
	conn, err := net.Dial(p.network(), p.address())
	if err != nil {
		return nil, errors.Wrap(err, "streamrt: dial")
	}
	raw, err := newNetConnIO(conn)
	if err != nil {
		return nil, err
	}
	if tlsOpts == nil {
		return raw, nil
	}
	return wrapClientTLS(raw, p.host, tlsOpts)
}

// DgramSocket wraps a UDP/unixgram socket for socket.dgram.
type DgramSocket struct {
	conn   net.PacketConn
	parsed *parsedURL
}

// DgramListen creates a datagram socket bound per rawURL.
func DgramListen(rawURL string, flags OpenFlag) (*DgramSocket, error) {
	p, err := parseStreamURL(rawURL)
	if err != nil {
		return nil, err
	}
	network := "udp"
	if p.scheme == SchemeUnix {
		network = "unixgram"
	}
	conn, err := net.ListenPacket(network, p.address())
	if err != nil {
		return nil, errors.Wrap(err, "streamrt: listen dgram")
	}
	return &DgramSocket{conn: conn, parsed: p}, nil
}

// SendResult mirrors the {sent|recved, errorname, ...} result shape of
// sendto/recvfrom.
type SendResult struct {
	Sent      int
	ErrorName string
}

// SendTo sends bytes to the address named by rawURL.
func (d *DgramSocket) SendTo(rawURL string, p []byte) SendResult {
	target, err := parseStreamURL(rawURL)
	if err != nil {
		return SendResult{ErrorName: err.Error()}
	}
	addr, err := net.ResolveUDPAddr("udp", target.address())
	if err != nil {
		return SendResult{ErrorName: err.Error()}
	}
	n, err := d.conn.WriteTo(p, addr)
	if err != nil {
		return SendResult{Sent: n, ErrorName: err.Error()}
	}
	return SendResult{Sent: n}
}

// RecvResult mirrors the recvfrom result shape.
type RecvResult struct {
	Recved     int
	ErrorName  string
	Bytes      []byte
	SourceAddr string
	SourcePort int
}

// RecvFrom reads up to size bytes from the datagram socket.
func (d *DgramSocket) RecvFrom(size int) RecvResult {
	buf := make([]byte, size)
	n, addr, err := d.conn.ReadFrom(buf)
	if err != nil {
		return RecvResult{ErrorName: err.Error()}
	}
	host, portStr, _ := net.SplitHostPort(addr.String())
	port, _ := strconv.Atoi(portStr)
	return RecvResult{Recved: n, Bytes: buf[:n], SourceAddr: host, SourcePort: port}
}

// Close releases the datagram socket.
func (d *DgramSocket) Close() error { return d.conn.Close() }
