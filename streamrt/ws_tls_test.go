package streamrt

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// selfSignedCert builds a loopback-valid TLS certificate for tests that
// exercise the real tls.Server/tls.Client handshake rather than mocking it.
func selfSignedCert(t *testing.T) tls.Certificate {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    time.Unix(0, 0),
		NotAfter:     time.Unix(0, 0).Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	require.NoError(t, err)

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyDER, err := x509.MarshalECPrivateKey(priv)
	require.NoError(t, err)
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	require.NoError(t, err)
	cert.Leaf, err = x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}

// TestWrapServerTLSUsesConfiguredCertificate exercises the actual
// certificate-loading path (tlsConfigFromOptions -> tls.LoadX509KeyPair)
// that Listener.Accept relies on, via temp PEM files.
func TestWrapServerTLSUsesConfiguredCertificate(t *testing.T) {
	cert := selfSignedCert(t)
	certPath, keyPath := writeCertFiles(t, cert)

	pool := x509.NewCertPool()
	pool.AddCert(cert.Leaf)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	serverDone := make(chan RawIO, 1)
	serverErr := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			serverErr <- err
			return
		}
		raw, err := newNetConnIO(conn)
		if err != nil {
			serverErr <- err
			return
		}
		s, err := wrapServerTLS(raw, &TLSOptions{SSLCert: certPath, SSLKey: keyPath})
		if err != nil {
			serverErr <- err
			return
		}
		serverDone <- s
	}()

	clientConn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	clientRaw, err := newNetConnIO(clientConn)
	require.NoError(t, err)

	rc := &rawNonBlockConn{nc: clientRaw}
	clientTLS := tls.Client(rc, &tls.Config{RootCAs: pool, ServerName: "localhost"})
	require.NoError(t, driveHandshake(NewTLSHandshake(clientTLS, false), rc))
	client := &tlsConnIO{conn: clientTLS, fd: clientRaw.Fd()}
	defer client.Close()

	var server RawIO
	select {
	case server = <-serverDone:
	case err := <-serverErr:
		t.Fatalf("server handshake failed: %v", err)
	}
	defer server.Close()

	msg := []byte("hello over tls")
	_, err = client.Write(msg)
	require.NoError(t, err)

	buf := make([]byte, len(msg))
	n, err := readFull(server, buf)
	require.NoError(t, err)
	require.Equal(t, msg, buf[:n])
}

func readFull(r RawIO, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		if err == ErrAgain {
			continue
		}
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func writeCertFiles(t *testing.T, cert tls.Certificate) (certPath, keyPath string) {
	t.Helper()
	dir := t.TempDir()
	certPath = dir + "/cert.pem"
	keyPath = dir + "/key.pem"

	certOut := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Certificate[0]})
	require.NoError(t, writeFile(certPath, certOut))

	keyDER, err := x509.MarshalECPrivateKey(cert.PrivateKey.(*ecdsa.PrivateKey))
	require.NoError(t, err)
	keyOut := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	require.NoError(t, writeFile(keyPath, keyOut))
	return certPath, keyPath
}

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o600)
}
