package streamrt_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purc-run/purcvariant/streamrt"
)

// TestAcceptKeyMatchesRFCExample is the canonical RFC 6455 worked
// example carried by the worked test vector: key
// "dGhlIHNhbXBsZSBub25jZQ==" must accept as
// "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=".
func TestAcceptKeyMatchesRFCExample(t *testing.T) {
	got := streamrt.AcceptKey("dGhlIHNhbXBsZSBub25jZQ==")
	assert.Equal(t, "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=", got)
}

func TestParseHandshakeRequestValid(t *testing.T) {
	raw := "GET /chat HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
		"Sec-WebSocket-Version: 13\r\n\r\n"

	req, err := streamrt.ParseHandshakeRequest([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "/chat", req.Path)
	assert.Equal(t, "dGhlIHNhbXBsZSBub25jZQ==", req.Key)
}

func TestParseHandshakeRequestRejectsOversized(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nHost: x\r\n" + strings.Repeat("X-Pad: a\r\n", 2000) + "\r\n"
	_, err := streamrt.ParseHandshakeRequest([]byte(raw))
	assert.Error(t, err)
}

func TestParseHandshakeRequestMissingVersion(t *testing.T) {
	raw := "GET /chat HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n\r\n"
	_, err := streamrt.ParseHandshakeRequest([]byte(raw))
	assert.Error(t, err)
}

func TestBuildHandshakeResponseContainsAccept(t *testing.T) {
	req := &streamrt.HandshakeRequest{Key: "dGhlIHNhbXBsZSBub25jZQ=="}
	resp := streamrt.BuildHandshakeResponse(req, streamrt.HandshakeResponseOptions{})
	assert.Contains(t, string(resp), "HTTP/1.1 101")
	assert.Contains(t, string(resp), "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=")
}

func TestClientHandshakeRoundTrip(t *testing.T) {
	reqBytes, key, err := streamrt.BuildClientHandshakeRequest(streamrt.ClientHandshakeOptions{
		Host: "example.com", Path: "/chat",
	})
	require.NoError(t, err)
	assert.Contains(t, string(reqBytes), "Sec-WebSocket-Key: "+key)

	parsed, err := streamrt.ParseHandshakeRequest(reqBytes)
	require.NoError(t, err)
	assert.Equal(t, key, parsed.Key)

	respBytes := streamrt.BuildHandshakeResponse(parsed, streamrt.HandshakeResponseOptions{})
	resp, err := streamrt.VerifyServerHandshakeResponse(respBytes, key)
	require.NoError(t, err)
	assert.Equal(t, 101, resp.Status)
}

func TestVerifyServerHandshakeResponseRejectsBadAccept(t *testing.T) {
	raw := "HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: bogus\r\n\r\n"
	_, err := streamrt.VerifyServerHandshakeResponse([]byte(raw), "dGhlIHNhbXBsZSBub25jZQ==")
	assert.Error(t, err)
}
