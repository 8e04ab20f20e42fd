package streamrt_test

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purc-run/purcvariant/streamrt"
)

func TestParseOpenFlags(t *testing.T) {
	f, err := streamrt.ParseOpenFlags([]string{"nonblock", "cloexec"})
	require.NoError(t, err)
	assert.Equal(t, streamrt.FlagDefault, f)

	f, err = streamrt.ParseOpenFlags([]string{"none"})
	require.NoError(t, err)
	assert.Equal(t, streamrt.FlagNone, f)

	_, err = streamrt.ParseOpenFlags([]string{"bogus"})
	assert.Error(t, err)
}

func TestSessionCachePerm(t *testing.T) {
	assert.Equal(t, uint32(0o600), streamrt.SessionCachePerm(0))
	assert.Equal(t, uint32(0o660), streamrt.SessionCachePerm(streamrt.CacheGroup))
	assert.Equal(t, uint32(0o606), streamrt.SessionCachePerm(streamrt.CacheOther))
	assert.Equal(t, uint32(0o666), streamrt.SessionCachePerm(streamrt.CacheGroup|streamrt.CacheOther))
}

func TestUnixSocketListenAcceptDial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "purcvariant-test.sock")
	url := fmt.Sprintf("unix://%s", path)

	ln, err := streamrt.StreamListen(url, streamrt.FlagDefault, 16, nil)
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan streamrt.RawIO, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	client, err := streamrt.StreamDial(url, streamrt.FlagDefault, nil)
	require.NoError(t, err)
	defer client.Close()

	server := <-accepted
	defer server.Close()

	_, err = client.Write([]byte("ping"))
	require.NoError(t, err)
}
