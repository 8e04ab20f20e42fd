package streamrt_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purc-run/purcvariant/streamrt"
)

// pipeIO adapts an *os.File end of a pipe to streamrt.RawIO for tests.
type pipeIO struct{ f *os.File }

func (p *pipeIO) Fd() int                     { return int(p.f.Fd()) }
func (p *pipeIO) Read(b []byte) (int, error)  { return p.f.Read(b) }
func (p *pipeIO) Write(b []byte) (int, error) { return p.f.Write(b) }
func (p *pipeIO) Close() error                { return p.f.Close() }

func TestStreamWriteDirectSucceedsWithoutQueueing(t *testing.T) {
	loop, err := streamrt.NewLoop(nil)
	require.NoError(t, err)
	defer loop.Close()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()

	sink := streamrt.NewChanSink(4)
	s, err := streamrt.NewStream(nil, loop, &pipeIO{f: w}, sink, 1, nil)
	require.NoError(t, err)
	defer s.Close()

	n, err := s.Write([]byte("hi"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	status, _ := s.Status()
	assert.True(t, status.Has(streamrt.StatusReading))
}

func TestStreamReadDeliversBytesAndPostsEvent(t *testing.T) {
	loop, err := streamrt.NewLoop(nil)
	require.NoError(t, err)
	defer loop.Close()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer w.Close()

	sink := streamrt.NewChanSink(4)
	var got []byte
	s, err := streamrt.NewStream(nil, loop, &pipeIO{f: r}, sink, 7, func(b []byte) {
		got = append(got, b...)
	})
	require.NoError(t, err)
	defer s.Close()

	_, err = w.Write([]byte("payload"))
	require.NoError(t, err)

	require.NoError(t, loop.RunOnce())

	assert.Equal(t, "payload", string(got))
	select {
	case ev := <-sink.Events():
		assert.Equal(t, streamrt.EventStreamReadable, ev.Kind)
		assert.Equal(t, int64(7), ev.CoroID)
	case <-time.After(time.Second):
		t.Fatal("expected a readable event")
	}
}
