package main

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/kasader/rdt/internal/testutil/testlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closeRecorder struct {
	data     []byte
	closed   bool
	closeErr error
}

func (c *closeRecorder) Write(p []byte) (int, error) {
	c.data = append(c.data, p...)
	return len(p), nil
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return c.closeErr
}

func write(payload string) func(io.Writer) (int64, error) {
	return func(w io.Writer) (int64, error) {
		n, err := io.WriteString(w, payload)
		return int64(n), err
	}
}

func TestWriteStreamFlushesAndCloses(t *testing.T) {
	testlog.Start(t)
	dst := &closeRecorder{}
	n, err := writeStream(dst, write("hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.Equal(t, "hello", string(dst.data))
	assert.True(t, dst.closed)
}

func TestWriteStreamReportsCloseError(t *testing.T) {
	testlog.Start(t)
	errDisk := errors.New("disk full")
	dst := &closeRecorder{closeErr: errDisk}
	_, err := writeStream(dst, write("hello"))
	assert.True(t, errors.Is(err, errDisk), "got %v", err)
}

func TestWriteStreamKeepsReceiveError(t *testing.T) {
	testlog.Start(t)
	errRecv := errors.New("recv failed")
	dst := &closeRecorder{closeErr: errors.New("close failed")}
	_, err := writeStream(dst, func(io.Writer) (int64, error) { return 0, errRecv })
	assert.True(t, errors.Is(err, errRecv), "got %v", err)
	assert.True(t, dst.closed)
}

func TestOpenOutputFile(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "out.bin")
	out, err := openOutput(path)
	require.NoError(t, err)
	_, err = writeStream(out, write("payload"))
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))
}
