package buffer_test

import (
	"bytes"
	"os"
	"os/exec"
	"testing"

	"github.com/CZERTAINLY/email-output/internal/buffer"
	"github.com/stretchr/testify/require"
)

func TestBuffer(t *testing.T) {
	t.Parallel()

	buf, err := buffer.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = buf.Close() })

	require.False(t, buf.NonEmpty())
	require.Zero(t, buf.Len())

	_, err = buf.Write([]byte("hello\n"))
	require.NoError(t, err)
	_, err = buf.Write([]byte("world\n"))
	require.NoError(t, err)

	require.True(t, buf.NonEmpty())
	require.EqualValues(t, 12, buf.Len())

	b, err := buf.Bytes()
	require.NoError(t, err)
	require.Equal(t, "hello\nworld\n", string(b))

	var out bytes.Buffer
	n, err := buf.WriteTo(&out)
	require.NoError(t, err)
	require.EqualValues(t, 12, n)
	require.Equal(t, "hello\nworld\n", out.String())

	// WriteTo does not consume
	b, err = buf.Bytes()
	require.NoError(t, err)
	require.Len(t, b, 12)
}

func TestBufferClose(t *testing.T) {
	t.Parallel()

	buf, err := buffer.New(t.TempDir())
	require.NoError(t, err)
	name := buf.File().Name()

	require.NoError(t, buf.Close())
	require.NoError(t, buf.Close())

	_, err = os.Stat(name)
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = buf.Write([]byte("x"))
	require.ErrorIs(t, err, buffer.ErrClosed)
	_, err = buf.Bytes()
	require.ErrorIs(t, err, buffer.ErrClosed)

	var nilBuf *buffer.Buffer
	require.NoError(t, nilBuf.Close())
}

func TestBufferChild(t *testing.T) {
	t.Parallel()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skipf("skipped, binary sh not available: %v", err)
	}

	buf, err := buffer.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = buf.Close() })

	cmd := exec.Command(sh, "-c", "echo child")
	cmd.Stdout = buf.File()
	require.NoError(t, cmd.Run())

	require.Zero(t, buf.Len())
	require.NoError(t, buf.Sync())
	require.EqualValues(t, 6, buf.Len())

	b, err := buf.Bytes()
	require.NoError(t, err)
	require.Equal(t, "child\n", string(b))
}
