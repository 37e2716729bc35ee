package comm

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPortPumps(t *testing.T) {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	port := NewPort(duplex{inR, outW}, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer inW.Close()
	defer outR.Close()
	go port.Run(ctx)

	_, err := inW.Write([]byte{1, 2, 3})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return port.RxAvailable() == 3 }, time.Second, time.Millisecond)
	for _, expected := range []byte{1, 2, 3} {
		b, ok := port.Recv()
		require.True(t, ok)
		require.Equal(t, expected, b)
	}
	_, ok := port.Recv()
	require.False(t, ok)

	require.Equal(t, 7, port.TxFree())
	require.Equal(t, 4, port.Send([]byte{9, 8, 7, 6}))
	buf := make([]byte, 4)
	_, err = io.ReadFull(outR, buf)
	require.NoError(t, err)
	require.Equal(t, []byte{9, 8, 7, 6}, buf)
	require.Eventually(t, func() bool { return !port.Sending() }, time.Second, time.Millisecond)
}

func TestPortOverrun(t *testing.T) {
	inR, inW := io.Pipe()
	port := NewPort(duplex{inR, io.Discard}, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer inW.Close()
	go port.Run(ctx)

	_, err := inW.Write([]byte{1, 2, 3, 4, 5})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return port.Overruns() == 2 }, time.Second, time.Millisecond)
	require.Equal(t, 3, port.RxAvailable())
}

func TestPipe(t *testing.T) {
	a, b := NewPipe()
	go a.Write([]byte{1, 2})
	buf := make([]byte, 2)
	_, err := io.ReadFull(b, buf)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2}, buf)

	go b.Write([]byte{3})
	_, err = io.ReadFull(a, buf[:1])
	require.NoError(t, err)
	require.EqualValues(t, 3, buf[0])

	require.NoError(t, a.Close())
	_, err = b.Read(buf)
	require.Equal(t, io.EOF, err)
	_, err = b.Write(buf)
	require.Error(t, err)
}
