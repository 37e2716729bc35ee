package env

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	testCases := []struct {
		in   string
		addr byte
		err  bool
	}{
		{"0xA1", 0xA1, false},
		{"161", 0xA1, false},
		{"0x100", 0, true},
		{"x", 0, true},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			addr, err := ParseAddress(tc.in)
			if tc.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.addr, addr)
		})
	}
}

func TestSenderFromID(t *testing.T) {
	require.EqualValues(t, MinSender, SenderFromID(""))
	require.EqualValues(t, MinSender, SenderFromID("not hex"))
	ids := []string{"00", "ff", "0123456789abcdef", "deadbeefdeadbeefdeadbeef"}
	for _, id := range ids {
		s := SenderFromID(id)
		require.GreaterOrEqual(t, s, byte(MinSender))
		require.LessOrEqual(t, s, byte(MaxSender))
		require.Equal(t, s, SenderFromID(id))
	}
	require.NotEqual(t, SenderFromID("00"), SenderFromID("01"))
}

func TestApplyEnv(t *testing.T) {
	vars := map[string]string{
		"BLDC_PORT":    "/dev/ttyUSB1",
		"BLDC_BAUD":    "9600",
		"BLDC_ADDRESS": "0xA3",
		"BLDC_SENDER":  "0x10",
	}
	conf := NewConfig()
	require.NoError(t, conf.applyEnv(func(k string) string { return vars[k] }))
	require.Equal(t, "/dev/ttyUSB1", conf.Port)
	require.Equal(t, 9600, conf.BaudRate)
	require.EqualValues(t, 0xA3, conf.Address)
	require.EqualValues(t, 0x10, conf.Sender)

	vars["BLDC_BAUD"] = "fast"
	require.Error(t, NewConfig().applyEnv(func(k string) string { return vars[k] }))
}

func TestValidate(t *testing.T) {
	conf := NewConfig()
	conf.Sender = 0x10
	require.NoError(t, conf.Validate())
	conf.Sender = 0
	require.Error(t, conf.Validate())
	conf.Sender = 0xA0
	require.Error(t, conf.Validate())
}

type pipeConn struct {
	io.Reader
	io.WriteCloser
}

func TestNewConn(t *testing.T) {
	r, w := io.Pipe()
	conf := NewConfig()
	conf.Sender, conf.Address = 0x10, 0xA2
	conn, err := conf.NewConn(pipeConn{Reader: r, WriteCloser: w})
	require.NoError(t, err)
	require.EqualValues(t, 0x10, conn.Address)
	require.EqualValues(t, 0xA2, conn.Target)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- conn.Run(ctx) }()
	require.NoError(t, conn.Close())
	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("link still running after close")
	}

	conf.Sender = conf.Address
	_, err = conf.NewConn(pipeConn{Reader: r, WriteCloser: w})
	require.Error(t, err)
}

func TestConnectWithoutPort(t *testing.T) {
	conf := NewConfig()
	conf.Port = ""
	_, err := conf.Connect()
	require.Error(t, err)
}
