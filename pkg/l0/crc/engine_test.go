package crc

import (
	"hash/crc32"
	"testing"

	"github.com/sigurn/crc16"
	"github.com/stretchr/testify/require"
)

var checkInput = []byte("123456789")

func TestConfigValidation(t *testing.T) {
	testCases := []struct {
		name string
		cfg  Config
		err  error
	}{
		{name: "default", cfg: Default},
		{name: "crc16", cfg: Config{Polynomial: 0x1021, Order: 16, DataWidth: 8}},
		{name: "bad order", cfg: Config{Polynomial: 0x07, Order: 7, DataWidth: 8}, err: ErrInvalidOrder},
		{name: "bad width", cfg: Config{Polynomial: 0x07, Order: 8, DataWidth: 24}, err: ErrInvalidDataWidth},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.cfg)
			require.Equal(t, tc.err, err)
		})
	}
}

func TestMPEG2(t *testing.T) {
	e := MustNew(Config{Polynomial: 0x04C11DB7, Order: 32, DataWidth: 8})
	crc := e.Checksum(e.IndirectSeed(0xFFFFFFFF), checkInput)
	require.Equal(t, uint32(0x0376E6E7), crc)
}

func TestReflectedMatchesIEEE(t *testing.T) {
	testCases := []struct {
		name  string
		width uint
		data  []byte
	}{
		{name: "bytes", width: 8, data: checkInput},
		{name: "words", width: 32, data: []byte("12345678abcdefgh")},
		{name: "half words", width: 16, data: []byte{0xde, 0xad, 0xbe, 0xef, 0, 1}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			e := MustNew(Config{Polynomial: 0x04C11DB7, Order: 32, DataWidth: tc.width, LittleEndian: true})
			crc := e.Reverse(e.Checksum(e.IndirectSeed(0xFFFFFFFF), tc.data)) ^ 0xFFFFFFFF
			require.Equal(t, crc32.ChecksumIEEE(tc.data), crc)
		})
	}
}

func TestCCITTFalse(t *testing.T) {
	table := crc16.MakeTable(crc16.CRC16_CCITT_FALSE)
	e := MustNew(Config{Polynomial: 0x1021, Order: 16, DataWidth: 8})
	seed := e.IndirectSeed(0xFFFF)
	require.Equal(t, uint32(0x29B1), e.Checksum(seed, checkInput))
	for _, data := range [][]byte{{0}, {0x55, 0xAA}, []byte("bldc motor driver")} {
		require.Equal(t, uint32(crc16.Checksum(data, table)), e.Checksum(seed, data))
	}
}

func TestWordOrder(t *testing.T) {
	words := MustNew(Default)
	bytes := MustNew(Config{Polynomial: 0x04C11DB7, Order: 32, DataWidth: 8})
	seed := words.IndirectSeed(0xFFFFFFFF)
	require.Equal(t,
		bytes.Checksum(seed, []byte("43218765")),
		words.Checksum(seed, []byte("12345678")))
}

func TestTrailingPartialWordIgnored(t *testing.T) {
	e := MustNew(Default)
	seed := e.IndirectSeed(0xFFFFFFFF)
	require.Equal(t,
		e.Checksum(seed, []byte{1, 2, 3, 4}),
		e.Checksum(seed, []byte{1, 2, 3, 4, 5, 6}))
}

func TestEmptyReturnsSeed(t *testing.T) {
	for _, cfg := range []Config{Default, {Polynomial: 0x1021, Order: 16, DataWidth: 16}, {Polynomial: 0x07, Order: 8, DataWidth: 8}} {
		e := MustNew(cfg)
		mask := uint32(1)<<cfg.Order - 1
		for _, seed := range []uint32{0, 1, 0x1234, 0xFFFFFFFF} {
			require.Equal(t, seed&mask, e.Checksum(e.IndirectSeed(seed), nil))
		}
	}
}

func TestDeterministicAndSensitive(t *testing.T) {
	e := MustNew(Default)
	seed := e.IndirectSeed(0xFFFFFFFF)
	data := []byte{0x55, 0x03, 0xA0, 0x01, 0x02, 0x07, 0x00, 0x00}
	ref := e.Checksum(seed, data)
	require.Equal(t, ref, e.Checksum(seed, data))
	for n := range data {
		for bit := uint(0); bit < 8; bit++ {
			flipped := append([]byte(nil), data...)
			flipped[n] ^= 1 << bit
			require.NotEqual(t, ref, e.Checksum(seed, flipped), "byte %d bit %d", n, bit)
		}
	}
}

func TestReverse(t *testing.T) {
	e := MustNew(Config{Polynomial: 0x1021, Order: 16, DataWidth: 8})
	require.Equal(t, uint32(0x8000), e.Reverse(1))
	require.Equal(t, uint32(0x0F00), e.Reverse(0x00F0))
	e32 := MustNew(Default)
	require.Equal(t, uint32(0xEDB88320), e32.Reverse(0x04C11DB7))
}

func TestChangeDataWidth(t *testing.T) {
	e := MustNew(Default)
	require.Equal(t, ErrInvalidDataWidth, e.ChangeDataWidth(12))
	require.NoError(t, e.ChangeDataWidth(8))
	require.Equal(t, uint(8), e.DataWidth())
	e.Checksum(0, checkInput)
	require.Equal(t, uint(8), e.DataWidth())
}
