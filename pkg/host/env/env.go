// Package env configures host side connections to a drive.
package env

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/robotalks/bldc.go/pkg/board"
	"github.com/robotalks/bldc.go/pkg/l0/comm"
	"github.com/robotalks/bldc.go/pkg/l0/comm/serial"
)

// Sender addresses are kept below the device range.
const (
	MinSender = 0x01
	MaxSender = board.BaseAddress - 1

	appID = "bldc.go"
)

// Config provides common options to connect a drive.
type Config struct {
	// Port is the serial device.
	Port string
	// BaudRate of the bus.
	BaudRate int
	// Address of the drive.
	Address byte
	// Sender is the address of this host.
	Sender byte
	// Timeout limits each request.
	Timeout time.Duration
}

var defaultConfig = Config{
	BaudRate: serial.DefaultBaudRate,
	Address:  board.BaseAddress,
	Sender:   MinSender,
	Timeout:  time.Second,
}

func init() {
	defaultConfig.Sender = SenderFromID(MachineID())
	if err := defaultConfig.applyEnv(os.Getenv); err != nil {
		glog.Warningf("env: %v", err)
	}
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if val := getenv("BLDC_PORT"); val != "" {
		c.Port = val
	}
	if val := getenv("BLDC_BAUD"); val != "" {
		baud, err := strconv.Atoi(val)
		if err != nil {
			return errors.Wrap(err, "BLDC_BAUD")
		}
		c.BaudRate = baud
	}
	if val := getenv("BLDC_ADDRESS"); val != "" {
		addr, err := ParseAddress(val)
		if err != nil {
			return errors.Wrap(err, "BLDC_ADDRESS")
		}
		c.Address = addr
	}
	if val := getenv("BLDC_SENDER"); val != "" {
		addr, err := ParseAddress(val)
		if err != nil {
			return errors.Wrap(err, "BLDC_SENDER")
		}
		c.Sender = addr
	}
	return nil
}

// SetupFlags sets up command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.Port, "port", defaultConfig.Port, "Serial port of the bus.")
	flag.IntVar(&defaultConfig.BaudRate, "baud", defaultConfig.BaudRate, "Bus baud rate.")
	flag.Func("addr", "Drive address, e.g. 0xA1.", func(s string) (err error) {
		defaultConfig.Address, err = ParseAddress(s)
		return
	})
	flag.Func("sender", "Host address.", func(s string) (err error) {
		defaultConfig.Sender, err = ParseAddress(s)
		return
	})
	flag.DurationVar(&defaultConfig.Timeout, "timeout", defaultConfig.Timeout, "Request timeout.")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// ParseAddress parses a bus address in decimal or 0x notation.
func ParseAddress(s string) (byte, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q", s)
	}
	return byte(v), nil
}

// MachineID retrieves an ID of this machine bound to the application, empty
// if the platform doesn't provide one.
func MachineID() string {
	id, err := machineid.ProtectedID(appID)
	if err != nil {
		glog.V(2).Infof("env: machine id: %v", err)
		return ""
	}
	return id
}

// SenderFromID maps a machine ID into the sender range, so hosts sharing a
// bus get distinct addresses without setup.
func SenderFromID(id string) byte {
	raw, err := hex.DecodeString(id)
	if err != nil || len(raw) == 0 {
		return MinSender
	}
	var sum uint
	for _, b := range raw {
		sum = sum*31 + uint(b)
	}
	return byte(MinSender + sum%(MaxSender-MinSender+1))
}

// Validate checks the addresses.
func (c *Config) Validate() error {
	if c.Sender < MinSender || c.Sender > MaxSender {
		return fmt.Errorf("sender 0x%02X out of range 0x%02X-0x%02X", c.Sender, MinSender, MaxSender)
	}
	if c.Address == c.Sender {
		return fmt.Errorf("sender and drive share address 0x%02X", c.Address)
	}
	return nil
}

// Conn is a client over an open stream.
type Conn struct {
	*comm.Client
	io.Closer
}

// NewConn wraps rw with a client using the addresses of c.
func (c *Config) NewConn(rw io.ReadWriteCloser) (*Conn, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	client := comm.NewClient(comm.NewLink(rw), c.Sender, c.Address)
	return &Conn{Client: client, Closer: rw}, nil
}

// Connect opens the serial port.
func (c *Config) Connect() (*Conn, error) {
	port, err := serial.Open(serial.Config{Device: c.Port, BaudRate: c.BaudRate})
	if err != nil {
		return nil, err
	}
	conn, err := c.NewConn(port)
	if err != nil {
		port.Close()
		return nil, err
	}
	return conn, nil
}
