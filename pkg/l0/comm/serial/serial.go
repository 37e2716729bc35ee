// Package serial opens serial ports as streams for the protocol.
package serial

import (
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"go.bug.st/serial"
)

// DefaultBaudRate is the bus speed of the drive.
const DefaultBaudRate = 125000

// Config selects and configures a port. Frames are always 8N1.
type Config struct {
	Device   string `yaml:"device"`
	BaudRate int    `yaml:"baud_rate"`
	// ReadTimeout makes Read return (0, nil) after the duration without
	// data. Zero blocks.
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// Open opens the port.
func Open(conf Config) (serial.Port, error) {
	if conf.Device == "" {
		return nil, errors.New("serial device not specified")
	}
	baud := conf.BaudRate
	if baud == 0 {
		baud = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(conf.Device, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", conf.Device)
	}
	if conf.ReadTimeout > 0 {
		if err := port.SetReadTimeout(conf.ReadTimeout); err != nil {
			port.Close()
			return nil, errors.Wrapf(err, "set read timeout on %s", conf.Device)
		}
	}
	glog.Infof("serial: opened %s at %d baud", conf.Device, baud)
	return port, nil
}

// Ports lists the serial ports of the system.
func Ports() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, errors.Wrap(err, "list serial ports")
	}
	return ports, nil
}
