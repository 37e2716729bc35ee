package board

import (
	"flag"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/robotalks/bldc.go/pkg/l0/comm"
	"github.com/robotalks/bldc.go/pkg/l0/comm/serial"
	"github.com/robotalks/bldc.go/pkg/l0/params"
	"github.com/robotalks/bldc.go/pkg/motor/control"
)

// BaseAddress is the device type part of the bus address.
const BaseAddress = 0xA0

// MaxStraps is the highest address strap setting.
const MaxStraps = 7

// Config defines the board setup.
type Config struct {
	// Straps are the address jumpers.
	Straps uint8 `yaml:"straps"`
	// BaudRate of the bus, used for the inactivity timeout.
	BaudRate uint32 `yaml:"baud_rate"`
	// BufferSize of each transport ring.
	BufferSize int `yaml:"buffer_size"`
	// DiagMillis is the interval of status logging, 0 disables it.
	DiagMillis uint32 `yaml:"diag_millis"`
	// Params are loaded into the table at power-up.
	Params params.Values `yaml:"params"`
}

var defaultConfig = Config{
	BaudRate:   serial.DefaultBaudRate,
	BufferSize: comm.DefaultBufferSize,
	DiagMillis: 1000,
	Params:     params.Defaults,
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.Func("straps", "Address straps 0-7.", func(s string) error {
		var v uint8
		if _, err := fmt.Sscan(s, &v); err != nil {
			return err
		}
		defaultConfig.Straps = v
		return nil
	})
	flag.Func("baud", "Bus baud rate.", func(s string) error {
		_, err := fmt.Sscan(s, &defaultConfig.BaudRate)
		return err
	})
	flag.Func("diag", "Status logging interval in ms, 0 disables.", func(s string) error {
		_, err := fmt.Sscan(s, &defaultConfig.DiagMillis)
		return err
	})
}

// DefaultConfig gets default config.
func DefaultConfig() *Config {
	return &defaultConfig
}

// NewConfig creates a config with defaults.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// LoadConfig reads a YAML file on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	conf := NewConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(data, conf); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	return conf, nil
}

// Address is the bus address selected by the straps.
func (c *Config) Address() byte {
	return BaseAddress | (c.Straps & MaxStraps)
}

// Validate checks the config.
func (c *Config) Validate() (err error) {
	if c.Straps > MaxStraps {
		err = multierr.Append(err, fmt.Errorf("straps %d out of range 0-%d", c.Straps, MaxStraps))
	}
	if c.BaudRate == 0 {
		err = multierr.Append(err, errors.New("baud rate must be positive"))
	}
	if c.BufferSize <= comm.MaxFrameSize {
		err = multierr.Append(err, fmt.Errorf("buffer size %d can't hold a frame of %d bytes", c.BufferSize, comm.MaxFrameSize))
	}
	if c.Params.MaxMotorCurrent > control.MotorCurrentLimit {
		err = multierr.Append(err, fmt.Errorf("max motor current %d above %d", c.Params.MaxMotorCurrent, control.MotorCurrentLimit))
	}
	if c.Params.CurrentScale == 0 {
		err = multierr.Append(err, errors.New("current scale must be positive"))
	}
	if !c.Params.CurrentCoefficients.Valid() {
		err = multierr.Append(err, &control.ConfigError{Loop: control.LoopCurrent, Coefficients: c.Params.CurrentCoefficients})
	}
	if !c.Params.PositionCoefficients.Valid() {
		err = multierr.Append(err, &control.ConfigError{Loop: control.LoopPosition, Coefficients: c.Params.PositionCoefficients})
	}
	return
}
