// Package params provides console commands on the parameter table of a
// drive.
package params

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"
	"github.com/pkg/errors"

	"github.com/robotalks/bldc.go/pkg/cli/sh"
	"github.com/robotalks/bldc.go/pkg/l0/comm"
	"github.com/robotalks/bldc.go/pkg/l0/params"
	"github.com/robotalks/bldc.go/pkg/msgs"
)

// Bytes are raw table bytes.
type Bytes []byte

// String implements fmt.Stringer.
func (b Bytes) String() string {
	parts := make([]string, len(b))
	for n, v := range b {
		parts[n] = fmt.Sprintf("%02x", v)
	}
	return strings.Join(parts, " ")
}

// MarshalJSON implements json.Marshaler.
func (b Bytes) MarshalJSON() ([]byte, error) {
	vals := make([]int, len(b))
	for n, v := range b {
		vals[n] = int(v)
	}
	return json.Marshal(vals)
}

// Read reads single bytes.
func Read(addrs ...byte) sh.RequestFunc {
	return func(ctx context.Context, client *comm.Client) (interface{}, error) {
		return client.ReadByAddress(ctx, addrs...)
	}
}

// Write writes single bytes.
func Write(pairs ...comm.Pair) sh.RequestFunc {
	return func(ctx context.Context, client *comm.Client) (interface{}, error) {
		return client.WriteByAddress(ctx, pairs...)
	}
}

// ReadRange reads count bytes from base.
func ReadRange(base, count byte) sh.RequestFunc {
	return func(ctx context.Context, client *comm.Client) (interface{}, error) {
		data, err := client.ReadRange(ctx, base, count)
		return Bytes(data), err
	}
}

// WriteRange writes data at base.
func WriteRange(base byte, data []byte) sh.RequestFunc {
	return func(ctx context.Context, client *comm.Client) (interface{}, error) {
		data, err := client.WriteRange(ctx, base, data)
		return Bytes(data), err
	}
}

// ClearPosition zeroes the position.
func ClearPosition() sh.RequestFunc {
	return func(ctx context.Context, client *comm.Client) (interface{}, error) {
		return nil, client.ClearPosition(ctx)
	}
}

// Status reads the whole table.
func Status() sh.RequestFunc {
	return func(ctx context.Context, client *comm.Client) (interface{}, error) {
		data, err := client.ReadRange(ctx, params.AddrStatus, params.Span)
		if err != nil {
			return nil, err
		}
		return msgs.DecodeStatus(data)
	}
}

func readControl(ctx context.Context, client *comm.Client) (params.ControlFlags, error) {
	data, err := client.ReadRange(ctx, params.AddrControl, 2)
	if err != nil {
		return 0, err
	}
	return params.ControlFlags(binary.LittleEndian.Uint16(data)), nil
}

// UpdateControl sets or clears control bits, leaving the others.
func UpdateControl(bits params.ControlFlags, on bool) sh.RequestFunc {
	return func(ctx context.Context, client *comm.Client) (interface{}, error) {
		ctl, err := readControl(ctx, client)
		if err != nil {
			return nil, err
		}
		var data [2]byte
		binary.LittleEndian.PutUint16(data[:], uint16(ctl.With(bits, on)))
		_, err = client.WriteRange(ctx, params.AddrControl, data[:])
		return nil, err
	}
}

// Target sets the required position.
func Target(pos int32) sh.RequestFunc {
	return func(ctx context.Context, client *comm.Client) (interface{}, error) {
		var data [4]byte
		binary.LittleEndian.PutUint32(data[:], uint32(pos))
		_, err := client.WriteRange(ctx, params.AddrPositionRequired, data[:])
		return nil, err
	}
}

// Faults reads the fault bits.
func Faults() sh.RequestFunc {
	return func(ctx context.Context, client *comm.Client) (interface{}, error) {
		data, err := client.ReadRange(ctx, params.AddrErrors, 2)
		if err != nil {
			return nil, err
		}
		return params.Faults(binary.LittleEndian.Uint16(data)), nil
	}
}

// ClearFaults resets all fault bits.
func ClearFaults() sh.RequestFunc {
	return func(ctx context.Context, client *comm.Client) (interface{}, error) {
		_, err := client.WriteRange(ctx, params.AddrErrors, []byte{0, 0})
		return nil, err
	}
}

func parseByte(s string) (byte, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, errors.Errorf("invalid byte %q", s)
	}
	return byte(v), nil
}

func parseBytes(args []string) ([]byte, error) {
	data := make([]byte, len(args))
	for n, arg := range args {
		v, err := parseByte(arg)
		if err != nil {
			return nil, err
		}
		data[n] = v
	}
	return data, nil
}

// ParsePair parses ADDR=VALUE.
func ParsePair(s string) (p comm.Pair, err error) {
	parts := strings.SplitN(s, "=", 2)
	if len(parts) != 2 {
		return p, errors.Errorf("ADDR=VALUE expected: %q", s)
	}
	if p.Addr, err = parseByte(parts[0]); err != nil {
		return
	}
	p.Value, err = parseByte(parts[1])
	return
}

func cmdFunc(minArgs int, usage string, fn func(args []string) (sh.RequestFunc, error)) func(c *ishell.Context) {
	return sh.MustBeConnected(func(c *ishell.Context) {
		if len(c.Args) < minArgs {
			c.Err(fmt.Errorf("%s required", usage))
			return
		}
		req, err := fn(c.Args)
		if err != nil {
			c.Err(err)
			return
		}
		sh.DoRequest(c, req)
	})
}

func fixed(req sh.RequestFunc) func(c *ishell.Context) {
	return cmdFunc(0, "", func([]string) (sh.RequestFunc, error) { return req, nil })
}

var (
	// ReadCmd reads bytes by address.
	ReadCmd = ishell.Cmd{
		Name:    "read",
		Aliases: []string{"r"},
		Help:    "ADDR...",
		Func: cmdFunc(1, "ADDR", func(args []string) (sh.RequestFunc, error) {
			addrs, err := parseBytes(args)
			if err != nil {
				return nil, err
			}
			return Read(addrs...), nil
		}),
	}

	// WriteCmd writes bytes by address.
	WriteCmd = ishell.Cmd{
		Name:    "write",
		Aliases: []string{"w"},
		Help:    "ADDR=VALUE...",
		Func: cmdFunc(1, "ADDR=VALUE", func(args []string) (sh.RequestFunc, error) {
			pairs := make([]comm.Pair, len(args))
			for n, arg := range args {
				p, err := ParsePair(arg)
				if err != nil {
					return nil, err
				}
				pairs[n] = p
			}
			return Write(pairs...), nil
		}),
	}

	// ReadRangeCmd reads consecutive bytes.
	ReadRangeCmd = ishell.Cmd{
		Name:    "readrange",
		Aliases: []string{"rr"},
		Help:    "BASE COUNT",
		Func: cmdFunc(2, "BASE COUNT", func(args []string) (sh.RequestFunc, error) {
			vals, err := parseBytes(args[:2])
			if err != nil {
				return nil, err
			}
			return ReadRange(vals[0], vals[1]), nil
		}),
	}

	// WriteRangeCmd writes consecutive bytes.
	WriteRangeCmd = ishell.Cmd{
		Name:    "writerange",
		Aliases: []string{"wr"},
		Help:    "BASE BYTE...",
		Func: cmdFunc(2, "BASE BYTE", func(args []string) (sh.RequestFunc, error) {
			vals, err := parseBytes(args)
			if err != nil {
				return nil, err
			}
			return WriteRange(vals[0], vals[1:]), nil
		}),
	}

	// ClearPosCmd clears the position.
	ClearPosCmd = ishell.Cmd{
		Name:    "clearpos",
		Aliases: []string{"cp"},
		Help:    "",
		Func:    fixed(ClearPosition()),
	}

	// RunCmd starts the motor.
	RunCmd = ishell.Cmd{
		Name: "run",
		Help: "",
		Func: fixed(UpdateControl(params.ControlRun, true)),
	}

	// StopCmd stops the motor.
	StopCmd = ishell.Cmd{
		Name: "stop",
		Help: "",
		Func: fixed(UpdateControl(params.ControlRun, false)),
	}

	// StatusCmd shows the table.
	StatusCmd = ishell.Cmd{
		Name:    "status",
		Aliases: []string{"st"},
		Help:    "",
		Func:    fixed(Status()),
	}

	// TargetCmd sets the required position.
	TargetCmd = ishell.Cmd{
		Name:    "target",
		Aliases: []string{"t"},
		Help:    "POSITION",
		Func: cmdFunc(1, "POSITION", func(args []string) (sh.RequestFunc, error) {
			pos, err := strconv.ParseInt(args[0], 0, 32)
			if err != nil {
				return nil, errors.Wrap(err, "invalid POSITION")
			}
			return Target(int32(pos)), nil
		}),
	}

	// FaultsCmd shows the faults.
	FaultsCmd = ishell.Cmd{
		Name: "faults",
		Help: "",
		Func: fixed(Faults()),
	}

	// ClearFaultsCmd resets the faults.
	ClearFaultsCmd = ishell.Cmd{
		Name: "clearfaults",
		Help: "",
		Func: fixed(ClearFaults()),
	}
)

func init() {
	sh.AddCmds(
		&ReadCmd,
		&WriteCmd,
		&ReadRangeCmd,
		&WriteRangeCmd,
		&ClearPosCmd,
		&RunCmd,
		&StopCmd,
		&StatusCmd,
		&TargetCmd,
		&FaultsCmd,
		&ClearFaultsCmd,
	)
}
