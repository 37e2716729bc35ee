// Package sh provides an interactive console for drives on a serial bus.
package sh

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"strconv"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"

	"github.com/robotalks/bldc.go/pkg/board"
	"github.com/robotalks/bldc.go/pkg/host/env"
	"github.com/robotalks/bldc.go/pkg/l0/comm"
	"github.com/robotalks/bldc.go/pkg/l0/comm/serial"
	"github.com/robotalks/bldc.go/pkg/sim"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoConnect bool

	Shell  *ishell.Shell
	Config *env.Config
	Conn   *ConnLoop
}

// ConnLoop is a connection with its receiving loop running.
type ConnLoop struct {
	Ctx    context.Context
	Cancel func()
	Name   string
	Conn   *env.Conn
}

// Close stops the loop and closes the stream.
func (l *ConnLoop) Close() error {
	l.Cancel()
	return l.Conn.Close()
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&PortsCmd,
		&ConnectCmd,
		&DisconnectCmd,
		&SimulateCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeConnected wraps command func requires a connection.
func MustBeConnected(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Conn == nil {
			c.Err(fmt.Errorf("not connected"))
			return
		}
		fn(c)
	}
}

// RequestFunc performs requests on the connected drive.
type RequestFunc func(ctx context.Context, client *comm.Client) (interface{}, error)

// Request runs fn with the configured timeout on the current connection.
func (s *Shell) Request(fn RequestFunc) (interface{}, error) {
	if s.Conn == nil {
		return nil, fmt.Errorf("not connected")
	}
	ctx, cancel := context.WithTimeout(s.Conn.Ctx, s.Config.Timeout)
	defer cancel()
	return fn(ctx, s.Conn.Conn.Client)
}

// Format renders a result for display.
func (s *Shell) Format(res interface{}) (string, error) {
	if s.OutputJSON {
		if res == nil {
			res = struct{}{}
		}
		out, err := json.Marshal(res)
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
	switch r := res.(type) {
	case nil:
		return "OK", nil
	case fmt.Stringer:
		return r.String(), nil
	default:
		return fmt.Sprintf("%v", r), nil
	}
}

// DoRequest runs a request and prints the result.
func DoRequest(c *ishell.Context, fn RequestFunc) error {
	s := ShellFrom(c)
	res, err := s.Request(fn)
	if err == nil {
		var out string
		if out, err = s.Format(res); err == nil {
			c.Println(out)
			return nil
		}
	}
	c.Err(err)
	return err
}

// WithAutoConnect sets AutoConnect.
func (s *Shell) WithAutoConnect(en bool) *Shell {
	s.AutoConnect = en
	return s
}

// Attach makes conn the current connection and starts receiving.
func (s *Shell) Attach(name string, conn *env.Conn) {
	connLoop := &ConnLoop{Name: name, Conn: conn}
	connLoop.Ctx, connLoop.Cancel = context.WithCancel(context.Background())
	s.Disconnect()
	s.Conn = connLoop
	go func() {
		if err := conn.Run(connLoop.Ctx); err != nil && connLoop.Ctx.Err() == nil {
			glog.Warningf("sh: %s: %v", name, err)
		}
	}()
	s.Shell.SetPrompt(fmt.Sprintf("%s@0x%02X > ", name, conn.Target))
}

// Connect opens port, or the configured port if empty.
func (s *Shell) Connect(port string) error {
	conf := *s.Config
	if port != "" {
		conf.Port = port
	}
	conn, err := conf.Connect()
	if err != nil {
		return err
	}
	s.Attach(conf.Port, conn)
	return nil
}

// ConnectSim runs a simulated drive in process and connects to it.
func (s *Shell) ConnectSim(conf board.Config) error {
	lb, err := sim.StartLoopback(conf, sim.DefaultMotorConfig)
	if err != nil {
		return err
	}
	hostConf := *s.Config
	hostConf.Address = conf.Address()
	conn, err := hostConf.NewConn(lb)
	if err != nil {
		lb.Close()
		return err
	}
	s.Attach("sim", conn)
	return nil
}

// Disconnect closes the current connection.
func (s *Shell) Disconnect() error {
	if s.Conn == nil {
		return nil
	}
	err := s.Conn.Close()
	s.Conn = nil
	s.Shell.SetPrompt(unconnectedPrompt)
	return err
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.AutoConnect && s.Config.Port != "" {
		if s.Interactive {
			s.Shell.Printf("Connecting %s ...\n", s.Config.Port)
		}
		if err := s.Connect(""); err != nil {
			log.Fatalf("connect %q failed: %v", s.Config.Port, err)
		}
	}
	defer s.Disconnect()

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// PortsCmd lists serial ports.
	PortsCmd = ishell.Cmd{
		Name:    "ports",
		Aliases: []string{"list", "l"},
		Help:    "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			ports, err := serial.Ports()
			if err != nil {
				c.Err(err)
				return
			}
			if s.OutputJSON {
				if len(ports) == 0 {
					// in case ports is nil, make it empty slice.
					ports = []string{}
				}
				out, err := json.Marshal(ports)
				if err != nil {
					c.Err(err)
					return
				}
				c.Println(string(out))
				return
			}
			if len(ports) == 0 {
				c.Println("No serial ports found")
				return
			}
			for _, port := range ports {
				c.Println(port)
			}
		},
	}

	// ConnectCmd connects a drive.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "[PORT [ADDRESS]]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			var port string
			if len(c.Args) > 0 {
				port = c.Args[0]
			}
			if len(c.Args) > 1 {
				addr, err := env.ParseAddress(c.Args[1])
				if err != nil {
					c.Err(err)
					return
				}
				s.Config.Address = addr
			}
			if port == "" && s.Config.Port == "" {
				c.Err(fmt.Errorf("PORT required"))
				return
			}
			if err := s.Connect(port); err != nil {
				c.Err(err)
				return
			}
		},
	}

	// DisconnectCmd disconnects current drive.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			if err := ShellFrom(c).Disconnect(); err != nil {
				c.Err(err)
			}
		},
	}

	// SimulateCmd connects a simulated drive.
	SimulateCmd = ishell.Cmd{
		Name:    "simulate",
		Aliases: []string{"sim"},
		Help:    "[STRAPS]",
		Func: func(c *ishell.Context) {
			conf := board.NewConfig()
			conf.DiagMillis = 0
			if len(c.Args) > 0 {
				straps, err := strconv.ParseUint(c.Args[0], 0, 8)
				if err != nil {
					c.Err(fmt.Errorf("invalid STRAPS: %v", err))
					return
				}
				conf.Straps = uint8(straps)
			}
			if err := ShellFrom(c).ConnectSim(*conf); err != nil {
				c.Err(err)
			}
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	s := New(env.NewConfig()).WithAutoConnect(true)
	if err := s.Config.Validate(); err != nil {
		log.Fatalln(err)
	}
	s.Run(flag.Args()...)
}
