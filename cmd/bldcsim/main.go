package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"io"
	"log"
	"os"

	"github.com/golang/glog"

	"github.com/robotalks/bldc.go/pkg/board"
	"github.com/robotalks/bldc.go/pkg/framework"
	"github.com/robotalks/bldc.go/pkg/l0/comm"
	"github.com/robotalks/bldc.go/pkg/l0/comm/serial"
	"github.com/robotalks/bldc.go/pkg/sim"
)

var (
	configFile string
	portDevice string
	useStdio   bool
	loadTorque float64
)

type stdio struct {
	io.Reader
	io.Writer
}

func init() {
	board.SetupFlags()
	flag.StringVar(&configFile, "config", configFile, "YAML board config.")
	flag.StringVar(&portDevice, "port", portDevice, "Serial port the board listens on.")
	flag.BoolVar(&useStdio, "stdio", useStdio, "Talk the protocol over stdin/stdout.")
	flag.Float64Var(&loadTorque, "load", loadTorque, "Load torque on the shaft in Nm.")
}

func main() {
	flag.Parse()

	conf := board.NewConfig()
	if configFile != "" {
		loaded, err := board.LoadConfig(configFile)
		if err != nil {
			log.Fatalln(err)
		}
		conf = loaded
	}

	var rw io.ReadWriter
	switch {
	case useStdio:
		rw = stdio{Reader: os.Stdin, Writer: os.Stdout}
	case portDevice != "":
		p, err := serial.Open(serial.Config{Device: portDevice, BaudRate: int(conf.BaudRate)})
		if err != nil {
			log.Fatalln(err)
		}
		defer p.Close()
		rw = p
	default:
		log.Fatalln("one of -port or -stdio is required")
	}

	mc := sim.DefaultMotorConfig
	mc.LoadTorque = loadTorque
	port := comm.NewPort(rw, conf.BufferSize)
	rig, err := sim.NewRig(*conf, mc, port)
	if err != nil {
		log.Fatalln(err)
	}

	l := framework.NewLoop()
	if err := l.Add(rig); err != nil {
		log.Fatalln(err)
	}
	l.AddRunnable(framework.NamedRun("port", port))
	glog.Infof("bldcsim: drive 0x%02X running", rig.Board.Address)

	runner := framework.NewRunner().HandleSignals()
	runner.Go(framework.NamedRun("loop", l))
	if err := runner.Wait(); err != nil {
		log.Fatalln(err)
	}
}
