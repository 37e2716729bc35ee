package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/robotalks/bldc.go/pkg/framework"
	"github.com/robotalks/bldc.go/pkg/host/env"
	"github.com/robotalks/bldc.go/pkg/l0/params"
	"github.com/robotalks/bldc.go/pkg/msgs"
)

var (
	interval = 200 * time.Millisecond
)

func init() {
	env.SetupFlags()
	flag.DurationVar(&interval, "interval", interval, "Polling interval.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	conf := env.NewConfig()
	conn, err := conf.Connect()
	if err != nil {
		log.Fatalln(err)
	}
	defer conn.Close()

	poll := framework.RunnableFunc(func(ctx context.Context) error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		var last string
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
			reqCtx, cancel := context.WithTimeout(ctx, conf.Timeout)
			data, err := conn.ReadRange(reqCtx, params.AddrStatus, params.Span)
			cancel()
			if err != nil {
				log.Printf("0x%02X: %v", conf.Address, err)
				continue
			}
			status, err := msgs.DecodeStatus(data)
			if err != nil {
				log.Printf("0x%02X: bad status: %v", conf.Address, err)
				continue
			}
			// only changes are printed
			if s := status.String(); s != last {
				log.Printf("0x%02X: %s [%s]", conf.Address, s, status.FaultList())
				last = s
			}
		}
	})

	runner := framework.NewRunner().HandleSignals()
	runner.Go(framework.NamedRun("link", conn), framework.NamedRun("poll", poll))
	if err := runner.Wait(); err != nil {
		log.Fatalln(err)
	}
}
