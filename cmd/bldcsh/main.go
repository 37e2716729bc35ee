package main

import (
	"github.com/robotalks/bldc.go/pkg/cli/sh"
	"github.com/robotalks/bldc.go/pkg/host/env"

	_ "github.com/robotalks/bldc.go/pkg/cli/cmds/params"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags()
}

func main() {
	sh.Main()
}
