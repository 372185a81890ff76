package main

import (
	"time"

	"github.com/docopt/docopt-go"
)

var usage = `scout - permission gated peer discovery

Usage:
  scout init [--config=<path>]
  scout scan [--config=<path> --duration=<d> --filter=<glob> --yes]
  scout watch [--config=<path> --filter=<glob>]
  scout serve [--config=<path>]
  scout services [--config=<path> --duration=<d>]
  scout -h | --help

Options:
  -c --config=<path>    The configuration file [default: scout.yaml].
  -d --duration=<d>     The discovery session duration, 0 scans until Ctrl+C.
  -f --filter=<glob>    Only keep peers with a matching name.
  -y --yes              Grant missing permissions without asking.
  -h --help             Show this screen.
`

type command struct {
	// commands
	cInit  bool
	cScan  bool
	cWatch bool
	cServe bool
	cSvcs  bool

	// options
	oConfig   string
	oDuration *time.Duration
	oFilter   string
	oYes      bool
}

func parseCommand() *command {
	a, err := docopt.Parse(usage, nil, true, "", false)
	exitIfSet(err)

	return &command{
		// commands
		cInit:  getBool(a["init"]),
		cScan:  getBool(a["scan"]),
		cWatch: getBool(a["watch"]),
		cServe: getBool(a["serve"]),
		cSvcs:  getBool(a["services"]),

		// options
		oConfig:   getString(a["--config"]),
		oDuration: getDuration(a["--duration"]),
		oFilter:   getString(a["--filter"]),
		oYes:      getBool(a["--yes"]),
	}
}

func getBool(field interface{}) bool {
	val, _ := field.(bool)
	return val
}

func getString(field interface{}) string {
	str, _ := field.(string)
	return str
}

func getDuration(field interface{}) *time.Duration {
	// check presence
	str := getString(field)
	if str == "" {
		return nil
	}

	// parse duration
	d, err := time.ParseDuration(str)
	exitIfSet(err)

	return &d
}
