package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/op/go-logging"

	"github.com/256dpi/scout/pkg/config"
	"github.com/256dpi/scout/pkg/grant"
	"github.com/256dpi/scout/pkg/mdns"
	"github.com/256dpi/scout/pkg/scan"
	"github.com/256dpi/scout/pkg/utils"
)

func main() {
	// parse command
	cmd := parseCommand()

	// run desired command
	if cmd.cInit {
		initConfig(cmd)
	} else if cmd.cScan {
		scanPeers(cmd, getConfig(cmd))
	} else if cmd.cWatch {
		watch(getConfig(cmd))
	} else if cmd.cServe {
		serve(getConfig(cmd))
	} else if cmd.cSvcs {
		listServices(getConfig(cmd))
	} else {
		fmt.Print(usage)
	}
}

func initConfig(cmd *command) {
	// check existing file
	if _, err := os.Stat(cmd.oConfig); err == nil {
		exitWithError(fmt.Sprintf("configuration '%s' already exists", cmd.oConfig))
	}

	// write default config
	exitIfSet(config.Default().Save(cmd.oConfig))

	// log info
	utils.Logf(os.Stdout, "Created configuration at '%s'", cmd.oConfig)
}

func scanPeers(cmd *command, cfg *config.Config) {
	// setup logging
	log := utils.SetupLogging("scout", logging.WARNING, os.Stderr)

	// prepare authorizer
	prompt := grant.Console(os.Stdin, os.Stdout)
	if cmd.oYes {
		prompt = grant.Fixed(true)
	}
	store := grant.NewStore(prompt, cfg.ParsedGrants()...)

	// prepare channels
	finished := make(chan struct{}, 1)
	failed := make(chan scan.Notice, 1)

	// prepare printers
	red := color.New(color.FgRed)
	faint := color.New(color.Faint)

	// prepare workflow
	var peers []scan.Peer
	w := scan.New(newRadio(cfg), store, scan.Options{
		Duration: cfg.Duration,
		Filter:   cfg.Filter,
		Logger:   log,
		Notify: func(n scan.Notice) {
			_, _ = red.Fprintf(os.Stderr, "==> %s\n", n.Text)
			select {
			case failed <- n:
			default:
			}
		},
		Found: func(_ scan.Session, p scan.Peer) {
			peers = append(peers, p)
			fmt.Println(p.Record())
		},
		Changed: func(s scan.State) {
			if s == scan.Discovering {
				_, _ = faint.Println("==> Discovering... (press Ctrl+C to stop)")
			} else if s == scan.Idle {
				select {
				case finished <- struct{}{}:
				default:
				}
			}
		},
	})

	// prepare and trigger
	w.Prepare()
	w.Trigger()

	// wait for end
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt)
	var notice *scan.Notice
	select {
	case <-finished:
	case <-signals:
	case n := <-failed:
		notice = &n
	}

	// teardown
	w.Teardown()

	// show results
	tbl := newTable("NAME", "ADDRESS", "RSSI")
	for _, p := range peers {
		tbl.add(p.Name, p.Address, formatRSSI(p.RSSI))
	}
	fmt.Println()
	tbl.print(os.Stdout)
	utils.Logf(os.Stdout, "Found %d peers", len(peers))
	utils.Logf(os.Stdout, "Held grants: %s", formatGrants(store.List()))

	// exit with failure
	if notice != nil {
		exitIfSet(errors.New(notice.Text))
	}
}

func listServices(cfg *config.Config) {
	// get duration
	duration := cfg.Duration
	if duration <= 0 {
		duration = config.Default().Duration
	}

	// log info
	utils.Logf(os.Stdout, "Browsing %s for %s...", cfg.Service, duration)

	// perform lookup
	locations, err := mdns.Discover(cfg.Service, duration)
	exitIfSet(err)

	// show results
	tbl := newTable("INSTANCE", "HOSTNAME", "ADDRESS")
	for _, loc := range locations {
		tbl.add(loc.Instance, loc.Hostname, loc.Address)
	}
	fmt.Println()
	tbl.print(os.Stdout)
	utils.Logf(os.Stdout, "Found %d services", len(locations))
}
