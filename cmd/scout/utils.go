package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/samber/lo"

	"github.com/256dpi/scout/pkg/ble"
	"github.com/256dpi/scout/pkg/config"
	"github.com/256dpi/scout/pkg/mdns"
	"github.com/256dpi/scout/pkg/scan"
)

func exitIfSet(errs ...error) {
	for _, err := range errs {
		if err != nil {
			exitWithError(err.Error())
		}
	}
}

func exitWithError(str string) {
	_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", str)
	os.Exit(1)
}

func getConfig(cmd *command) *config.Config {
	// load config
	cfg, err := config.Load(cmd.oConfig)
	exitIfSet(err)

	// apply options
	if cmd.oDuration != nil {
		cfg.Duration = *cmd.oDuration
	}
	if cmd.oFilter != "" {
		cfg.Filter = cmd.oFilter
	}
	exitIfSet(cfg.Validate())

	return cfg
}

func newRadio(cfg *config.Config) scan.Radio {
	switch cfg.Backend {
	case config.BackendMDNS:
		return mdns.New(cfg.Service)
	default:
		return ble.New(cfg.Adapter)
	}
}

func formatRSSI(rssi int16) string {
	if rssi == 0 {
		return "-"
	}
	return fmt.Sprintf("%d dBm", rssi)
}

func formatGrants(list []scan.Grant) string {
	if len(list) == 0 {
		return "none"
	}
	return strings.Join(lo.Map(list, func(g scan.Grant, _ int) string {
		return string(g)
	}), ", ")
}
