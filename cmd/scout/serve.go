package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/op/go-logging"

	"github.com/256dpi/scout/pkg/config"
	"github.com/256dpi/scout/pkg/feed"
	"github.com/256dpi/scout/pkg/grant"
	"github.com/256dpi/scout/pkg/mqtt"
	"github.com/256dpi/scout/pkg/scan"
	"github.com/256dpi/scout/pkg/utils"
)

func serve(cfg *config.Config) {
	// setup logging
	log := utils.SetupLogging("scout", logging.INFO, os.Stderr)

	// prepare hub
	hub := feed.NewHub()

	// prepare found handlers
	var bridge atomic.Pointer[mqtt.Bridge]
	found := func(s scan.Session, p scan.Peer) {
		log.Infof("found: %s", p.Record())
		if b := bridge.Load(); b != nil {
			b.Found(s, p)
		}
	}

	// prepare workflow, missing grants are denied
	w := scan.New(newRadio(cfg), grant.NewStore(nil, cfg.ParsedGrants()...), scan.Options{
		Duration: cfg.Duration,
		Filter:   cfg.Filter,
		Logger:   log,
		Update:   hub.Update,
		Found:    found,
		Changed: func(s scan.State) {
			log.Noticef("state: %s", s)
		},
	})

	// connect MQTT bridge
	if cfg.MQTT.URL != "" {
		b, err := mqtt.Connect(mqtt.Config{
			URL:      cfg.MQTT.URL,
			ClientID: cfg.MQTT.ClientID,
			Topic:    cfg.MQTT.Topic,
			Trigger:  w.Trigger,
			Logger:   log,
		})
		if err != nil {
			w.Teardown()
			exitIfSet(err)
		}
		defer b.Close()
		bridge.Store(b)
		log.Infof("bridging to %s", cfg.MQTT.URL)
	}

	// prepare server
	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           newMux(w, hub),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// run server
	errs := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", cfg.Listen)
		err := server.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	// prepare workflow
	w.Prepare()
	w.Trigger()

	// wait for signal or error
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	var err error
	select {
	case <-signals:
	case err = <-errs:
	}

	// teardown
	log.Info("shutting down")
	w.Teardown()

	// stop server
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(ctx)

	exitIfSet(err)
}

func newMux(w *scan.Workflow, hub *feed.Hub) *http.ServeMux {
	// prepare mux
	mux := http.NewServeMux()

	// serve records
	mux.HandleFunc("GET /{$}", func(rw http.ResponseWriter, _ *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
		session := w.Session()
		_, _ = fmt.Fprintf(rw, "# %s %s\n", w.State(), session.ID)
		for _, record := range w.Records() {
			_, _ = fmt.Fprintln(rw, record)
		}
	})

	// trigger scan
	mux.HandleFunc("POST /scan", func(rw http.ResponseWriter, _ *http.Request) {
		w.Trigger()
		rw.WriteHeader(http.StatusAccepted)
	})

	// stream records
	mux.Handle("/feed", hub)

	return mux
}
