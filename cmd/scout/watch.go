package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/op/go-logging"
	"github.com/rivo/tview"

	"github.com/256dpi/scout/pkg/config"
	"github.com/256dpi/scout/pkg/grant"
	"github.com/256dpi/scout/pkg/scan"
	"github.com/256dpi/scout/pkg/utils"
)

type consent struct {
	grant scan.Grant
	fn    func(bool)
}

func watch(cfg *config.Config) {
	// prepare logger
	logs := newLogPane(100)
	log := utils.SetupLogging("scout", logging.INFO, logs)

	// create app
	app := tview.NewApplication().
		EnableMouse(true)

	// set up pages
	pages := tview.NewPages()
	app.SetRoot(pages, true)

	// prepare peer view
	peers := tview.NewTextView().
		SetScrollable(true).
		SetWrap(false)
	peers.SetBorder(true).
		SetTitle("Peers")

	// prepare status view
	status := tview.NewTextView().
		SetDynamicColors(true).
		SetText(" idle")

	// prepare log view
	logView := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(false)
	logView.SetBorder(true).
		SetTitle("Log")

	// prepare scan button
	var w *scan.Workflow
	button := tview.NewButton("Scan").SetSelectedFunc(func() {
		w.Trigger()
	})

	// prepare container
	bar := tview.NewFlex().
		AddItem(button, 10, 0, true).
		AddItem(status, 0, 1, false)
	container := tview.NewFlex().SetDirection(tview.FlexRow)
	container.AddItem(peers, 0, 3, false)
	container.AddItem(bar, 1, 0, true)
	container.AddItem(logView, 0, 1, false)

	// add main page
	pages.AddPage("main", container, true, true)

	// prepare log updater
	updateLogView := func() {
		logView.SetText(strings.Join(logs.Lines(), "\n"))
		logView.ScrollToEnd()
	}
	logs.OnChange(func() {
		app.QueueUpdateDraw(updateLogView)
	})

	// prepare peer updater
	var mutex sync.Mutex
	var records []string
	updatePeerView := func() {
		mutex.Lock()
		text := strings.Join(records, "\n")
		mutex.Unlock()
		peers.SetText(text)
		peers.ScrollToEnd()
	}

	// prepare consent queue, only accessed from the UI goroutine
	var consents []consent
	var showNext func()
	showNext = func() {
		// check queue and open modal
		if len(consents) == 0 || pages.HasPage("consent") {
			return
		}

		// show next consent
		c := consents[0]
		consents = consents[1:]
		showConsentModal(app, pages, c.grant, func(granted bool) {
			app.SetFocus(button)
			c.fn(granted)
			showNext()
		})
	}

	// prepare prompter
	prompt := func(g scan.Grant, fn func(bool)) {
		go app.QueueUpdateDraw(func() {
			consents = append(consents, consent{grant: g, fn: fn})
			showNext()
		})
	}

	// prepare workflow
	store := grant.NewStore(prompt, cfg.ParsedGrants()...)
	w = scan.New(newRadio(cfg), store, scan.Options{
		Duration: cfg.Duration,
		Filter:   cfg.Filter,
		Logger:   log,
		Notify: func(n scan.Notice) {
			logs.Printf("[red]%s[-]", tview.Escape(n.Text))
		},
		Update: func(list []string) {
			mutex.Lock()
			records = list
			mutex.Unlock()
			go app.QueueUpdateDraw(updatePeerView)
		},
		Changed: func(s scan.State) {
			text := fmt.Sprintf(" %s", s)
			if s == scan.Discovering {
				text = fmt.Sprintf(" [green]%s[-]", s)
			}
			go app.QueueUpdateDraw(func() {
				status.SetText(text)
			})
		},
	})

	// handle keys
	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if pages.HasPage("consent") {
			return event
		}
		switch event.Key() {
		case tcell.KeyEscape:
			app.Stop()
			return nil
		case tcell.KeyRune:
			switch event.Rune() {
			case 'q', 'Q':
				app.Stop()
				return nil
			case 's', 'S':
				w.Trigger()
				return nil
			case 'r', 'R':
				revokeGrants(store, logs)
				return nil
			}
		}
		return event
	})

	// prepare workflow
	logs.Printf("Press s or the Scan button to discover peers, r to revoke grants, q to quit")
	logs.Printf("Held grants: %s", formatGrants(store.List()))
	w.Prepare()

	// run app
	err := app.Run()

	// teardown workflow
	w.Teardown()

	exitIfSet(err)
}

func revokeGrants(store *grant.Store, logs *logPane) {
	// revoke held grants
	list := store.List()
	for _, g := range list {
		store.Revoke(g)
	}

	// log info
	logs.Printf("Revoked grants: %s", formatGrants(list))
}

func showConsentModal(app *tview.Application, pages *tview.Pages, g scan.Grant, fn func(bool)) {
	// create modal
	modal := tview.NewModal()
	modal.SetText(fmt.Sprintf("Allow %s access?", g))
	modal.AddButtons([]string{"Allow", "Deny"})
	modal.SetDoneFunc(func(index int, _ string) {
		pages.RemovePage("consent")
		fn(index == 0)
	})

	// show modal
	pages.AddPage("consent", modal, true, true)
	app.SetFocus(modal)
}
