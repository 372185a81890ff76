// Package scan implements the permission gated peer discovery workflow.
package scan

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/op/go-logging"
	"github.com/ryanuber/go-glob"
	"github.com/samber/lo"
)

// State is the state of the discovery session.
type State int

// The available states.
const (
	Idle State = iota
	Discovering
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Discovering:
		return "discovering"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Session describes a discovery session.
type Session struct {
	ID      string
	Started time.Time
}

// Options configures a Workflow. All callbacks are invoked from the
// workflow goroutine and must not block.
type Options struct {
	// Duration limits each discovery session. Zero keeps discovering until
	// teardown.
	Duration time.Duration

	// Filter is a glob pattern matched against peer names, defaults to "*".
	Filter string

	// Notify receives user visible notices.
	Notify func(Notice)

	// Update receives the result list whenever it changes.
	Update func(records []string)

	// Found receives every appended peer.
	Found func(Session, Peer)

	// Changed receives session state transitions.
	Changed func(State)

	// Logger defaults to the "scan" module logger.
	Logger *logging.Logger
}

type outcome int

const (
	ready outcome = iota
	pending
	unavailable
)

type prepareMsg struct{}

type triggerMsg struct{}

type grantMsg struct {
	grant   Grant
	granted bool
}

type enableMsg struct {
	err error
}

type eventMsg struct {
	generation uint64
	event      Event
}

type expireMsg struct {
	generation uint64
}

type queryMsg struct {
	reply chan snapshot
}

type teardownMsg struct{}

type snapshot struct {
	state      State
	session    Session
	records    []string
	subscribed bool
}

// Workflow coordinates capability checks, grants and discovery sessions.
// All state is owned by a single goroutine that consumes a queue fed by the
// public methods and platform callbacks.
type Workflow struct {
	radio Radio
	auth  Authorizer
	opts  Options
	log   *logging.Logger
	box   *mailbox
	done  chan struct{}
	final snapshot

	// owned by the loop
	state      State
	records    []string
	session    Session
	sub        *Subscription
	timer      *time.Timer
	generation uint64
	terminated bool
	pending    map[Grant]bool
	decided    map[Grant]bool
}

// New creates and starts a new workflow.
func New(radio Radio, auth Authorizer, opts Options) *Workflow {
	// set default filter
	if opts.Filter == "" {
		opts.Filter = "*"
	}

	// set default logger
	log := opts.Logger
	if log == nil {
		log = logging.MustGetLogger("scan")
	}

	// prepare workflow
	w := &Workflow{
		radio:   radio,
		auth:    auth,
		opts:    opts,
		log:     log,
		box:     newMailbox(),
		done:    make(chan struct{}),
		pending: map[Grant]bool{},
		decided: map[Grant]bool{},
	}

	// run loop
	go w.run()

	return w
}

// Prepare checks the radio capability, requests the radio to be enabled and
// requests missing grants. Once all requested grants are granted a scan is
// started automatically.
func (w *Workflow) Prepare() {
	w.box.push(prepareMsg{})
}

// Trigger starts a scan if authorized and capable. Missing grants are
// requested again.
func (w *Workflow) Trigger() {
	w.box.push(triggerMsg{})
}

// Teardown releases the subscription and stops the workflow. Late platform
// callbacks are dropped. It may be called any number of times.
func (w *Workflow) Teardown() {
	w.box.push(teardownMsg{})
	<-w.done
}

// Done is closed once the workflow has been torn down.
func (w *Workflow) Done() <-chan struct{} {
	return w.done
}

// Records returns a copy of the result list.
func (w *Workflow) Records() []string {
	return w.query().records
}

// State returns the session state.
func (w *Workflow) State() State {
	return w.query().state
}

// Session returns the current or last session.
func (w *Workflow) Session() Session {
	return w.query().session
}

// Subscribed returns whether a peer-found subscription is installed.
func (w *Workflow) Subscribed() bool {
	return w.query().subscribed
}

func (w *Workflow) query() snapshot {
	// post query
	reply := make(chan snapshot, 1)
	if !w.box.push(queryMsg{reply: reply}) {
		<-w.done
		return w.final
	}

	// await reply or stop
	select {
	case s := <-reply:
		return s
	case <-w.done:
		return w.final
	}
}

func (w *Workflow) run() {
	defer close(w.done)

	for range w.box.signal {
		for _, msg := range w.box.drain() {
			if !w.handle(msg) {
				return
			}
		}
	}
}

func (w *Workflow) handle(msg any) bool {
	switch m := msg.(type) {
	case prepareMsg:
		w.prepare()
	case triggerMsg:
		w.trigger()
	case grantMsg:
		w.onGrant(m.grant, m.granted)
	case enableMsg:
		w.onEnable(m.err)
	case eventMsg:
		w.onPeerFound(m.generation, m.event)
	case expireMsg:
		w.onExpire(m.generation)
	case queryMsg:
		m.reply <- w.snapshot()
	case teardownMsg:
		w.teardown()
		return false
	}

	return true
}

func (w *Workflow) prepare() {
	// check capability
	if !w.capable() {
		return
	}

	// request radio if disabled
	if !w.radio.Enabled() {
		w.requestRadioEnabled()
	}

	// check grants
	w.ensureAuthorizedAndCapable()
}

func (w *Workflow) trigger() {
	// check capability and grants
	if w.ensureAuthorizedAndCapable() != ready {
		return
	}

	// start scan
	w.startScan()
}

func (w *Workflow) capable() bool {
	// check radio once
	if !w.terminated && !w.radio.Present() {
		w.terminated = true
	}

	// notify if absent
	if w.terminated {
		w.notify(ErrCapabilityUnavailable, "Radio is not supported on this device")
		return false
	}

	return true
}

func (w *Workflow) ensureAuthorizedAndCapable() outcome {
	// check capability
	if !w.capable() {
		return unavailable
	}

	// check outstanding requests
	if len(w.pending) > 0 {
		return pending
	}

	// collect missing grants
	missing := lo.Filter(Grants, func(g Grant, _ int) bool {
		return !w.auth.Granted(g)
	})
	if len(missing) == 0 {
		return ready
	}

	// start a new round
	w.decided = map[Grant]bool{}
	for _, g := range missing {
		w.pending[g] = true
	}

	// request grants
	for _, g := range missing {
		w.log.Debugf("requesting grant: %s", g)
		w.auth.Request(g, func(granted bool) {
			w.box.push(grantMsg{grant: g, granted: granted})
		})
	}

	return pending
}

func (w *Workflow) onGrant(g Grant, granted bool) {
	// ignore unexpected results
	if !w.pending[g] {
		w.log.Debugf("ignoring unexpected grant result: %s", g)
		return
	}

	// record decision
	delete(w.pending, g)
	w.decided[g] = granted
	if !granted {
		w.notify(fmt.Errorf("%w: %s", ErrAuthorizationDenied, g), fmt.Sprintf("%s permission denied", g))
	}

	// await remaining results
	if len(w.pending) > 0 {
		return
	}

	// check all grants
	for _, g := range Grants {
		ok, decided := w.decided[g]
		if !decided {
			ok = w.auth.Granted(g)
		}
		if !ok {
			return
		}
	}

	// continue with scan
	w.startScan()
}

func (w *Workflow) requestRadioEnabled() {
	// log
	w.log.Info("requesting radio to be enabled")

	// request
	w.radio.RequestEnable(func(err error) {
		w.box.push(enableMsg{err: err})
	})
}

func (w *Workflow) onEnable(err error) {
	if err != nil {
		w.log.Warningf("radio not enabled: %s", err)
	} else {
		w.log.Info("radio enabled")
	}
}

func (w *Workflow) startScan() {
	// check radio
	if !w.radio.Enabled() {
		w.notify(ErrRadioDisabled, "Enable the radio first")
		return
	}

	// end running session
	w.release()

	// reset list
	w.records = nil
	w.update()

	// begin session
	w.generation++
	gen := w.generation
	stop, err := w.radio.Discover(func(e Event) {
		w.box.push(eventMsg{generation: gen, event: e})
	})
	if err != nil {
		w.setState(Idle)
		w.notify(fmt.Errorf("%w: %w", ErrDiscoveryFailed, err), fmt.Sprintf("Discovery failed: %s", err))
		return
	}

	// install subscription
	w.sub = NewSubscription(stop)
	w.session = Session{
		ID:      uuid.NewString(),
		Started: time.Now(),
	}
	w.setState(Discovering)

	// limit session
	if w.opts.Duration > 0 {
		w.timer = time.AfterFunc(w.opts.Duration, func() {
			w.box.push(expireMsg{generation: gen})
		})
	}

	// log
	w.log.Infof("discovery started: %s", w.session.ID)
}

func (w *Workflow) onPeerFound(gen uint64, e Event) {
	// drop events from stale sessions
	if gen != w.generation || w.state != Discovering {
		return
	}

	// decode event
	peer, err := Decode(e)
	if err != nil {
		w.log.Warningf("skipping event: %s", err)
		return
	}

	// apply filter
	if !glob.Glob(w.opts.Filter, peer.Name) {
		return
	}

	// append record
	w.records = append(w.records, peer.Record())

	// yield peer
	if w.opts.Found != nil {
		w.opts.Found(w.session, peer)
	}

	w.update()
}

func (w *Workflow) onExpire(gen uint64) {
	// check session
	if gen != w.generation || w.state != Discovering {
		return
	}

	// end session
	w.release()
	w.setState(Idle)

	// log
	w.log.Infof("discovery finished: %s (%d records)", w.session.ID, len(w.records))
}

func (w *Workflow) teardown() {
	// release subscription
	w.release()
	w.setState(Cancelled)

	// store final snapshot and close queue
	w.final = w.snapshot()
	w.box.close()
}

func (w *Workflow) release() {
	// stop timer
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}

	// release subscription
	w.sub.Release()
	w.sub = nil
}

func (w *Workflow) setState(state State) {
	// check state
	if w.state == state {
		return
	}

	// set state
	w.state = state

	// yield state
	if w.opts.Changed != nil {
		w.opts.Changed(state)
	}
}

func (w *Workflow) notify(err error, text string) {
	// log notice
	w.log.Warningf("%s (%s)", text, err)

	// yield notice
	if w.opts.Notify != nil {
		w.opts.Notify(Notice{Err: err, Text: text})
	}
}

func (w *Workflow) update() {
	if w.opts.Update != nil {
		w.opts.Update(w.copyRecords())
	}
}

func (w *Workflow) snapshot() snapshot {
	return snapshot{
		state:      w.state,
		session:    w.session,
		records:    w.copyRecords(),
		subscribed: w.sub.Active(),
	}
}

func (w *Workflow) copyRecords() []string {
	records := make([]string, len(w.records))
	copy(records, w.records)
	return records
}
