package scan

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowRadioAbsent(t *testing.T) {
	radio := &fakeRadio{}
	auth := newFakeAuth()
	rec := &recorder{}

	w := New(radio, auth, rec.options())
	defer w.Teardown()

	w.Prepare()
	assert.Empty(t, w.Records())
	assert.False(t, w.Subscribed())
	assert.Equal(t, []error{ErrCapabilityUnavailable}, rec.kinds())
	assert.Empty(t, auth.requested())

	w.Trigger()
	assert.Empty(t, w.Records())
	assert.False(t, w.Subscribed())
	assert.Equal(t, []error{ErrCapabilityUnavailable, ErrCapabilityUnavailable}, rec.kinds())

	starts, _, enables := radio.counts()
	assert.Equal(t, 0, starts)
	assert.Equal(t, 0, enables)
}

func TestWorkflowRadioDisabled(t *testing.T) {
	radio := &fakeRadio{present: true}
	auth := newFakeAuth(GrantRadio, GrantLocation)
	rec := &recorder{}

	w := New(radio, auth, rec.options())
	defer w.Teardown()

	w.Prepare()
	w.Trigger()
	assert.Equal(t, Idle, w.State())
	assert.False(t, w.Subscribed())
	assert.Equal(t, []error{ErrRadioDisabled}, rec.kinds())

	starts, _, enables := radio.counts()
	assert.Equal(t, 0, starts)
	assert.Equal(t, 1, enables)
}

func TestWorkflowDisabledKeepsRecords(t *testing.T) {
	radio := &fakeRadio{present: true, enabled: true}
	auth := newFakeAuth(GrantRadio, GrantLocation)
	rec := &recorder{}

	w := New(radio, auth, rec.options())
	defer w.Teardown()

	w.Trigger()
	assert.Equal(t, Discovering, w.State())

	radio.emit("foo", "01:02:03:04:05:06")
	radio.emit("bar", "06:05:04:03:02:01")
	assert.Equal(t, []string{
		"foo - 01:02:03:04:05:06",
		"bar - 06:05:04:03:02:01",
	}, w.Records())

	rec.mutex.Lock()
	updates := rec.updates
	rec.mutex.Unlock()

	radio.setEnabled(false)
	w.Trigger()
	assert.Equal(t, []string{
		"foo - 01:02:03:04:05:06",
		"bar - 06:05:04:03:02:01",
	}, w.Records())
	assert.True(t, rec.has(ErrRadioDisabled))

	rec.mutex.Lock()
	assert.Equal(t, updates, rec.updates)
	rec.mutex.Unlock()
}

func TestWorkflowRecords(t *testing.T) {
	radio := &fakeRadio{present: true, enabled: true}
	auth := newFakeAuth(GrantRadio, GrantLocation)

	w := New(radio, auth, Options{})
	defer w.Teardown()

	w.Prepare()
	assert.Equal(t, Idle, w.State())

	w.Trigger()
	assert.Equal(t, Discovering, w.State())
	assert.True(t, w.Subscribed())
	assert.NotEmpty(t, w.Session().ID)

	radio.emit("Pad-1", "AA:BB:CC:DD:EE:FF")
	radio.handler()(Event{Device: &Device{Address: "11:22:33:44:55:66"}})
	assert.Equal(t, []string{
		"Pad-1 - AA:BB:CC:DD:EE:FF",
		" - 11:22:33:44:55:66",
	}, w.Records())
}

func TestWorkflowDuplicates(t *testing.T) {
	radio := &fakeRadio{present: true, enabled: true}
	auth := newFakeAuth(GrantRadio, GrantLocation)

	var found []Peer
	w := New(radio, auth, Options{
		Found: func(_ Session, p Peer) {
			found = append(found, p)
		},
	})

	w.Trigger()
	require.Equal(t, Discovering, w.State())

	var expected []string
	for i := 0; i < 50; i++ {
		addr := fmt.Sprintf("00:00:00:00:00:%02X", i%3)
		radio.emit(fmt.Sprintf("dev-%d", i), addr)
		expected = append(expected, fmt.Sprintf("dev-%d - %s", i, addr))
	}

	assert.Equal(t, expected, w.Records())

	w.Teardown()
	assert.Len(t, found, 50)
}

func TestWorkflowMalformedEvents(t *testing.T) {
	radio := &fakeRadio{present: true, enabled: true}
	auth := newFakeAuth(GrantRadio, GrantLocation)
	rec := &recorder{}

	w := New(radio, auth, rec.options())
	defer w.Teardown()

	w.Trigger()
	require.Equal(t, Discovering, w.State())

	fn := radio.handler()
	fn(Event{})
	fn(Event{Device: &Device{Name: "foo"}})
	fn(Event{Device: &Device{Name: "bar", Address: "AA:AA:AA:AA:AA:AA"}})

	assert.Equal(t, []string{"bar - AA:AA:AA:AA:AA:AA"}, w.Records())
	assert.Equal(t, Discovering, w.State())
	assert.Empty(t, rec.kinds())
}

func TestWorkflowGrants(t *testing.T) {
	type answer struct {
		grant   Grant
		granted bool
	}

	table := []struct {
		held    []Grant
		answers []answer
		started bool
		denied  int
	}{
		{
			answers: []answer{{GrantRadio, true}, {GrantLocation, true}},
			started: true,
		},
		{
			answers: []answer{{GrantLocation, true}, {GrantRadio, true}},
			started: true,
		},
		{
			answers: []answer{{GrantRadio, false}, {GrantLocation, true}},
			denied:  1,
		},
		{
			answers: []answer{{GrantRadio, true}, {GrantLocation, false}},
			denied:  1,
		},
		{
			answers: []answer{{GrantLocation, false}, {GrantRadio, false}},
			denied:  2,
		},
		{
			held:    []Grant{GrantRadio},
			answers: []answer{{GrantLocation, true}},
			started: true,
		},
		{
			held:    []Grant{GrantLocation},
			answers: []answer{{GrantRadio, false}},
			denied:  1,
		},
	}

	for i, item := range table {
		t.Run(fmt.Sprintf("%d", i), func(t *testing.T) {
			radio := &fakeRadio{present: true, enabled: true}
			auth := newFakeAuth(item.held...)
			rec := &recorder{}

			w := New(radio, auth, rec.options())
			defer w.Teardown()

			w.Prepare()
			assert.Equal(t, Idle, w.State())
			assert.Len(t, auth.requested(), len(item.answers))

			for j, a := range item.answers {
				auth.answer(a.grant, a.granted)
				if j < len(item.answers)-1 {
					assert.Equal(t, Idle, w.State())
				}
			}

			starts, _, _ := radio.counts()
			if item.started {
				assert.Equal(t, Discovering, w.State())
				assert.Equal(t, 1, starts)
			} else {
				assert.Equal(t, Idle, w.State())
				assert.Equal(t, 0, starts)
			}

			var denied int
			for _, err := range rec.kinds() {
				if errors.Is(err, ErrAuthorizationDenied) {
					denied++
				}
			}
			assert.Equal(t, item.denied, denied)
		})
	}
}

func TestWorkflowRetriggerAfterDenial(t *testing.T) {
	radio := &fakeRadio{present: true, enabled: true}
	auth := newFakeAuth()

	w := New(radio, auth, Options{})
	defer w.Teardown()

	w.Prepare()
	assert.Equal(t, Idle, w.State())
	auth.answer(GrantRadio, true)
	auth.answer(GrantLocation, false)
	assert.Equal(t, Idle, w.State())

	w.Trigger()
	assert.Equal(t, Idle, w.State())
	assert.Equal(t, []Grant{GrantLocation}, auth.requested())

	auth.answer(GrantLocation, true)
	assert.Equal(t, Discovering, w.State())
}

func TestWorkflowPendingTrigger(t *testing.T) {
	radio := &fakeRadio{present: true, enabled: true}
	auth := newFakeAuth()

	w := New(radio, auth, Options{})
	defer w.Teardown()

	w.Prepare()
	w.Trigger()
	assert.Equal(t, Idle, w.State())
	assert.Len(t, auth.requested(), 2)

	auth.answer(GrantRadio, true)
	auth.answer(GrantLocation, true)
	assert.Equal(t, Discovering, w.State())

	starts, _, _ := radio.counts()
	assert.Equal(t, 1, starts)
}

func TestWorkflowTeardown(t *testing.T) {
	radio := &fakeRadio{present: true, enabled: true}
	auth := newFakeAuth(GrantRadio, GrantLocation)

	w := New(radio, auth, Options{})
	w.Trigger()
	require.Equal(t, Discovering, w.State())
	radio.emit("foo", "01:02:03:04:05:06")

	w.Teardown()
	assert.NotPanics(t, w.Teardown)

	assert.Equal(t, Cancelled, w.State())
	assert.False(t, w.Subscribed())
	assert.Equal(t, []string{"foo - 01:02:03:04:05:06"}, w.Records())

	_, stops, _ := radio.counts()
	assert.Equal(t, 1, stops)

	select {
	case <-w.Done():
	default:
		t.Fatal("expected done")
	}
}

func TestWorkflowTeardownWithoutSubscription(t *testing.T) {
	w := New(&fakeRadio{present: true}, newFakeAuth(), Options{})

	assert.NotPanics(t, w.Teardown)
	assert.NotPanics(t, w.Teardown)
	assert.Equal(t, Cancelled, w.State())
}

func TestWorkflowLateCallbacks(t *testing.T) {
	radio := &fakeRadio{present: true, enabled: true}
	auth := newFakeAuth()

	w := New(radio, auth, Options{})
	w.Prepare()
	assert.Equal(t, Idle, w.State())
	assert.Len(t, auth.requested(), 2)
	w.Teardown()

	assert.NotPanics(t, func() {
		auth.answer(GrantRadio, true)
		auth.answer(GrantLocation, true)
	})

	starts, _, _ := radio.counts()
	assert.Equal(t, 0, starts)
	assert.Equal(t, Cancelled, w.State())
}

func TestWorkflowRestart(t *testing.T) {
	radio := &fakeRadio{present: true, enabled: true}
	auth := newFakeAuth(GrantRadio, GrantLocation)

	w := New(radio, auth, Options{})
	defer w.Teardown()

	w.Trigger()
	require.Equal(t, Discovering, w.State())
	first := w.Session()
	stale := radio.handler()
	radio.emit("foo", "01:02:03:04:05:06")
	assert.Len(t, w.Records(), 1)

	w.Trigger()
	require.Equal(t, Discovering, w.State())
	assert.Empty(t, w.Records())
	assert.NotEqual(t, first.ID, w.Session().ID)

	stale(Event{Device: &Device{Name: "old", Address: "01:02:03:04:05:06"}})
	radio.emit("bar", "06:05:04:03:02:01")
	assert.Equal(t, []string{"bar - 06:05:04:03:02:01"}, w.Records())

	starts, stops, _ := radio.counts()
	assert.Equal(t, 2, starts)
	assert.Equal(t, 1, stops)
}

func TestWorkflowDuration(t *testing.T) {
	radio := &fakeRadio{present: true, enabled: true}
	auth := newFakeAuth(GrantRadio, GrantLocation)

	w := New(radio, auth, Options{
		Duration: 20 * time.Millisecond,
	})
	defer w.Teardown()

	w.Trigger()
	assert.Eventually(t, func() bool {
		return w.State() == Idle
	}, time.Second, 5*time.Millisecond)
	assert.False(t, w.Subscribed())

	_, stops, _ := radio.counts()
	assert.Equal(t, 1, stops)
}

func TestWorkflowFilter(t *testing.T) {
	radio := &fakeRadio{present: true, enabled: true}
	auth := newFakeAuth(GrantRadio, GrantLocation)

	w := New(radio, auth, Options{
		Filter: "Pad-*",
	})
	defer w.Teardown()

	w.Trigger()
	require.Equal(t, Discovering, w.State())

	radio.emit("Pad-1", "AA:BB:CC:DD:EE:FF")
	radio.emit("", "11:22:33:44:55:66")
	radio.emit("Phone", "22:33:44:55:66:77")
	radio.emit("Pad-2", "33:44:55:66:77:88")

	assert.Equal(t, []string{
		"Pad-1 - AA:BB:CC:DD:EE:FF",
		"Pad-2 - 33:44:55:66:77:88",
	}, w.Records())
}

func TestWorkflowDiscoverFailure(t *testing.T) {
	radio := &fakeRadio{present: true, enabled: true, startErr: errors.New("busy")}
	auth := newFakeAuth(GrantRadio, GrantLocation)
	rec := &recorder{}

	w := New(radio, auth, rec.options())
	defer w.Teardown()

	w.Trigger()
	assert.Equal(t, Idle, w.State())
	assert.False(t, w.Subscribed())
	assert.True(t, rec.has(ErrDiscoveryFailed))
}

func TestWorkflowChanged(t *testing.T) {
	radio := &fakeRadio{present: true, enabled: true}
	auth := newFakeAuth(GrantRadio, GrantLocation)

	var states []State
	w := New(radio, auth, Options{
		Duration: 10 * time.Millisecond,
		Changed: func(s State) {
			states = append(states, s)
		},
	})

	w.Trigger()
	assert.Eventually(t, func() bool {
		return w.State() == Idle
	}, time.Second, 5*time.Millisecond)

	w.Teardown()
	assert.Equal(t, []State{Discovering, Idle, Cancelled}, states)
	assert.Equal(t, "cancelled", Cancelled.String())
}
