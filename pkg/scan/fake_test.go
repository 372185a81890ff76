package scan

import (
	"errors"
	"sync"
)

type fakeRadio struct {
	present  bool
	enabled  bool
	startErr error
	fn       func(Event)
	starts   int
	stops    int
	enables  int
	mutex    sync.Mutex
}

func (r *fakeRadio) Present() bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.present
}

func (r *fakeRadio) Enabled() bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.enabled
}

func (r *fakeRadio) setEnabled(enabled bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.enabled = enabled
}

func (r *fakeRadio) RequestEnable(done func(error)) {
	r.mutex.Lock()
	r.enables++
	r.mutex.Unlock()
	go done(errors.New("declined"))
}

func (r *fakeRadio) Discover(fn func(Event)) (func(), error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.startErr != nil {
		return nil, r.startErr
	}

	r.fn = fn
	r.starts++

	return func() {
		r.mutex.Lock()
		defer r.mutex.Unlock()
		r.fn = nil
		r.stops++
	}, nil
}

func (r *fakeRadio) handler() func(Event) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.fn
}

func (r *fakeRadio) emit(name, addr string) {
	if fn := r.handler(); fn != nil {
		fn(Event{Device: &Device{Name: name, Address: addr}})
	}
}

func (r *fakeRadio) counts() (int, int, int) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.starts, r.stops, r.enables
}

type fakeAuth struct {
	granted  map[Grant]bool
	requests map[Grant]func(bool)
	mutex    sync.Mutex
}

func newFakeAuth(granted ...Grant) *fakeAuth {
	a := &fakeAuth{
		granted:  map[Grant]bool{},
		requests: map[Grant]func(bool){},
	}
	for _, g := range granted {
		a.granted[g] = true
	}
	return a
}

func (a *fakeAuth) Granted(g Grant) bool {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.granted[g]
}

func (a *fakeAuth) Request(g Grant, fn func(bool)) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.requests[g] = fn
}

func (a *fakeAuth) requested() []Grant {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	var list []Grant
	for _, g := range Grants {
		if a.requests[g] != nil {
			list = append(list, g)
		}
	}
	return list
}

func (a *fakeAuth) answer(g Grant, granted bool) {
	a.mutex.Lock()
	fn := a.requests[g]
	delete(a.requests, g)
	if granted {
		a.granted[g] = true
	}
	a.mutex.Unlock()

	if fn != nil {
		fn(granted)
	}
}

type recorder struct {
	notices []Notice
	updates int
	mutex   sync.Mutex
}

func (r *recorder) options() Options {
	return Options{
		Notify: func(n Notice) {
			r.mutex.Lock()
			defer r.mutex.Unlock()
			r.notices = append(r.notices, n)
		},
		Update: func([]string) {
			r.mutex.Lock()
			defer r.mutex.Unlock()
			r.updates++
		},
	}
}

func (r *recorder) kinds() []error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	var list []error
	for _, n := range r.notices {
		list = append(list, n.Err)
	}
	return list
}

func (r *recorder) has(kind error) bool {
	for _, err := range r.kinds() {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
