// Package grant provides an authorizer for discovery grants.
package grant

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/256dpi/scout/pkg/scan"
	"github.com/256dpi/scout/pkg/utils"
)

// Prompter asks the user for a grant and calls fn with the decision.
type Prompter func(g scan.Grant, fn func(bool))

// Fixed returns a prompter that always answers with the provided decision.
func Fixed(granted bool) Prompter {
	return func(_ scan.Grant, fn func(bool)) {
		go fn(granted)
	}
}

// Console returns a prompter that asks for a grant on a terminal. Prompts are
// serialized.
func Console(in io.Reader, out io.Writer) Prompter {
	// prepare reader
	reader := bufio.NewReader(in)
	var mutex sync.Mutex

	return func(g scan.Grant, fn func(bool)) {
		go func() {
			// acquire mutex
			mutex.Lock()
			defer mutex.Unlock()

			// ask
			_, _ = fmt.Fprintf(out, "==> Allow %s access? [y/N] ", g)

			// read answer
			line, err := reader.ReadString('\n')
			if err != nil && line == "" {
				utils.Logf(out, "Denied %s access: %s", g, err)
				fn(false)
				return
			}

			// check answer
			answer := strings.ToLower(strings.TrimSpace(line))
			fn(answer == "y" || answer == "yes")
		}()
	}
}

// Store implements scan.Authorizer. It remembers pre-authorized grants and
// the decisions of its prompter.
type Store struct {
	prompt  Prompter
	granted map[scan.Grant]bool
	mutex   sync.Mutex
}

// NewStore creates a new store with the provided pre-authorized grants. Missing
// grants are requested through the prompter, or denied if it is missing.
func NewStore(prompt Prompter, granted ...scan.Grant) *Store {
	// set default prompter
	if prompt == nil {
		prompt = Fixed(false)
	}

	// prepare store
	s := &Store{
		prompt:  prompt,
		granted: map[scan.Grant]bool{},
	}

	// add grants
	for _, g := range granted {
		s.granted[g] = true
	}

	return s
}

// Granted implements the scan.Authorizer interface.
func (s *Store) Granted(g scan.Grant) bool {
	// acquire mutex
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.granted[g]
}

// Request implements the scan.Authorizer interface.
func (s *Store) Request(g scan.Grant, fn func(bool)) {
	// check existing grant
	if s.Granted(g) {
		go fn(true)
		return
	}

	// prompt user
	s.prompt(g, func(granted bool) {
		// store grant
		if granted {
			s.mutex.Lock()
			s.granted[g] = true
			s.mutex.Unlock()
		}

		fn(granted)
	})
}

// Revoke removes the specified grant.
func (s *Store) Revoke(g scan.Grant) {
	// acquire mutex
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.granted, g)
}

// List returns the held grants in canonical order.
func (s *Store) List() []scan.Grant {
	// acquire mutex
	s.mutex.Lock()
	defer s.mutex.Unlock()

	// collect grants
	var list []scan.Grant
	for _, g := range scan.Grants {
		if s.granted[g] {
			list = append(list, g)
		}
	}

	return list
}

// Parse converts the provided names to grants.
func Parse(names []string) ([]scan.Grant, error) {
	// prepare list
	var list []scan.Grant

	// check names
	for _, name := range names {
		switch g := scan.Grant(strings.ToLower(strings.TrimSpace(name))); g {
		case scan.GrantRadio, scan.GrantLocation:
			list = append(list, g)
		default:
			return nil, fmt.Errorf("unknown grant: %q", name)
		}
	}

	return list, nil
}
