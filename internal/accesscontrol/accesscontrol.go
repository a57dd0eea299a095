package accesscontrol

import (
	"sort"

	"github.com/lachlan2k/vitrine/internal/config"
	"github.com/lachlan2k/vitrine/internal/session"
	"github.com/lachlan2k/vitrine/internal/token"
	"github.com/lachlan2k/vitrine/internal/utils"
)

type Outcome int

const (
	// The session is still being validated, show a placeholder
	Loading Outcome = iota
	Render
	RedirectLogin
	RedirectDenied
)

func (o Outcome) String() string {
	switch o {
	case Loading:
		return "loading"
	case Render:
		return "render"
	case RedirectLogin:
		return "redirect-login"
	case RedirectDenied:
		return "redirect-denied"
	}
	return "unknown"
}

func contains(s []token.Role, val token.Role) bool {
	for _, v := range s {
		if v == val {
			return true
		}
	}

	return false
}

// Decide is the whole guard: given where the session is, the user's role and the roles a
// view asks for, render it or send the user somewhere else.
func Decide(state session.State, role token.Role, required []token.Role) Outcome {
	switch state {
	case session.StateUnresolved, session.StateValidating:
		return Loading
	case session.StateLoggedIn:
		if len(required) == 0 || contains(required, role) {
			return Render
		}
		return RedirectDenied
	}

	if len(required) == 0 {
		return Render
	}
	return RedirectLogin
}

// Routes maps path patterns to the roles allowed through. Paths that match nothing are public.
type Routes struct {
	patterns []string
	required map[string][]token.Role
}

func NewRoutes(table map[string][]string) *Routes {
	r := &Routes{required: make(map[string][]token.Role, len(table))}

	for pattern, roles := range table {
		r.patterns = append(r.patterns, pattern)
		r.required[pattern] = append([]token.Role(nil), roles...)
	}
	// stable iteration order for BestMatch ties
	sort.Strings(r.patterns)

	return r
}

func RoutesFromConfig(conf *config.Config) *Routes {
	return NewRoutes(conf.AccessControl.Routes)
}

func (r *Routes) Required(path string) []token.Role {
	pattern, ok := utils.BestMatch(r.patterns, path)
	if !ok {
		return nil
	}
	return r.required[pattern]
}

// Check resolves the roles a path needs and decides against the given session snapshot.
func (r *Routes) Check(snap session.Snapshot, path string) Outcome {
	return Decide(snap.State, snap.Role(), r.Required(path))
}
