// Package session holds the explicit session context shared by the
// engines: server base URL, auth token, current user and the live
// network-reachability signal. Created at startup, updated on
// login/logout, torn down on logout.
package session

import (
	"strings"

	"github.com/xenosun/codeBeamer-offline-client/internal/domain"
)

// Session is the long-lived session context. It is passed to every
// component that needs identity or connectivity; there is no global state.
type Session struct {
	base            string
	Token           string
	CurrentUser     *domain.User
	OfflineLoggedIn bool

	online    bool
	listeners []func(online bool)
}

// New creates a session for the given server base URL. The session starts
// online; embedders wire the device reachability signal via SetOnline.
func New(base string) *Session {
	return &Session{
		base:   strings.TrimSuffix(base, "/"),
		online: true,
	}
}

// Base returns the server base URL without a trailing slash.
func (s *Session) Base() string {
	return s.base
}

// SetBase replaces the server base URL (offline login restores the base
// the code was saved for).
func (s *Session) SetBase(base string) {
	s.base = strings.TrimSuffix(base, "/")
}

// Online reports the last known network reachability.
func (s *Session) Online() bool {
	return s.online
}

// SetOnline records a reachability change and notifies subscribers.
func (s *Session) SetOnline(online bool) {
	if s.online == online {
		return
	}
	s.online = online
	for _, fn := range s.listeners {
		fn(online)
	}
}

// OnConnectivityChange registers a callback invoked on every reachability
// transition.
func (s *Session) OnConnectivityChange(fn func(online bool)) {
	s.listeners = append(s.listeners, fn)
}

// LoggedIn reports whether the session carries a usable auth token.
func (s *Session) LoggedIn() bool {
	return s.Token != ""
}

// Clear tears the session down on logout.
func (s *Session) Clear() {
	s.Token = ""
	s.CurrentUser = nil
	s.OfflineLoggedIn = false
}
