package usecase

import (
	"encoding/json"
	"fmt"

	"github.com/xenosun/codeBeamer-offline-client/internal/domain"
	"github.com/xenosun/codeBeamer-offline-client/internal/logger"
	"github.com/xenosun/codeBeamer-offline-client/internal/port"
	"github.com/xenosun/codeBeamer-offline-client/internal/session"
)

// Authenticator is the part of the REST surface auth needs beyond the
// generic client: the basic-auth token exchange.
type Authenticator interface {
	Authenticate(username, password string) (*domain.User, string, error)
}

// AuthService handles login, session restore and offline login.
type AuthService struct {
	session  *session.Session
	api      port.RestAPI
	auth     Authenticator
	storage  *StorageService
	notifier port.Notifier
}

// NewAuthService creates an auth service.
func NewAuthService(s *session.Session, api port.RestAPI, auth Authenticator, storage *StorageService, notifier port.Notifier) *AuthService {
	return &AuthService{session: s, api: api, auth: auth, storage: storage, notifier: notifier}
}

// Login exchanges the credentials for a bearer token, stores user and
// token in the session and persists them for session restore. Returns
// false on a rejected login.
func (a *AuthService) Login(username, password string) (bool, error) {
	user, token, err := a.auth.Authenticate(username, password)
	if err != nil {
		if _, ok := domain.IsServerError(err); ok {
			logger.Err(err, "auth: login rejected")
			a.session.Token = ""
			return false, nil
		}
		return false, err
	}
	a.session.CurrentUser = user
	a.session.Token = token
	a.session.OfflineLoggedIn = false
	if err := a.storage.SaveTokenWithServerURL(); err != nil {
		return false, err
	}
	return true, nil
}

// CheckSessionToken restores a previous session from the store: the saved
// token and server URL, then the current user resolved from the server.
// Returns false when there is nothing to restore or the token is stale.
func (a *AuthService) CheckSessionToken() (bool, error) {
	token, serverURL, err := a.storage.StoredToken()
	if err != nil {
		return false, err
	}
	if token == "" {
		return false, nil
	}
	if serverURL != "" {
		a.session.SetBase(serverURL)
	}
	a.session.Token = token
	return a.LoadUserInfo(false)
}

// LoadUserInfo resolves the current user via rest/user/self, deriving the
// numeric id from the URI when the server omits it. A failure clears the
// session token.
func (a *AuthService) LoadUserInfo(showError bool) (bool, error) {
	raw, err := a.api.Get("rest/user/self")
	if err != nil {
		if se, ok := domain.IsServerError(err); ok {
			logger.Err(err, "auth: failed to load user info, clearing token")
			if showError {
				a.notifier.NotifyError("Server request failed", se.Message)
			}
			a.session.Token = ""
			return false, nil
		}
		return false, err
	}
	var user domain.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return false, fmt.Errorf("failed to decode user info: %w", err)
	}
	if id, ok := user.ResolvedID(); ok {
		user.ID = id
	}
	a.session.CurrentUser = &user
	return true, nil
}

// Logout clears the session and removes the persisted token.
func (a *AuthService) Logout() error {
	a.session.Clear()
	return a.storage.ClearToken()
}

// ValidateOfflineCode checks the code form before any I/O: both fields
// present, matching, and at least 7 characters.
func ValidateOfflineCode(code, confirmCode string) error {
	switch {
	case code == "":
		return fmt.Errorf("a code is required")
	case confirmCode == "":
		return fmt.Errorf("please fill the confirm code as well")
	case code != confirmCode:
		return fmt.Errorf("code and confirm code does not match")
	case len(code) < 7:
		return fmt.Errorf("the code is too short")
	}
	return nil
}

// CreateOfflineLoginCode validates and saves an offline login code for
// the current user on the current server.
func (a *AuthService) CreateOfflineLoginCode(code, confirmCode string) error {
	if err := ValidateOfflineCode(code, confirmCode); err != nil {
		a.notifier.NotifyError("Warning", err.Error())
		return err
	}
	return a.storage.SaveOfflineLoginCode(code)
}

// OfflineLogin authenticates without network by matching a remembered
// code, restoring the base URL, user and token it was saved with.
func (a *AuthService) OfflineLogin(code string) (bool, error) {
	data, err := a.storage.OfflineLoginDataByCode(code)
	if err != nil {
		return false, err
	}
	if data == nil {
		return false, nil
	}
	a.session.SetBase(data.Base)
	user := data.User
	a.session.CurrentUser = &user
	a.session.Token = data.Token
	a.session.OfflineLoggedIn = true
	return true, nil
}
