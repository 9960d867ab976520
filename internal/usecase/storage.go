package usecase

import (
	"encoding/json"
	"fmt"

	"github.com/xenosun/codeBeamer-offline-client/internal/domain"
	"github.com/xenosun/codeBeamer-offline-client/internal/logger"
	"github.com/xenosun/codeBeamer-offline-client/internal/port"
	"github.com/xenosun/codeBeamer-offline-client/internal/session"
)

// Storage keys. The test-run/project/tracker/schema keys are namespaced by
// the (server, user) prefix; token, offline codes and the request cache
// are global to the device.
const (
	storedTestRunDataKey  = "downloaded_test_run_data"
	storedProjectKey      = "project_path"
	storedTrackerKey      = "tracker_path"
	storedBugTrackerKey   = "project_bugTracker_info"
	storedOfflineCodesKey = "offline_code"
	requestCacheKey       = "request_cache"
	storedTokenKey        = "token"
	storedServerURLKey    = "serverUrl"
)

// RequestCacheEntry is one cached GET response.
type RequestCacheEntry struct {
	URL          string          `json:"url"`
	ResponseBody json.RawMessage `json:"responseBody"`
}

// StorageService exposes scoped CRUD over the persistent key-value store:
// sticky project/tracker selection, the downloaded-test-run collection,
// offline login codes, the bug-tracker schema cache and the request cache.
type StorageService struct {
	session  *session.Session
	store    port.KeyValueStore
	notifier port.Notifier
}

// NewStorageService creates a storage service bound to the given session.
func NewStorageService(s *session.Session, store port.KeyValueStore, notifier port.Notifier) *StorageService {
	return &StorageService{session: s, store: store, notifier: notifier}
}

// storagePrefix derives the (server, user) namespace for scoped keys.
// Deriving it requires a resolved current-user id; a missing identity is a
// fatal precondition failure.
func (s *StorageService) storagePrefix() (string, error) {
	user := s.session.CurrentUser
	if user == nil {
		s.notifier.NotifyError("An error occurred!", "There is no current user!")
		return "", fmt.Errorf("cannot scope storage: no current user")
	}
	id, ok := user.ResolvedID()
	if !ok {
		s.notifier.NotifyError("An error occurred!", "The current user does not have an ID!")
		return "", fmt.Errorf("cannot scope storage: current user has no id")
	}
	user.ID = id
	return fmt.Sprintf("%s/user/%d/", s.session.Base(), id), nil
}

// SaveSelectedProject persists the user's preferred project selection so
// navigation resumes there next time.
func (s *StorageService) SaveSelectedProject(project domain.Project) error {
	prefix, err := s.storagePrefix()
	if err != nil {
		return err
	}
	return s.store.Set(prefix+storedProjectKey, project)
}

// SavedProject returns the previously saved project, or nil when none.
func (s *StorageService) SavedProject() (*domain.Project, error) {
	prefix, err := s.storagePrefix()
	if err != nil {
		return nil, err
	}
	var project domain.Project
	found, err := s.store.Get(prefix+storedProjectKey, &project)
	if err != nil || !found {
		return nil, err
	}
	return &project, nil
}

// SaveSelectedTracker persists the user's preferred test run tracker.
func (s *StorageService) SaveSelectedTracker(tracker domain.Tracker) error {
	prefix, err := s.storagePrefix()
	if err != nil {
		return err
	}
	return s.store.Set(prefix+storedTrackerKey, tracker)
}

// SavedTracker returns the previously saved tracker, or nil when none.
func (s *StorageService) SavedTracker() (*domain.Tracker, error) {
	prefix, err := s.storagePrefix()
	if err != nil {
		return nil, err
	}
	var tracker domain.Tracker
	found, err := s.store.Get(prefix+storedTrackerKey, &tracker)
	if err != nil || !found {
		return nil, err
	}
	return &tracker, nil
}

// DownloadedTestRuns returns the stored offline snapshots of the current
// user on the current server.
func (s *StorageService) DownloadedTestRuns() ([]domain.DownloadedTestRun, error) {
	prefix, err := s.storagePrefix()
	if err != nil {
		return nil, err
	}
	var runs []domain.DownloadedTestRun
	if _, err := s.store.Get(prefix+storedTestRunDataKey, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// SingleDownloadedTestRun returns the snapshot with the given test run id,
// or nil when it is not downloaded.
func (s *StorageService) SingleDownloadedTestRun(testRunID int) (*domain.DownloadedTestRun, error) {
	runs, err := s.DownloadedTestRuns()
	if err != nil {
		return nil, err
	}
	for i := range runs {
		if runs[i].TestRunID == testRunID {
			return &runs[i], nil
		}
	}
	return nil, nil
}

// SaveDownloadedTestRuns persists the whole collection atomically from the
// store's perspective.
func (s *StorageService) SaveDownloadedTestRuns(runs []domain.DownloadedTestRun) error {
	prefix, err := s.storagePrefix()
	if err != nil {
		return err
	}
	return s.store.Set(prefix+storedTestRunDataKey, runs)
}

// SaveSingleDownloadedTestRun merges one snapshot into the stored
// collection. An entry with the same test run id is replaced, so the
// collection never holds duplicate ids.
func (s *StorageService) SaveSingleDownloadedTestRun(run domain.DownloadedTestRun) error {
	runs, err := s.DownloadedTestRuns()
	if err != nil {
		return err
	}
	replaced := false
	for i := range runs {
		if runs[i].TestRunID == run.TestRunID {
			runs[i] = run
			replaced = true
			break
		}
	}
	if !replaced {
		runs = append(runs, run)
	}
	return s.SaveDownloadedTestRuns(runs)
}

// UpdateDownloadedTestRun replaces the stored entry matching the given
// snapshot's test run id. A snapshot that is not stored is left alone.
func (s *StorageService) UpdateDownloadedTestRun(run domain.DownloadedTestRun) error {
	runs, err := s.DownloadedTestRuns()
	if err != nil {
		return err
	}
	for i := range runs {
		if runs[i].TestRunID == run.TestRunID {
			runs[i] = run
			return s.SaveDownloadedTestRuns(runs)
		}
	}
	logger.Debug("storage: update skipped, test run %d is not stored", run.TestRunID)
	return nil
}

// SaveBugTrackerInfo caches the bug trackers and item creation schemas of
// all accessible projects, so bugs can be reported offline.
func (s *StorageService) SaveBugTrackerInfo(info []domain.ProjectWithBugTrackers) error {
	prefix, err := s.storagePrefix()
	if err != nil {
		return err
	}
	return s.store.Set(prefix+storedBugTrackerKey, info)
}

// BugTrackerInfo returns the cached bug tracker schemas.
func (s *StorageService) BugTrackerInfo() ([]domain.ProjectWithBugTrackers, error) {
	prefix, err := s.storagePrefix()
	if err != nil {
		return nil, err
	}
	var info []domain.ProjectWithBugTrackers
	if _, err := s.store.Get(prefix+storedBugTrackerKey, &info); err != nil {
		return nil, err
	}
	return info, nil
}

// SaveOfflineLoginCode saves the given code together with the current
// base URL, user and token. An entry for the same (user id, base) pair is
// replaced, never duplicated.
func (s *StorageService) SaveOfflineLoginCode(code string) error {
	user := s.session.CurrentUser
	if user == nil {
		s.notifier.NotifyError("An error occurred!", "There is no current user!")
		return fmt.Errorf("cannot save offline login code: no current user")
	}
	id, ok := user.ResolvedID()
	if !ok {
		s.notifier.NotifyError("An error occurred!", "The current user does not have an ID!")
		return fmt.Errorf("cannot save offline login code: current user has no id")
	}

	var saved []domain.OfflineLoginData
	if _, err := s.store.Get(storedOfflineCodesKey, &saved); err != nil {
		return err
	}
	entry := domain.OfflineLoginData{
		Code:  code,
		Base:  s.session.Base(),
		User:  *user,
		Token: s.session.Token,
	}
	replaced := false
	for i := range saved {
		savedID, _ := saved[i].User.ResolvedID()
		if savedID == id && saved[i].Base == s.session.Base() {
			saved[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		saved = append(saved, entry)
	}
	return s.store.Set(storedOfflineCodesKey, saved)
}

// OfflineLoginDataByCode returns the saved offline login data matching the
// given code, or nil when no code matches.
func (s *StorageService) OfflineLoginDataByCode(code string) (*domain.OfflineLoginData, error) {
	var saved []domain.OfflineLoginData
	if _, err := s.store.Get(storedOfflineCodesKey, &saved); err != nil {
		return nil, err
	}
	for i := range saved {
		if saved[i].Code == code {
			return &saved[i], nil
		}
	}
	return nil, nil
}

// SaveRequestCache persists the request cache.
func (s *StorageService) SaveRequestCache(cache map[string]RequestCacheEntry) error {
	return s.store.Set(requestCacheKey, cache)
}

// RequestCache returns the persisted request cache, empty when none was
// saved yet.
func (s *StorageService) RequestCache() (map[string]RequestCacheEntry, error) {
	cache := map[string]RequestCacheEntry{}
	if _, err := s.store.Get(requestCacheKey, &cache); err != nil {
		return nil, err
	}
	return cache, nil
}

// SaveTokenWithServerURL persists the session token and base URL under
// the global keys, enabling session restore on the next start.
func (s *StorageService) SaveTokenWithServerURL() error {
	if err := s.store.Set(storedTokenKey, s.session.Token); err != nil {
		return err
	}
	return s.store.Set(storedServerURLKey, s.session.Base())
}

// StoredToken returns the persisted token and server URL, empty when none.
func (s *StorageService) StoredToken() (token, serverURL string, err error) {
	if _, err = s.store.Get(storedTokenKey, &token); err != nil {
		return "", "", err
	}
	if _, err = s.store.Get(storedServerURLKey, &serverURL); err != nil {
		return "", "", err
	}
	return token, serverURL, nil
}

// ClearToken removes the persisted token and server URL on logout.
func (s *StorageService) ClearToken() error {
	if err := s.store.Remove(storedTokenKey); err != nil {
		return err
	}
	return s.store.Remove(storedServerURLKey)
}

// SavedSelectionPath reconstructs the navigation route from whatever
// selection is saved: projects list, the saved project's trackers, or the
// saved tracker's available test runs.
func (s *StorageService) SavedSelectionPath() (string, error) {
	path := "/projects"
	project, err := s.SavedProject()
	if err != nil {
		return "", err
	}
	if project == nil {
		return path, nil
	}
	projectID, err := domain.URI2ID(project.URI)
	if err != nil {
		return "", err
	}
	path = fmt.Sprintf("/project/%d/trackers", projectID)
	tracker, err := s.SavedTracker()
	if err != nil {
		return "", err
	}
	if tracker == nil {
		return path, nil
	}
	trackerID, err := domain.URI2ID(tracker.URI)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("/project/%d/tracker/%d/available-test-runs", projectID, trackerID), nil
}
