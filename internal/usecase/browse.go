package usecase

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/xenosun/codeBeamer-offline-client/internal/domain"
	"github.com/xenosun/codeBeamer-offline-client/internal/logger"
	"github.com/xenosun/codeBeamer-offline-client/internal/port"
	"github.com/xenosun/codeBeamer-offline-client/internal/session"
)

// BrowseService implements the online list operations: projects, test run
// trackers, available test runs and the bug-tracker schema cache. Every
// list fetch presents an Ignore/Retry choice on failure; Retry re-invokes
// the same operation, Ignore propagates the error to the caller.
type BrowseService struct {
	session  *session.Session
	api      port.RestAPI
	storage  *StorageService
	notifier port.Notifier
}

// NewBrowseService creates a browse service.
func NewBrowseService(s *session.Session, api port.RestAPI, storage *StorageService, notifier port.Notifier) *BrowseService {
	return &BrowseService{session: s, api: api, storage: storage, notifier: notifier}
}

// getWithRetry performs a GET and loops on the user's Retry choice until
// the request succeeds or the user ignores the failure. Responses are
// mirrored into the request cache; when the server is unreachable the
// cached copy is served instead of a prompt.
func (b *BrowseService) getWithRetry(path, failMessage string) (json.RawMessage, error) {
	for {
		raw, err := b.api.Get(path)
		if err == nil {
			b.cacheResponse(path, raw)
			return raw, nil
		}
		se, ok := domain.IsServerError(err)
		if !ok {
			return nil, err
		}
		if se.StatusCode == 0 {
			if cached, found := b.cachedResponse(path); found {
				logger.Debug("browse: server unreachable, serving cached response for %s", path)
				return cached, nil
			}
		}
		logger.Err(err, "browse: %s", failMessage)
		if b.notifier.ServerRequestFailed("Server request failed", failMessage) == port.ChoiceIgnore {
			return nil, err
		}
	}
}

func (b *BrowseService) cacheResponse(path string, raw json.RawMessage) {
	cache, err := b.storage.RequestCache()
	if err != nil {
		logger.Debug("browse: failed to load request cache: %v", err)
		return
	}
	cache[path] = RequestCacheEntry{URL: path, ResponseBody: raw}
	if err := b.storage.SaveRequestCache(cache); err != nil {
		logger.Debug("browse: failed to save request cache: %v", err)
	}
}

func (b *BrowseService) cachedResponse(path string) (json.RawMessage, bool) {
	cache, err := b.storage.RequestCache()
	if err != nil {
		return nil, false
	}
	entry, found := cache[path]
	return entry.ResponseBody, found
}

// AvailableTestRuns returns one page of the test runs assigned to the
// current user in the given project and tracker.
func (b *BrowseService) AvailableTestRuns(projectID, trackerID, page int) ([]domain.TestRun, error) {
	if page < 1 {
		page = 1
	}
	queryString := fmt.Sprintf(
		"project.id IN (%d) AND tracker.id IN (%d) AND parentId IS NULL AND assignedTo IN ('current user')",
		projectID, trackerID,
	)
	path := fmt.Sprintf("rest/query/page/%d?queryString=%s", page, url.QueryEscape(queryString))
	raw, err := b.getWithRetry(path, fmt.Sprintf("Failed to get the test runs of tracker: %d", trackerID))
	if err != nil {
		return nil, err
	}
	var result domain.TrackerItemPage
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to decode test run page: %w", err)
	}
	return result.TrackerItems.Items, nil
}

// ProjectsOfCurrentUser returns all projects the current user can access.
func (b *BrowseService) ProjectsOfCurrentUser() ([]domain.Project, error) {
	user := b.session.CurrentUser
	if user == nil {
		return nil, fmt.Errorf("no current user")
	}
	id, ok := user.ResolvedID()
	if !ok {
		return nil, fmt.Errorf("current user has no id")
	}
	raw, err := b.getWithRetry(
		fmt.Sprintf("rest/user/%d/projects", id),
		"Failed to get project list of the current user.",
	)
	if err != nil {
		return nil, err
	}
	var projects []domain.Project
	if err := json.Unmarshal(raw, &projects); err != nil {
		return nil, fmt.Errorf("failed to decode projects: %w", err)
	}
	return projects, nil
}

// TestRunTrackersOfProject returns the test-run type trackers of a project.
func (b *BrowseService) TestRunTrackersOfProject(projectID int) ([]domain.Tracker, error) {
	raw, err := b.getWithRetry(
		fmt.Sprintf("rest/project/%d/trackers/qualifier/testrun", projectID),
		fmt.Sprintf("Failed to get the test run type trackers of project: %d", projectID),
	)
	if err != nil {
		return nil, err
	}
	var trackers []domain.Tracker
	if err := json.Unmarshal(raw, &trackers); err != nil {
		return nil, fmt.Errorf("failed to decode trackers: %w", err)
	}
	return trackers, nil
}

// SaveBugTrackerInfoOfAllAvailableProjects queries every accessible
// project's bug trackers with their item creation schemas and caches the
// whole list in the persistent store.
func (b *BrowseService) SaveBugTrackerInfoOfAllAvailableProjects() error {
	info, err := b.allProjectsWithBugTrackers()
	if err != nil {
		return err
	}
	return b.storage.SaveBugTrackerInfo(info)
}

func (b *BrowseService) allProjectsWithBugTrackers() ([]domain.ProjectWithBugTrackers, error) {
	projects, err := b.ProjectsOfCurrentUser()
	if err != nil {
		return nil, err
	}
	info := make([]domain.ProjectWithBugTrackers, 0, len(projects))
	for _, project := range projects {
		projectID, err := domain.URI2ID(project.URI)
		if err != nil {
			return nil, err
		}
		bugTrackers, err := b.bugTrackersWithNewItemSchema(projectID)
		if err != nil {
			return nil, err
		}
		info = append(info, domain.ProjectWithBugTrackers{
			Project:     project,
			BugTrackers: bugTrackers,
		})
	}
	return info, nil
}

func (b *BrowseService) bugTrackersWithNewItemSchema(projectID int) ([]domain.TrackerWithNewItemSchema, error) {
	raw, err := b.getWithRetry(
		fmt.Sprintf("rest/project/%d/trackers/qualifier/bug", projectID),
		fmt.Sprintf("Failed to get the bug trackers of project: %d", projectID),
	)
	if err != nil {
		return nil, err
	}
	var trackers []domain.Tracker
	if err := json.Unmarshal(raw, &trackers); err != nil {
		return nil, fmt.Errorf("failed to decode bug trackers: %w", err)
	}
	result := make([]domain.TrackerWithNewItemSchema, 0, len(trackers))
	for _, tracker := range trackers {
		trackerID, err := domain.URI2ID(tracker.URI)
		if err != nil {
			return nil, err
		}
		result = append(result, domain.TrackerWithNewItemSchema{
			Tracker:       tracker,
			NewItemSchema: b.newItemSchemaOfTracker(trackerID),
		})
	}
	return result, nil
}

// newItemSchemaOfTracker fetches the creation schema for one tracker. A
// failed schema fetch is tolerated; the tracker is cached without one.
func (b *BrowseService) newItemSchemaOfTracker(trackerID int) *domain.NewItemSchema {
	raw, err := b.api.Get(fmt.Sprintf("rest/tracker/%d/newItem", trackerID))
	if err != nil {
		logger.Err(err, "browse: failed to get new item schema of tracker %d", trackerID)
		return nil
	}
	var schema domain.NewItemSchema
	if err := json.Unmarshal(raw, &schema); err != nil {
		logger.Err(err, "browse: failed to decode new item schema of tracker %d", trackerID)
		return nil
	}
	return &schema
}
