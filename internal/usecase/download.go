package usecase

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/xenosun/codeBeamer-offline-client/internal/domain"
	"github.com/xenosun/codeBeamer-offline-client/internal/logger"
	"github.com/xenosun/codeBeamer-offline-client/internal/port"
	"github.com/xenosun/codeBeamer-offline-client/internal/session"
)

// DownloadService is the materialization engine: it fetches a test run
// and all its test cases from the server, converts them into a fully
// self-contained offline snapshot (attachments stored locally, markup
// pre-rendered to HTML, image URLs rewritten) and persists the snapshot.
type DownloadService struct {
	session  *session.Session
	api      port.RestAPI
	files    port.FileStore
	storage  *StorageService
	notifier port.Notifier
}

// NewDownloadService creates a download service.
func NewDownloadService(s *session.Session, api port.RestAPI, files port.FileStore, storage *StorageService, notifier port.Notifier) *DownloadService {
	return &DownloadService{session: s, api: api, files: files, storage: storage, notifier: notifier}
}

// DownloadTestRuns materializes the given test runs one after another.
// After each completed run the server-side run status is set to Suspended
// and the progress callback fires, so a caller downloading N runs can
// show "k of N". Already persisted runs survive a later failure.
func (d *DownloadService) DownloadTestRuns(testRuns []domain.TestRun, progress func(completed, total int)) error {
	for i, testRun := range testRuns {
		if err := d.downloadTestRunData(testRun); err != nil {
			return err
		}
		if _, err := d.api.Post(fmt.Sprintf("rest/offline/testRunner/setTestRunStatus/%d", testRun.ID), "Suspended"); err != nil {
			logger.Err(err, "download: failed to set server status of test run %d", testRun.ID)
		}
		if progress != nil {
			progress(i+1, len(testRuns))
		}
	}
	return nil
}

// DeleteDownloadedTestRun removes the snapshot identified by testRunID:
// its attachment files are purged and the stored collection persisted
// without it.
func (d *DownloadService) DeleteDownloadedTestRun(testRunID int) error {
	runs, err := d.storage.DownloadedTestRuns()
	if err != nil {
		return err
	}
	kept := runs[:0]
	for _, run := range runs {
		if run.TestRunID != testRunID {
			kept = append(kept, run)
			continue
		}
		d.removeAttachmentsOfDownloadedTestRun(run)
	}
	return d.storage.SaveDownloadedTestRuns(kept)
}

// removeAttachmentsOfDownloadedTestRun deletes the locally stored
// attachment files of the run and all its test cases. Individual removal
// failures are logged and tolerated.
func (d *DownloadService) removeAttachmentsOfDownloadedTestRun(run domain.DownloadedTestRun) {
	d.removeAttachments(domain.CollectAttachments(run.InitializedTestRun.TestRun.Comments))
	for _, itc := range run.InitializedTestCases {
		d.removeAttachments(domain.CollectAttachments(itc.TestCaseTrackerItem.Comments))
	}
}

func (d *DownloadService) removeAttachments(attachments []domain.Attachment) {
	for _, att := range attachments {
		if att.Directory == "" {
			continue
		}
		if err := d.files.RemoveFile(att.Directory, att.Name); err != nil {
			logger.Err(err, "download: failed to remove attachment %q", att.Name)
		}
	}
}

// downloadTestRunData materializes one test run: initialize every test
// case on the server, download all attachments, convert the wiki fields
// to HTML and persist the snapshot.
func (d *DownloadService) downloadTestRunData(testRun domain.TestRun) error {
	initializedRun, initializedCases, err := d.initializeTestRunner(testRun)
	if err != nil {
		return err
	}

	d.downloadAttachments(initializedRun, initializedCases)

	if err := d.convertAllWikiMarkupsToHTML(initializedRun, initializedCases); err != nil {
		return err
	}

	data := domain.DownloadedTestRun{
		TestRunID:            testRun.ID,
		TestRunName:          testRun.Name,
		DownloadedAt:         time.Now(),
		InitializedTestRun:   *initializedRun,
		InitializedTestCases: initializedCases,
	}
	return d.storage.SaveSingleDownloadedTestRun(data)
}

// initializeTestRunner hydrates every test case of the run, one call per
// case. The run-level summary is derived from the first response.
func (d *DownloadService) initializeTestRunner(testRun domain.TestRun) (*domain.InitializedTestRun, []domain.InitializedTestCase, error) {
	if len(testRun.TestCases) == 0 {
		return nil, nil, fmt.Errorf("test run %d has no test cases", testRun.ID)
	}
	responses := make([]*domain.InitTestRunnerResponse, len(testRun.TestCases))
	for i := range testRun.TestCases {
		resp, err := d.initializeTestCase(testRun, i)
		if err != nil {
			return nil, nil, err
		}
		responses[i] = resp
	}

	initializedRun := domain.NewInitializedTestRun(responses[0])
	initializedCases := make([]domain.InitializedTestCase, len(responses))
	for i, resp := range responses {
		initializedCases[i] = domain.NewInitializedTestCase(resp)
	}
	return &initializedRun, initializedCases, nil
}

// initializeTestCase calls the initTestRunner operation for one case
// index, looping on the user's Retry choice. Ignore aborts the run's
// materialization.
func (d *DownloadService) initializeTestCase(testRun domain.TestRun, caseIndex int) (*domain.InitTestRunnerResponse, error) {
	path := fmt.Sprintf("rest/testRunner/initTestRunner/%d/%d", testRun.ID, caseIndex)
	for {
		raw, err := d.api.Get(path)
		if err == nil {
			return domain.DecodeInitTestRunnerResponse(raw)
		}
		if _, ok := domain.IsServerError(err); !ok {
			return nil, err
		}
		logger.Err(err, "download: failed to initialize case %d of test run %d", caseIndex, testRun.ID)
		choice := d.notifier.ServerRequestFailed(
			"Server request failed",
			fmt.Sprintf("Failed to initialize the %d. test case of test run: %d", caseIndex, testRun.ID),
		)
		if choice == port.ChoiceIgnore {
			return nil, err
		}
	}
}

// downloadAttachments stores every comment attachment of the parent run
// and of each case's tracker item under the application's attachment
// directory. Sequential across cases; a failed attachment leaves its
// local path empty and does not abort the pass.
func (d *DownloadService) downloadAttachments(run *domain.InitializedTestRun, cases []domain.InitializedTestCase) {
	dir := d.files.BaseDir()
	d.downloadCommentAttachments(dir, run.TestRun.Comments)
	for i := range cases {
		d.downloadCommentAttachments(dir, cases[i].TestCaseTrackerItem.Comments)
	}
}

func (d *DownloadService) downloadCommentAttachments(dir string, comments []domain.Comment) {
	for ci := range comments {
		for ai := range comments[ci].Attachments {
			att := &comments[ci].Attachments[ai]
			if err := d.downloadAttachment(dir, att); err != nil {
				logger.Err(err, "download: failed to download attachment %q", att.Name)
			}
		}
	}
}

func (d *DownloadService) downloadAttachment(dir string, att *domain.Attachment) error {
	blob, err := d.api.GetBlob("rest"+att.URI, "image/*")
	if err != nil {
		return err
	}
	localURL, err := d.files.StoreFile(dir, att.Name, blob)
	if err != nil {
		return err
	}
	att.Path = localURL
	att.Directory = dir
	return nil
}

// convertAllWikiMarkupsToHTML converts the run description and every test
// case's wiki fields. Field conversions run concurrently within one case,
// cases are processed one after another to bound request concurrency.
func (d *DownloadService) convertAllWikiMarkupsToHTML(run *domain.InitializedTestRun, cases []domain.InitializedTestCase) error {
	runAttachments := domain.CollectAttachments(run.TestRun.Comments)
	runID, err := domain.URI2ID(run.TestRun.URI)
	if err != nil {
		runID = run.TestRun.ID
	}
	html, err := d.ConvertWikiToHTML(run.TestRun.Description, runAttachments, runID)
	if err != nil {
		return err
	}
	run.TestRun.Description = html

	for i := range cases {
		if err := d.convertTestCaseWikiFields(&cases[i]); err != nil {
			return err
		}
	}
	return nil
}

// convertTestCaseWikiFields converts preAction, description and
// postAction concurrently, then rewrites the image URLs of every step's
// preview texts in place.
func (d *DownloadService) convertTestCaseWikiFields(itc *domain.InitializedTestCase) error {
	attachments := domain.CollectAttachments(itc.TestCaseTrackerItem.Comments)
	caseID, err := domain.URI2ID(itc.TestCaseTrackerItem.URI)
	if err != nil {
		caseID = itc.TestCaseTrackerItem.ID
	}

	fields := []*string{
		&itc.TestCaseTrackerItem.PreAction,
		&itc.TestCaseTrackerItem.Description,
		&itc.TestCaseTrackerItem.PostAction,
	}
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for _, field := range fields {
		wg.Add(1)
		go func(field *string) {
			defer wg.Done()
			html, err := d.ConvertWikiToHTML(*field, attachments, caseID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			*field = html
		}(field)
	}
	wg.Wait()
	if firstErr != nil {
		return firstErr
	}

	for si := range itc.TestStepsWithResults {
		step := &itc.TestStepsWithResults[si]
		step.ActionPreview = d.ReplaceImageURLs(step.ActionPreview, attachments)
		step.ExpectedResultPreview = d.ReplaceImageURLs(step.ExpectedResultPreview, attachments)
	}
	return nil
}

// ConvertWikiToHTML converts wiki markup via the remote conversion
// service and rewrites image URLs in the result to locally stored copies.
func (d *DownloadService) ConvertWikiToHTML(wikiText string, attachments []domain.Attachment, itemID int) (string, error) {
	if wikiText == "" {
		return wikiText, nil
	}
	body := map[string]string{"content": wikiText}
	if itemID != 0 {
		body["entityRef"] = fmt.Sprintf("[ISSUE:%d]", itemID)
	}
	raw, err := d.api.Post("rest/convertWikiToHTML", body)
	if err != nil {
		return "", err
	}
	var converted struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(raw, &converted); err != nil {
		return "", fmt.Errorf("failed to decode wiki conversion response: %w", err)
	}
	return d.ReplaceImageURLs(converted.Content, attachments), nil
}

var imgSrcPattern = regexp.MustCompile(`<img\s+[^>]*src="([^"\s]*)"`)

// ReplaceImageURLs rewrites every <img src> in the text: when a matching
// attachment has a local copy its path is substituted, otherwise the
// fully-qualified server URL. The known application path prefix is
// stripped before the server URL is built.
func (d *DownloadService) ReplaceImageURLs(text string, attachments []domain.Attachment) string {
	if text == "" {
		return text
	}
	for _, match := range imgSrcPattern.FindAllStringSubmatch(text, -1) {
		imageSrc := match[1]
		if imageSrc == "" {
			continue
		}
		resourceURL := d.session.Base() + strings.TrimPrefix(imageSrc, "/cb")

		replacement := resourceURL
		for _, att := range attachments {
			if att.Path != "" && strings.Contains(imageSrc, att.Name) {
				replacement = att.Path
				break
			}
		}
		text = strings.Replace(text, imageSrc, replacement, 1)
	}
	return text
}
