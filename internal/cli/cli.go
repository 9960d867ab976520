// Package cli wires the engines behind a terminal front end: login and
// offline login, browsing projects and trackers, downloading test runs,
// recording step results and syncing finished runs back to the server.
package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/xenosun/codeBeamer-offline-client/internal/adapter"
	"github.com/xenosun/codeBeamer-offline-client/internal/config"
	"github.com/xenosun/codeBeamer-offline-client/internal/domain"
	"github.com/xenosun/codeBeamer-offline-client/internal/logger"
	"github.com/xenosun/codeBeamer-offline-client/internal/session"
	"github.com/xenosun/codeBeamer-offline-client/internal/usecase"
)

const AppName = "cbrunner"

type App struct {
	cli *cli.App
}

func New() *App {
	app := &App{
		cli: &cli.App{
			Name:  AppName,
			Usage: "Offline test runner for codeBeamer test management",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "verbose",
					Usage: "Enable verbose (debug) logging",
				},
				&cli.StringFlag{
					Name:  "config",
					Usage: "Path to the config file (default: ./config.ini, ~/.cbrunner/config.ini)",
				},
				&cli.BoolFlag{
					Name:  "yes",
					Usage: "Answer every confirmation prompt with yes (non-interactive)",
				},
			},
			Before: func(ctx *cli.Context) error {
				if ctx.Bool("verbose") {
					logger.SetDebugMode(true)
				}
				return nil
			},
		},
	}

	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "login",
		Usage:  "Authenticate against the server and remember the session",
		Action: app.login,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "username",
				Aliases: []string{"u"},
				Usage:   "Account name (falls back to server.username from the config)",
			},
			&cli.StringFlag{
				Name:    "password",
				Aliases: []string{"p"},
				Usage:   "Password (falls back to the CB_PASSWORD environment variable)",
			},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "logout",
		Usage:  "Clear the stored session",
		Action: app.logout,
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "offline-code",
		Usage:  "Create an offline login code for the current user",
		Action: app.createOfflineCode,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "code", Usage: "The code (at least 7 characters)", Required: true},
			&cli.StringFlag{Name: "confirm", Usage: "The code again, to confirm", Required: true},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "offline-login",
		Usage:  "Authenticate without network using a saved offline code",
		Action: app.offlineLogin,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "code", Usage: "A previously created offline login code", Required: true},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "projects",
		Usage:  "List the projects of the current user",
		Action: app.projects,
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "trackers",
		Usage:     "List the test run trackers of a project",
		ArgsUsage: "PROJECT_ID",
		Action:    app.trackers,
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "runs",
		Usage:     "List the test runs assigned to the current user",
		ArgsUsage: "PROJECT_ID TRACKER_ID",
		Action:    app.availableRuns,
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "page", Usage: "Result page", Value: 1},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "download",
		Usage:     "Download test runs for offline execution",
		ArgsUsage: "PROJECT_ID TRACKER_ID [RUN_ID...]",
		Action:    app.download,
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "page", Usage: "Result page to download from", Value: 1},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "list",
		Usage:  "List the downloaded test runs on this device",
		Action: app.listDownloaded,
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "show",
		Usage:     "Show the cases and step results of a downloaded test run",
		ArgsUsage: "RUN_ID",
		Action:    app.show,
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "pass",
		Usage:     "Mark a test step as passed",
		ArgsUsage: "RUN_ID CASE_NO STEP_NO",
		Action:    app.passStep,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "actual", Usage: "Actual result text recorded with the step"},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "fail",
		Usage:     "Mark a test step as failed",
		ArgsUsage: "RUN_ID CASE_NO STEP_NO",
		Action:    app.failStep,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "actual", Usage: "Actual result text recorded with the step"},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "attach",
		Usage:     "Attach a file to a test step",
		ArgsUsage: "RUN_ID CASE_NO STEP_NO FILE",
		Action:    app.attach,
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "finish",
		Usage:     "Finish a test case, confirming when steps are incomplete",
		ArgsUsage: "RUN_ID CASE_NO",
		Action:    app.finish,
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "time", Usage: "Elapsed time in seconds"},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "bug",
		Usage:     "Report a bug against a test case, uploaded with the run",
		ArgsUsage: "RUN_ID CASE_NO",
		Action:    app.reportBug,
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "tracker", Usage: "Bug tracker id from the cached schema", Required: true},
			&cli.StringFlag{Name: "name", Usage: "Bug summary", Required: true},
			&cli.StringFlag{Name: "description", Usage: "Bug description"},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "upload",
		Usage:     "Upload the results of a downloaded test run",
		ArgsUsage: "RUN_ID",
		Action:    app.upload,
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "delete",
		Usage:     "Delete a downloaded test run and its attachment files",
		ArgsUsage: "RUN_ID",
		Action:    app.deleteRun,
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "resume",
		Usage:  "Print the saved project/tracker selection path",
		Action: app.resume,
	})
	return app
}

func (a *App) Run(args []string) error {
	return a.cli.Run(args)
}

// SetVersion sets the version information for the CLI application
func (a *App) SetVersion(version, commit, date string) {
	a.cli.Version = version
	if commit != "none" && commit != "" && len(commit) >= 8 {
		a.cli.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit[:8], date)
	}
}

// services is the assembled runtime of one command invocation.
type services struct {
	cfg      *config.Config
	session  *session.Session
	store    *adapter.SQLiteStore
	rest     *adapter.RestClient
	notifier *adapter.ConsoleNotifier

	storage  *usecase.StorageService
	auth     *usecase.AuthService
	browse   *usecase.BrowseService
	download *usecase.DownloadService
	runner   *usecase.RunnerService
	upload   *usecase.UploadService
}

func (s *services) close() {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			logger.Err(err, "cli: failed to close store")
		}
	}
}

func (a *App) open(ctx *cli.Context) (*services, error) {
	var cfg *config.Config
	var err error
	if path := ctx.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sess := session.New(cfg.Server.URL)
	store, err := adapter.NewSQLiteStore(cfg.Storage.DBPath)
	if err != nil {
		return nil, err
	}
	files, err := adapter.NewFileSystemStore(cfg.Storage.AttachmentDir)
	if err != nil {
		store.Close()
		return nil, err
	}

	rest := adapter.NewRestClient(sess)
	uploader := adapter.NewResumableUploader(sess, cfg.Upload.ChunkSize, cfg.Upload.SimultaneousChunks)
	notifier := adapter.NewConsoleNotifier(os.Stdin, os.Stdout, !ctx.Bool("yes"))

	storage := usecase.NewStorageService(sess, store, notifier)
	s := &services{
		cfg:      cfg,
		session:  sess,
		store:    store,
		rest:     rest,
		notifier: notifier,
		storage:  storage,
		auth:     usecase.NewAuthService(sess, rest, rest, storage, notifier),
		browse:   usecase.NewBrowseService(sess, rest, storage, notifier),
		download: usecase.NewDownloadService(sess, rest, files, storage, notifier),
		runner:   usecase.NewRunnerService(storage, files, notifier),
		upload:   usecase.NewUploadService(sess, rest, files, uploader, storage, notifier),
	}
	return s, nil
}

// openLoggedIn opens the runtime and restores the stored session. Commands
// needing the server require a valid restored token.
func (a *App) openLoggedIn(ctx *cli.Context) (*services, error) {
	s, err := a.open(ctx)
	if err != nil {
		return nil, err
	}
	ok, err := s.auth.CheckSessionToken()
	if err != nil {
		s.close()
		return nil, err
	}
	if !ok {
		s.close()
		return nil, fmt.Errorf("not logged in, run '%s login' first", AppName)
	}
	return s, nil
}

func (a *App) login(ctx *cli.Context) error {
	s, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	username := ctx.String("username")
	if username == "" {
		username = s.cfg.Server.Username
	}
	if username == "" {
		return fmt.Errorf("no username given")
	}
	password := ctx.String("password")
	if password == "" {
		password = os.Getenv("CB_PASSWORD")
	}
	if password == "" {
		return fmt.Errorf("no password given")
	}

	ok, err := s.auth.Login(username, password)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("login rejected")
	}
	logger.Info("logged in as %s", username)
	return nil
}

func (a *App) logout(ctx *cli.Context) error {
	s, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer s.close()
	return s.auth.Logout()
}

func (a *App) createOfflineCode(ctx *cli.Context) error {
	s, err := a.openLoggedIn(ctx)
	if err != nil {
		return err
	}
	defer s.close()
	if err := s.auth.CreateOfflineLoginCode(ctx.String("code"), ctx.String("confirm")); err != nil {
		return err
	}
	logger.Info("offline login code saved")
	return nil
}

func (a *App) offlineLogin(ctx *cli.Context) error {
	s, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer s.close()
	ok, err := s.auth.OfflineLogin(ctx.String("code"))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("unknown offline login code")
	}
	fmt.Printf("offline login as %s on %s\n", s.session.CurrentUser.Name, s.session.Base())
	return nil
}

func (a *App) projects(ctx *cli.Context) error {
	s, err := a.openLoggedIn(ctx)
	if err != nil {
		return err
	}
	defer s.close()
	projects, err := s.browse.ProjectsOfCurrentUser()
	if err != nil {
		return err
	}
	for _, p := range projects {
		id, _ := domain.URI2ID(p.URI)
		fmt.Printf("%8d  %s\n", id, p.Name)
	}
	return nil
}

func (a *App) trackers(ctx *cli.Context) error {
	projectID, err := intArg(ctx, 0, "PROJECT_ID")
	if err != nil {
		return err
	}
	s, err := a.openLoggedIn(ctx)
	if err != nil {
		return err
	}
	defer s.close()
	trackers, err := s.browse.TestRunTrackersOfProject(projectID)
	if err != nil {
		return err
	}
	for _, t := range trackers {
		id, _ := domain.URI2ID(t.URI)
		fmt.Printf("%8d  %s\n", id, t.Name)
	}
	return nil
}

func (a *App) availableRuns(ctx *cli.Context) error {
	projectID, err := intArg(ctx, 0, "PROJECT_ID")
	if err != nil {
		return err
	}
	trackerID, err := intArg(ctx, 1, "TRACKER_ID")
	if err != nil {
		return err
	}
	s, err := a.openLoggedIn(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	runs, err := s.browse.AvailableTestRuns(projectID, trackerID, ctx.Int("page"))
	if err != nil {
		return err
	}
	a.rememberSelection(s, projectID, trackerID)
	for _, run := range runs {
		fmt.Printf("%8d  %-12s  %s\n", run.ID, run.Status.Name, run.Name)
	}
	return nil
}

// rememberSelection persists the browsed project and tracker so the next
// session resumes at the same place. Failures only cost the convenience.
func (a *App) rememberSelection(s *services, projectID, trackerID int) {
	project := domain.Project{URI: fmt.Sprintf("/project/%d", projectID)}
	if err := s.storage.SaveSelectedProject(project); err != nil {
		logger.Debug("cli: failed to save project selection: %v", err)
		return
	}
	tracker := domain.Tracker{URI: fmt.Sprintf("/tracker/%d", trackerID)}
	if err := s.storage.SaveSelectedTracker(tracker); err != nil {
		logger.Debug("cli: failed to save tracker selection: %v", err)
	}
}

func (a *App) download(ctx *cli.Context) error {
	projectID, err := intArg(ctx, 0, "PROJECT_ID")
	if err != nil {
		return err
	}
	trackerID, err := intArg(ctx, 1, "TRACKER_ID")
	if err != nil {
		return err
	}
	s, err := a.openLoggedIn(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	available, err := s.browse.AvailableTestRuns(projectID, trackerID, ctx.Int("page"))
	if err != nil {
		return err
	}
	selected := available
	if ctx.Args().Len() > 2 {
		wanted := map[int]bool{}
		for _, arg := range ctx.Args().Slice()[2:] {
			id, err := strconv.Atoi(arg)
			if err != nil {
				return fmt.Errorf("invalid run id %q", arg)
			}
			wanted[id] = true
		}
		selected = selected[:0]
		for _, run := range available {
			if wanted[run.ID] {
				selected = append(selected, run)
			}
		}
		if len(selected) != len(wanted) {
			return fmt.Errorf("some requested runs are not assigned to you on this page")
		}
	}
	if len(selected) == 0 {
		return fmt.Errorf("no test runs to download")
	}

	err = s.download.DownloadTestRuns(selected, func(completed, total int) {
		logger.Info("downloaded %d of %d test runs", completed, total)
	})
	if err != nil {
		return err
	}
	a.rememberSelection(s, projectID, trackerID)

	// Cache bug tracker schemas so bugs can be reported while offline.
	if err := s.browse.SaveBugTrackerInfoOfAllAvailableProjects(); err != nil {
		logger.Err(err, "cli: failed to cache bug tracker schemas")
	}
	return nil
}

func (a *App) listDownloaded(ctx *cli.Context) error {
	s, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer s.close()
	if err := a.restoreIdentity(ctx, s); err != nil {
		return err
	}
	runs, err := s.storage.DownloadedTestRuns()
	if err != nil {
		return err
	}
	for _, run := range runs {
		state := run.InitializedTestRun.TestRunStatus
		if state == "" {
			state = "New"
		}
		if run.Uploaded {
			state = "Uploaded"
		}
		fmt.Printf("%8d  %-12s  %s (downloaded %s)\n",
			run.TestRunID, state, run.TestRunName, run.DownloadedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

// restoreIdentity restores the current user either from the stored session
// token or, when offline, from a saved offline login code given via the
// CB_OFFLINE_CODE environment variable.
func (a *App) restoreIdentity(ctx *cli.Context, s *services) error {
	if code := os.Getenv("CB_OFFLINE_CODE"); code != "" {
		ok, err := s.auth.OfflineLogin(code)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		return fmt.Errorf("unknown offline login code")
	}
	ok, err := s.auth.CheckSessionToken()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("not logged in, run '%s login' or set CB_OFFLINE_CODE", AppName)
	}
	return nil
}

func (a *App) show(ctx *cli.Context) error {
	runID, err := intArg(ctx, 0, "RUN_ID")
	if err != nil {
		return err
	}
	s, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer s.close()
	if err := a.restoreIdentity(ctx, s); err != nil {
		return err
	}
	run, err := s.storage.SingleDownloadedTestRun(runID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("test run %d is not downloaded", runID)
	}

	summary := s.runner.Summarize(run)
	fmt.Printf("%s (run %d), %d/%d cases done, total time %s\n",
		run.TestRunName, run.TestRunID, summary.CompletedTestRuns,
		len(run.InitializedTestCases), domain.FormatRunTime(summary.TotalRunTimeMillis))
	for ci := range run.InitializedTestCases {
		itc := &run.InitializedTestCases[ci]
		fmt.Printf("  case %d: %s [%s]\n", ci+1, itc.TestCaseTrackerItem.Name, caseStateName(s.runner.CaseState(itc)))
		for si, step := range itc.TestStepsWithResults {
			marker := " "
			switch {
			case step.Visited && step.Passed:
				marker = "P"
			case step.Visited:
				marker = "F"
			}
			fmt.Printf("    step %d [%s] %s\n", si+1, marker, step.ActionPreview)
		}
	}
	return nil
}

func caseStateName(state usecase.CaseState) string {
	switch state {
	case usecase.CaseInProgress:
		return "in progress"
	case usecase.CaseFinished:
		return "finished"
	default:
		return "not started"
	}
}

func (a *App) passStep(ctx *cli.Context) error {
	return a.recordStep(ctx, true)
}

func (a *App) failStep(ctx *cli.Context) error {
	return a.recordStep(ctx, false)
}

func (a *App) recordStep(ctx *cli.Context, passed bool) error {
	run, _, step, s, err := a.resolveStep(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	if actual := ctx.String("actual"); actual != "" {
		step.ActualResultMarkup = actual
		step.ActualResultPreview = actual
	}
	if passed {
		s.runner.PassStep(step)
	} else {
		s.runner.FailStep(step)
	}
	return s.runner.Flush(run)
}

// resolveStep loads the run and addresses one step by the 1-based case and
// step numbers given on the command line.
func (a *App) resolveStep(ctx *cli.Context) (*domain.DownloadedTestRun, *domain.InitializedTestCase, *domain.TestStepWithResult, *services, error) {
	runID, err := intArg(ctx, 0, "RUN_ID")
	if err != nil {
		return nil, nil, nil, nil, err
	}
	caseNo, err := intArg(ctx, 1, "CASE_NO")
	if err != nil {
		return nil, nil, nil, nil, err
	}
	stepNo, err := intArg(ctx, 2, "STEP_NO")
	if err != nil {
		return nil, nil, nil, nil, err
	}

	s, err := a.open(ctx)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if err := a.restoreIdentity(ctx, s); err != nil {
		s.close()
		return nil, nil, nil, nil, err
	}
	run, err := s.storage.SingleDownloadedTestRun(runID)
	if err != nil {
		s.close()
		return nil, nil, nil, nil, err
	}
	if run == nil {
		s.close()
		return nil, nil, nil, nil, fmt.Errorf("test run %d is not downloaded", runID)
	}
	if caseNo < 1 || caseNo > len(run.InitializedTestCases) {
		s.close()
		return nil, nil, nil, nil, fmt.Errorf("no case %d in test run %d", caseNo, runID)
	}
	itc := &run.InitializedTestCases[caseNo-1]
	if stepNo < 1 || stepNo > len(itc.TestStepsWithResults) {
		s.close()
		return nil, nil, nil, nil, fmt.Errorf("no step %d in case %d", stepNo, caseNo)
	}
	return run, itc, &itc.TestStepsWithResults[stepNo-1], s, nil
}

func (a *App) attach(ctx *cli.Context) error {
	run, itc, step, s, err := a.resolveStep(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	filePath := ctx.Args().Get(3)
	if filePath == "" {
		return fmt.Errorf("missing FILE argument")
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	caseNo, _ := intArg(ctx, 1, "CASE_NO")
	upload, err := s.runner.AddAttachmentToStep(itc, caseNo-1, step, baseName(filePath), data)
	if err != nil {
		return err
	}
	if err := s.runner.Flush(run); err != nil {
		return err
	}
	logger.Info("attached %s (%s)", upload.VisibleFileName, upload.FileSize)
	return nil
}

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return path[i+1:]
		}
	}
	return path
}

func (a *App) finish(ctx *cli.Context) error {
	runID, err := intArg(ctx, 0, "RUN_ID")
	if err != nil {
		return err
	}
	caseNo, err := intArg(ctx, 1, "CASE_NO")
	if err != nil {
		return err
	}
	s, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer s.close()
	if err := a.restoreIdentity(ctx, s); err != nil {
		return err
	}
	run, err := s.storage.SingleDownloadedTestRun(runID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("test run %d is not downloaded", runID)
	}
	if caseNo < 1 || caseNo > len(run.InitializedTestCases) {
		return fmt.Errorf("no case %d in test run %d", caseNo, runID)
	}
	itc := &run.InitializedTestCases[caseNo-1]

	timeSpent := ctx.Int64("time") * 1000
	if timeSpent == 0 {
		timeSpent = itc.RunTimeMillis
	}
	finished, jumpTo, err := s.runner.FinishTestCase(run, itc, timeSpent)
	if err != nil {
		return err
	}
	if !finished {
		fmt.Printf("case %d not finished, continue at step %d\n", caseNo, jumpTo+1)
		return nil
	}
	s.runner.ActualizeTestRunFields(run)
	if err := s.runner.Flush(run); err != nil {
		return err
	}
	fmt.Printf("case %d finished: %s\n", caseNo, itc.ChildTestRun.Result.Name)
	return nil
}

func (a *App) reportBug(ctx *cli.Context) error {
	runID, err := intArg(ctx, 0, "RUN_ID")
	if err != nil {
		return err
	}
	caseNo, err := intArg(ctx, 1, "CASE_NO")
	if err != nil {
		return err
	}
	s, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer s.close()
	if err := a.restoreIdentity(ctx, s); err != nil {
		return err
	}
	run, err := s.storage.SingleDownloadedTestRun(runID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("test run %d is not downloaded", runID)
	}
	if caseNo < 1 || caseNo > len(run.InitializedTestCases) {
		return fmt.Errorf("no case %d in test run %d", caseNo, runID)
	}
	itc := &run.InitializedTestCases[caseNo-1]

	schema, err := a.findBugSchema(s, ctx.Int("tracker"))
	if err != nil {
		return err
	}
	bug := s.runner.ReportBug(itc, schema, ctx.String("name"), ctx.String("description"))
	if err := s.runner.Flush(run); err != nil {
		return err
	}
	logger.Info("bug %q recorded, uploaded with the run", bug.Name)
	return nil
}

// findBugSchema resolves a bug tracker's creation schema from the cache
// written at download time.
func (a *App) findBugSchema(s *services, trackerID int) (*domain.NewItemSchema, error) {
	info, err := s.storage.BugTrackerInfo()
	if err != nil {
		return nil, err
	}
	for _, project := range info {
		for _, tracker := range project.BugTrackers {
			id, err := domain.URI2ID(tracker.Tracker.URI)
			if err != nil {
				continue
			}
			if id == trackerID {
				return tracker.NewItemSchema, nil
			}
		}
	}
	return nil, fmt.Errorf("bug tracker %d is not in the cached schema, re-run download while online", trackerID)
}

func (a *App) upload(ctx *cli.Context) error {
	runID, err := intArg(ctx, 0, "RUN_ID")
	if err != nil {
		return err
	}
	s, err := a.openLoggedIn(ctx)
	if err != nil {
		return err
	}
	defer s.close()
	run, err := s.storage.SingleDownloadedTestRun(runID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("test run %d is not downloaded", runID)
	}

	err = s.upload.UploadTestRun(run, func(completed, total int) {
		logger.Info("uploaded %d of %d test cases", completed, total)
	})
	if err != nil {
		return err
	}
	fmt.Println("all files and test cases have been uploaded")
	return nil
}

func (a *App) deleteRun(ctx *cli.Context) error {
	runID, err := intArg(ctx, 0, "RUN_ID")
	if err != nil {
		return err
	}
	s, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer s.close()
	if err := a.restoreIdentity(ctx, s); err != nil {
		return err
	}
	return s.download.DeleteDownloadedTestRun(runID)
}

func (a *App) resume(ctx *cli.Context) error {
	s, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer s.close()
	if err := a.restoreIdentity(ctx, s); err != nil {
		return err
	}
	path, err := s.storage.SavedSelectionPath()
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

func intArg(ctx *cli.Context, index int, name string) (int, error) {
	arg := ctx.Args().Get(index)
	if arg == "" {
		return 0, fmt.Errorf("missing %s argument", name)
	}
	value, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, arg)
	}
	return value, nil
}
