package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/spf13/pflag"

	"github.com/phrazzld/taskmanager/internal/config"
	"github.com/phrazzld/taskmanager/internal/domain"
	"github.com/phrazzld/taskmanager/internal/hub"
	"github.com/phrazzld/taskmanager/internal/hubserver"
	"github.com/phrazzld/taskmanager/internal/notify"
	"github.com/phrazzld/taskmanager/internal/platform/logger"
	"github.com/phrazzld/taskmanager/internal/platform/postgres"
	"github.com/phrazzld/taskmanager/internal/service"
	"github.com/phrazzld/taskmanager/internal/service/auth"
	"github.com/phrazzld/taskmanager/internal/store"
	"github.com/phrazzld/taskmanager/internal/ui"
	"github.com/phrazzld/taskmanager/internal/view"
)

// application holds the console process dependencies. Everything after
// login lives in the session fields and is torn down by closeSession.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	taskStore store.TaskStore
	userStore store.UserStore

	verifier      *auth.BcryptVerifier
	authenticator *auth.Authenticator
	jwtService    auth.JWTService

	loop    *ui.Loop
	console *console

	mu        sync.Mutex
	session   domain.Session
	client    *notify.Client
	tasks     *service.TaskService
	users     *service.UserService
	taskList  *view.TaskList
	userList  *view.UserList
	scheduler *cron.Cron
}

// newApplication wires the stores and authentication. The UI loop is
// created but not started.
func newApplication(cfg *config.Config, log *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: log,
		db:     db,
		loop:   ui.NewLoop(log),
	}

	app.taskStore = postgres.NewPostgresTaskStore(db, log)
	app.userStore = postgres.NewPostgresUserStore(db, log)

	app.verifier = auth.NewBcryptVerifier(cfg.Auth.BCryptCost)
	app.authenticator = auth.NewAuthenticator(app.userStore, app.verifier, log)

	if cfg.Auth.JWTSecret != "" {
		var err error
		app.jwtService, err = auth.NewJWTService(cfg.Auth)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
		}
	}
	return app, nil
}

// bootstrap creates the configured administrator on an empty database.
func (app *application) bootstrap(ctx context.Context) error {
	b := app.config.Bootstrap
	users := service.NewUserService(app.userStore, app.verifier, app.db, nil, app.logger)
	created, err := users.EnsureAdmin(ctx, service.NewUserInput{
		EmployeeCode: b.AdminEmployeeCode,
		Username:     b.AdminUsername,
		Password:     b.AdminPassword,
		DisplayName:  b.AdminDisplayName,
	})
	if err != nil {
		return err
	}
	if created {
		app.logger.Info("created bootstrap administrator", "username", b.AdminUsername)
	}
	return nil
}

// openSession builds everything that depends on the logged-in user: the
// hub client, the services that notify through it, the live views and the
// periodic resync. It does not connect; call connect afterwards.
func (app *application) openSession(ctx context.Context, session domain.Session) error {
	client, err := app.newClient(ctx, session)
	if err != nil {
		return err
	}

	tasks := service.NewTaskService(app.taskStore, app.userStore, app.db, client, app.logger)
	users := service.NewUserService(app.userStore, app.verifier, app.db, client, app.logger)

	var (
		taskList *view.TaskList
		userList *view.UserList
	)
	var loadErr error
	err = app.loop.Do(ctx, func() {
		taskList, loadErr = view.NewTaskList(ctx, client, tasks, session, app.logger)
		if loadErr != nil || !session.IsAdmin {
			return
		}
		userList, loadErr = view.NewUserList(ctx, client, users, app.logger)
	})
	if err = errors.Join(err, loadErr); err != nil {
		if taskList != nil {
			taskList.Close()
		}
		_ = client.Close(ctx)
		return err
	}

	if app.console != nil {
		taskList.OnReplaced(func(items []domain.Task) {
			app.console.notice("task list refreshed (%d task(s))", len(items))
		})
		if userList != nil {
			userList.OnReplaced(func(items []domain.User) {
				app.console.notice("user list refreshed (%d user(s))", len(items))
			})
		}
	}

	app.mu.Lock()
	app.session = session
	app.client = client
	app.tasks = tasks
	app.users = users
	app.taskList = taskList
	app.userList = userList
	app.mu.Unlock()

	return app.startScheduler()
}

func (app *application) newClient(ctx context.Context, session domain.Session) (*notify.Client, error) {
	opts := notify.Options{
		URL:                  app.config.Client.HubURL,
		Dispatcher:           app.loop,
		Logger:               app.logger,
		DialTimeout:          app.config.Client.DialTimeout,
		WriteTimeout:         app.config.Client.WriteTimeout,
		ServerTimeout:        app.config.Client.ServerTimeout,
		ReconnectBase:        app.config.Client.ReconnectBase,
		ReconnectMax:         app.config.Client.ReconnectMax,
		MaxReconnectAttempts: app.config.Client.MaxReconnectAttempts,
		ResyncOnReconnect:    app.config.Client.ResyncOnReconnect,
	}
	if app.jwtService != nil {
		token, err := app.jwtService.GenerateToken(ctx, session)
		if err != nil {
			return nil, err
		}
		opts.AccessToken = token
	}
	client, err := notify.New(opts)
	if err != nil {
		return nil, fmt.Errorf("creating hub client: %w", err)
	}
	client.OnStateChange(func(s notify.State) {
		app.logger.Debug("hub connection state changed", "state", s.String())
	})
	return client, nil
}

// startScheduler reloads the views on the configured cron schedule, as a
// safety net for signals missed while the hub was unreachable.
func (app *application) startScheduler() error {
	schedule := app.config.Client.ResyncSchedule
	if schedule == "" {
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		app.loop.Post(func() { app.reloadViews(context.Background()) })
	})
	if err != nil {
		return fmt.Errorf("scheduling resync %q: %w", schedule, err)
	}
	c.Start()

	app.mu.Lock()
	app.scheduler = c
	app.mu.Unlock()
	app.logger.Info("periodic resync scheduled", "schedule", schedule)
	return nil
}

// reloadViews must run on the UI loop.
func (app *application) reloadViews(ctx context.Context) error {
	app.mu.Lock()
	taskList, userList := app.taskList, app.userList
	app.mu.Unlock()

	var errs []error
	if taskList != nil {
		errs = append(errs, taskList.Reload(ctx))
	}
	if userList != nil {
		errs = append(errs, userList.Reload(ctx))
	}
	return errors.Join(errs...)
}

// connect starts the hub client. Connection problems are logged by the
// client and never returned, so this is safe to run in the background.
func (app *application) connect(ctx context.Context) {
	app.mu.Lock()
	client := app.client
	app.mu.Unlock()
	if client == nil {
		return
	}
	if err := client.Start(ctx); err != nil {
		app.logger.Error("hub client not started", "error", err)
	}
}

// closeSession releases everything openSession created.
func (app *application) closeSession(ctx context.Context) {
	app.mu.Lock()
	client, scheduler := app.client, app.scheduler
	taskList, userList := app.taskList, app.userList
	app.client, app.scheduler = nil, nil
	app.taskList, app.userList = nil, nil
	app.mu.Unlock()

	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
	if taskList != nil {
		taskList.Close()
	}
	if userList != nil {
		userList.Close()
	}
	if client != nil {
		if err := client.Close(ctx); err != nil {
			app.logger.Warn("hub client close", "error", err)
		}
	}
}

// hostHub runs a hub inside this process on the configured address. The
// returned function stops it and waits for shutdown to finish.
func (app *application) hostHub(ctx context.Context) (func(), error) {
	h := hub.New(hubserver.HubOptions(app.config.Hub), app.logger)
	router := hubserver.NewRouter(h, app.jwtService, app.config.Hub.AllowedOrigins, app.logger)
	server := hubserver.NewServer(app.config.Client.HostAddr, h, router, app.config.Server.ShutdownTimeout, app.logger)

	ln, err := server.Listen()
	if err != nil {
		return nil, err
	}

	serveCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := server.Serve(serveCtx, ln); err != nil {
			app.logger.Error("in-process hub stopped", "error", err)
		}
	}()

	return func() {
		cancel()
		<-done
	}, nil
}

const maxLoginAttempts = 3

// errTooManyAttempts ends the process after repeated failed logins.
var errTooManyAttempts = errors.New("too many failed login attempts")

// login authenticates the console user. In debug mode the configured user
// is signed in without a password.
func (app *application) login(ctx context.Context) (domain.Session, error) {
	if app.config.Debug.Enabled {
		session, err := app.authenticator.Session(ctx, app.config.Debug.Username)
		if err != nil {
			return domain.Session{}, fmt.Errorf("debug auto-login as %q: %w", app.config.Debug.Username, err)
		}
		return session, nil
	}

	for attempt := 1; attempt <= maxLoginAttempts; attempt++ {
		username, err := app.console.ask(ctx, "Username: ")
		if err != nil {
			return domain.Session{}, err
		}
		password, err := app.console.ask(ctx, "Password: ")
		if err != nil {
			return domain.Session{}, err
		}

		loginCtx, cancel := context.WithTimeout(ctx, app.config.Auth.LoginTimeout)
		session, err := app.authenticator.Login(loginCtx, username, password)
		cancel()

		switch {
		case err == nil:
			app.console.printf("Welcome, %s.\n", session.DisplayName)
			return session, nil
		case errors.Is(err, auth.ErrEmptyCredentials), errors.Is(err, auth.ErrInvalidCredentials):
			app.console.printf("%s\n", err)
		default:
			return domain.Session{}, err
		}
	}
	return domain.Session{}, errTooManyAttempts
}

func parseFlags(args []string, out io.Writer) (*pflag.FlagSet, error) {
	flags := pflag.NewFlagSet("taskmanager", pflag.ContinueOnError)
	flags.SetOutput(out)
	flags.Usage = func() {
		fmt.Fprintln(out, "Usage: taskmanager [flags]")
		fmt.Fprintln(out, "       taskmanager [flags] migrate up|down|status")
		fmt.Fprintln(out)
		flags.PrintDefaults()
	}
	config.RegisterFlags(flags)
	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	return flags, nil
}

// run is the whole console process: configuration, database, login, the
// live session and the command loop. It returns when the user quits, input
// ends or ctx is canceled.
func run(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	flags, err := parseFlags(args, out)
	if err != nil {
		return err
	}

	loader := config.NewLoader(config.OptionsFromFlags(flags))
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, closer, err := logger.Setup(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}
	defer closeQuietly(closer)

	if loader.Watch(func(next *config.Config, err error) {
		if err != nil {
			log.Warn("ignoring invalid config change", "error", err)
			return
		}
		logger.SetLevel(log, next.Log.Level)
	}) {
		log.Debug("watching config file for log level changes")
	}

	if rest := flags.Args(); len(rest) > 0 {
		if rest[0] != "migrate" {
			return fmt.Errorf("unknown command %q", rest[0])
		}
		return runMigrate(ctx, cfg, log, rest[1:], out)
	}

	db, _, err := openDatabase(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer closeQuietly(db)

	app, err := newApplication(cfg, log, db)
	if err != nil {
		return err
	}
	if err := app.bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrapping administrator: %w", err)
	}
	app.console = newConsole(in, out)

	loopCtx, stopLoop := context.WithCancel(context.Background())
	go app.loop.Run(loopCtx)
	defer func() {
		stopLoop()
		<-app.loop.Done()
	}()

	if cfg.Client.HostHub {
		stopHub, err := app.hostHub(ctx)
		if err != nil {
			return fmt.Errorf("hosting hub: %w", err)
		}
		defer stopHub()
	}

	session, err := app.login(ctx)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		app.closeSession(closeCtx)
	}()
	if err := app.openSession(ctx, session); err != nil {
		return err
	}

	go app.connect(ctx)

	return app.serve(ctx)
}

func closeQuietly(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}
