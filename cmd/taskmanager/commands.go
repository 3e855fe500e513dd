package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/phrazzld/taskmanager/internal/domain"
	"github.com/phrazzld/taskmanager/internal/redact"
	"github.com/phrazzld/taskmanager/internal/service"
)

// dateLayout is the due date format accepted and printed by the console.
const dateLayout = "2006-01-02"

// errQuit ends the command loop.
var errQuit = errors.New("quit")

type command struct {
	name  string
	args  string
	help  string
	nargs int
	admin bool
	run   func(ctx context.Context, args []string) error
}

func (app *application) commands() []command {
	return []command{
		{name: "tasks", help: "list tasks", run: app.cmdTasks},
		{name: "users", help: "list users", admin: true, run: app.cmdUsers},
		{name: "add-task", help: "create a task", admin: true, run: app.cmdAddTask},
		{name: "update-task", args: "CODE", nargs: 1, help: "edit a task", run: app.cmdUpdateTask},
		{name: "delete-task", args: "CODE", nargs: 1, help: "delete a task", admin: true, run: app.cmdDeleteTask},
		{name: "add-user", help: "create a user", admin: true, run: app.cmdAddUser},
		{name: "delete-user", args: "ID", nargs: 1, help: "delete a user", admin: true, run: app.cmdDeleteUser},
		{name: "status", help: "show session and hub connection", run: app.cmdStatus},
		{name: "refresh", help: "reload lists from the database", run: app.cmdRefresh},
		{name: "help", help: "show this help", run: app.cmdHelp},
		{name: "quit", help: "exit", run: func(context.Context, []string) error { return errQuit }},
	}
}

// parseCommand splits an input line into a lower-cased command name and
// its arguments.
func parseCommand(line string) (string, []string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}
	return strings.ToLower(fields[0]), fields[1:]
}

// serve runs the command loop until quit, end of input or ctx is done.
func (app *application) serve(ctx context.Context) error {
	app.console.printf("Type \"help\" for a list of commands.\n")
	for {
		line, err := app.console.ask(ctx, "> ")
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		name, args := parseCommand(line)
		if name == "" {
			continue
		}
		err = app.execute(ctx, name, args)
		switch {
		case errors.Is(err, errQuit):
			return nil
		case errors.Is(err, context.Canceled) && ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			app.console.printf("error: %s\n", redact.Error(err))
		}
	}
}

func (app *application) execute(ctx context.Context, name string, args []string) error {
	for _, cmd := range app.commands() {
		if cmd.name != name {
			continue
		}
		if cmd.admin && !app.session.IsAdmin {
			return service.ErrForbidden
		}
		if len(args) != cmd.nargs {
			return fmt.Errorf("usage: %s %s", cmd.name, cmd.args)
		}
		return cmd.run(ctx, args)
	}
	return fmt.Errorf("unknown command %q, type \"help\"", name)
}

// onLoop runs fn on the UI loop and returns its error.
func (app *application) onLoop(ctx context.Context, fn func() error) error {
	var err error
	if doErr := app.loop.Do(ctx, func() { err = fn() }); doErr != nil {
		return doErr
	}
	return err
}

func (app *application) cmdTasks(ctx context.Context, _ []string) error {
	return app.onLoop(ctx, func() error {
		app.console.write(renderTasks(app.taskList.Items()))
		return nil
	})
}

func (app *application) cmdUsers(ctx context.Context, _ []string) error {
	return app.onLoop(ctx, func() error {
		app.console.write(renderUsers(app.userList.Items()))
		return nil
	})
}

func (app *application) cmdAddTask(ctx context.Context, _ []string) error {
	assignees, err := app.users.Assignees(ctx)
	if err != nil {
		return err
	}
	app.console.printf("Assignees: %s\n", employeeCodes(assignees))

	task := &domain.Task{
		Status:       domain.StatusNotStarted,
		Priority:     domain.PriorityMedium,
		ReporterCode: app.session.EmployeeCode,
		CreatedAt:    time.Now().UTC(),
	}
	if task.Code, err = app.console.ask(ctx, "Code: "); err != nil {
		return err
	}
	if task.Title, err = app.console.ask(ctx, "Title: "); err != nil {
		return err
	}
	if task.Description, err = app.console.ask(ctx, "Description: "); err != nil {
		return err
	}
	if err := app.askPriority(ctx, task); err != nil {
		return err
	}
	if err := app.askDueDate(ctx, task); err != nil {
		return err
	}
	if task.ReporterCode, err = app.console.askDefault(ctx, "Reporter", task.ReporterCode); err != nil {
		return err
	}
	if task.AssigneeCode, err = app.console.ask(ctx, "Assignee: "); err != nil {
		return err
	}

	return app.onLoop(ctx, func() error {
		if err := app.tasks.Create(ctx, app.session, task); err != nil {
			return err
		}
		app.console.printf("Task %s created.\n", task.Code)
		return nil
	})
}

func (app *application) cmdUpdateTask(ctx context.Context, args []string) error {
	task, err := app.tasks.Get(ctx, app.session, args[0])
	if err != nil {
		return err
	}

	if app.session.IsAdmin {
		if task.Title, err = app.console.askDefault(ctx, "Title", task.Title); err != nil {
			return err
		}
	}
	if task.Description, err = app.console.askDefault(ctx, "Description", task.Description); err != nil {
		return err
	}
	if err := app.askStatus(ctx, task); err != nil {
		return err
	}
	if app.session.IsAdmin {
		if err := app.askPriority(ctx, task); err != nil {
			return err
		}
		if err := app.askDueDate(ctx, task); err != nil {
			return err
		}
		if task.ReporterCode, err = app.console.askDefault(ctx, "Reporter", task.ReporterCode); err != nil {
			return err
		}
		if task.AssigneeCode, err = app.console.askDefault(ctx, "Assignee", task.AssigneeCode); err != nil {
			return err
		}
	}

	return app.onLoop(ctx, func() error {
		if err := app.tasks.Update(ctx, app.session, task); err != nil {
			return err
		}
		app.console.printf("Task %s updated.\n", task.Code)
		return nil
	})
}

func (app *application) cmdDeleteTask(ctx context.Context, args []string) error {
	code := args[0]
	ok, err := app.confirm(ctx, fmt.Sprintf("Delete task %s?", code))
	if err != nil || !ok {
		return err
	}
	return app.onLoop(ctx, func() error {
		if err := app.tasks.Delete(ctx, app.session, code); err != nil {
			return err
		}
		app.console.printf("Task %s deleted.\n", code)
		return nil
	})
}

func (app *application) cmdAddUser(ctx context.Context, _ []string) error {
	var (
		in  service.NewUserInput
		err error
	)
	if in.EmployeeCode, err = app.console.ask(ctx, "Employee code: "); err != nil {
		return err
	}
	if in.Username, err = app.console.ask(ctx, "Username: "); err != nil {
		return err
	}
	if in.Password, err = app.console.ask(ctx, "Password: "); err != nil {
		return err
	}
	if in.DisplayName, err = app.console.ask(ctx, "Display name: "); err != nil {
		return err
	}
	if in.Email, err = app.console.ask(ctx, "Email: "); err != nil {
		return err
	}
	if in.IsAdmin, err = app.confirm(ctx, "Administrator?"); err != nil {
		return err
	}

	return app.onLoop(ctx, func() error {
		user, err := app.users.Create(ctx, app.session, in)
		if err != nil {
			return err
		}
		app.console.printf("User %s created with ID %d.\n", user.Username, user.ID)
		return nil
	})
}

func (app *application) cmdDeleteUser(ctx context.Context, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid user ID %q", args[0])
	}
	ok, err := app.confirm(ctx, fmt.Sprintf("Delete user %d?", id))
	if err != nil || !ok {
		return err
	}
	return app.onLoop(ctx, func() error {
		if err := app.users.Delete(ctx, app.session, id); err != nil {
			return err
		}
		app.console.printf("User %d deleted.\n", id)
		return nil
	})
}

func (app *application) cmdStatus(ctx context.Context, _ []string) error {
	role := "user"
	if app.session.IsAdmin {
		role = "administrator"
	}
	app.console.printf("Signed in as %s (%s, %s)\n", app.session.Username, app.session.EmployeeCode, role)

	app.mu.Lock()
	client := app.client
	app.mu.Unlock()
	if client != nil {
		state := client.State().String()
		if id := client.ConnectionID(); id != "" {
			state += " as " + id
		}
		app.console.printf("Hub %s: %s\n", redact.URL(app.config.Client.HubURL), state)
	}

	return app.onLoop(ctx, func() error {
		app.console.printf("Tasks: %d\n", app.taskList.Len())
		if app.userList != nil {
			app.console.printf("Users: %d\n", app.userList.Len())
		}
		return nil
	})
}

func (app *application) cmdRefresh(ctx context.Context, _ []string) error {
	return app.onLoop(ctx, func() error {
		return app.reloadViews(ctx)
	})
}

func (app *application) cmdHelp(context.Context, []string) error {
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	for _, cmd := range app.commands() {
		if cmd.admin && !app.session.IsAdmin {
			continue
		}
		fmt.Fprintf(tw, "  %s %s\t%s\n", cmd.name, cmd.args, cmd.help)
	}
	_ = tw.Flush()
	app.console.write(buf.Bytes())
	return nil
}

func (app *application) confirm(ctx context.Context, question string) (bool, error) {
	answer, err := app.console.ask(ctx, question+" [y/N]: ")
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes", nil
}

func (app *application) askStatus(ctx context.Context, task *domain.Task) error {
	answer, err := app.console.askDefault(ctx, "Status (Not Started, In Progress, Completed)", task.Status.String())
	if err != nil {
		return err
	}
	task.Status, err = domain.ParseTaskStatus(answer)
	return err
}

func (app *application) askPriority(ctx context.Context, task *domain.Task) error {
	answer, err := app.console.askDefault(ctx, "Priority (High, Medium, Low)", task.Priority.String())
	if err != nil {
		return err
	}
	task.Priority, err = domain.ParseTaskPriority(answer)
	return err
}

// askDueDate accepts a date, an empty answer to keep the current one, or
// "-" to clear it.
func (app *application) askDueDate(ctx context.Context, task *domain.Task) error {
	answer, err := app.console.askDefault(ctx, "Due date (YYYY-MM-DD, - for none)", formatDate(task.DueDate))
	if err != nil {
		return err
	}
	due, err := parseDueDate(answer)
	if err != nil {
		return err
	}
	task.DueDate = due
	return nil
}

func parseDueDate(s string) (*time.Time, error) {
	if s == "" || s == "-" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, fmt.Errorf("invalid due date %q, want YYYY-MM-DD", s)
	}
	return &t, nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(dateLayout)
}

func renderTasks(tasks []domain.Task) []byte {
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tTITLE\tSTATUS\tPRIORITY\tDUE\tREPORTER\tASSIGNEE")
	for _, t := range tasks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.Code, t.Title, t.Status, t.Priority, formatDate(t.DueDate),
			person(t.ReporterCode, t.ReporterName), person(t.AssigneeCode, t.AssigneeName))
	}
	_ = tw.Flush()
	fmt.Fprintf(&buf, "%d task(s)\n", len(tasks))
	return buf.Bytes()
}

func renderUsers(users []domain.User) []byte {
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCODE\tUSERNAME\tNAME\tROLE\tACTIVE")
	for _, u := range users {
		role := "user"
		if u.IsAdmin {
			role = "admin"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%t\n", u.ID, u.EmployeeCode, u.Username, u.DisplayName, role, u.IsActive)
	}
	_ = tw.Flush()
	fmt.Fprintf(&buf, "%d user(s)\n", len(users))
	return buf.Bytes()
}

func person(code, name string) string {
	if name == "" {
		return code
	}
	return fmt.Sprintf("%s (%s)", name, code)
}

func employeeCodes(users []domain.User) string {
	if len(users) == 0 {
		return "(none)"
	}
	parts := make([]string, len(users))
	for i, u := range users {
		parts[i] = person(u.EmployeeCode, u.DisplayName)
	}
	return strings.Join(parts, ", ")
}
