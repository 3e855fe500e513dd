package service_test

import (
	"database/sql"
	"testing"

	"github.com/phrazzld/taskmanager/internal/domain"
	"github.com/phrazzld/taskmanager/internal/mocks"
	"github.com/phrazzld/taskmanager/internal/platform/postgres"
	"github.com/phrazzld/taskmanager/internal/service"
	"github.com/phrazzld/taskmanager/internal/service/auth"
	"github.com/phrazzld/taskmanager/internal/testutils"
)

type fixture struct {
	db       *sql.DB
	tasks    *service.TaskService
	users    *service.UserService
	notifier *mocks.MockNotifier

	taskStore *postgres.PostgresTaskStore
	userStore *postgres.PostgresUserStore

	admin     domain.Session
	worker    domain.Session
	bystander domain.Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutils.NewSQLiteDB(t)
	log := testutils.DiscardLogger()
	taskStore := postgres.NewPostgresTaskStore(db, log)
	userStore := postgres.NewPostgresUserStore(db, log)
	n := &mocks.MockNotifier{}

	admin := testutils.MustInsertUser(t, db, domain.User{
		Username: "ada", EmployeeCode: "E001", DisplayName: "Ada Admin", IsAdmin: true, IsActive: true,
	})
	worker := testutils.MustInsertUser(t, db, domain.User{
		Username: "bob", EmployeeCode: "E002", DisplayName: "Bob Builder", IsActive: true,
	})
	bystander := testutils.MustInsertUser(t, db, domain.User{
		Username: "cat", EmployeeCode: "E003", DisplayName: "Cat", IsActive: true,
	})
	testutils.MustInsertUser(t, db, domain.User{
		Username: "old", EmployeeCode: "E004", DisplayName: "Old Timer", IsActive: false,
	})

	return &fixture{
		db:        db,
		tasks:     service.NewTaskService(taskStore, userStore, db, n, log),
		users:     service.NewUserService(userStore, auth.NewBcryptVerifier(4), db, n, log),
		notifier:  n,
		taskStore: taskStore,
		userStore: userStore,
		admin:     domain.SessionFor(&admin),
		worker:    domain.SessionFor(&worker),
		bystander: domain.SessionFor(&bystander),
	}
}

func newTask(code, assignee string) *domain.Task {
	return &domain.Task{
		Code:         code,
		Title:        "Title " + code,
		Status:       domain.StatusNotStarted,
		Priority:     domain.PriorityMedium,
		ReporterCode: "E001",
		AssigneeCode: assignee,
	}
}

func newUserStore(db *sql.DB) *postgres.PostgresUserStore {
	return postgres.NewPostgresUserStore(db, testutils.DiscardLogger())
}
