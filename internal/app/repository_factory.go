package app

import (
	"fmt"

	"github.com/sohel7709/pathlab/internal/shared/infrastructure/database"
	"github.com/sohel7709/pathlab/internal/shared/infrastructure/outbox"
	"github.com/sohel7709/pathlab/internal/subscription/domain"
	"github.com/sohel7709/pathlab/internal/subscription/infrastructure/persistence"
)

// Repositories is the persistence the lifecycle services run on, all bound
// to one connection.
type Repositories struct {
	Plans         domain.PlanRepository
	Subscriptions domain.SubscriptionRepository
	Labs          domain.LabRepository
	Outbox        outbox.Repository
}

type repositoryConstructors struct {
	plans         func(database.Connection) domain.PlanRepository
	subscriptions func(database.Connection) domain.SubscriptionRepository
	labs          func(database.Connection) domain.LabRepository
	outbox        func(database.Connection) outbox.Repository
}

var repositoriesByDriver = map[database.Driver]repositoryConstructors{
	database.DriverPostgres: {
		plans: func(c database.Connection) domain.PlanRepository { return persistence.NewPostgresPlanRepository(c) },
		subscriptions: func(c database.Connection) domain.SubscriptionRepository {
			return persistence.NewPostgresSubscriptionRepository(c)
		},
		labs:   func(c database.Connection) domain.LabRepository { return persistence.NewPostgresLabRepository(c) },
		outbox: func(c database.Connection) outbox.Repository { return outbox.NewPostgresRepository(c) },
	},
	database.DriverSQLite: {
		plans: func(c database.Connection) domain.PlanRepository { return persistence.NewSQLitePlanRepository(c) },
		subscriptions: func(c database.Connection) domain.SubscriptionRepository {
			return persistence.NewSQLiteSubscriptionRepository(c)
		},
		labs:   func(c database.Connection) domain.LabRepository { return persistence.NewSQLiteLabRepository(c) },
		outbox: func(c database.Connection) outbox.Repository { return outbox.NewSQLiteRepository(c) },
	},
}

// NewRepositories builds the repositories matching conn's driver.
func NewRepositories(conn database.Connection) (Repositories, error) {
	ctor, ok := repositoriesByDriver[conn.Driver()]
	if !ok {
		return Repositories{}, fmt.Errorf("no repositories for database driver %s", conn.Driver())
	}
	return Repositories{
		Plans:         ctor.plans(conn),
		Subscriptions: ctor.subscriptions(conn),
		Labs:          ctor.labs(conn),
		Outbox:        ctor.outbox(conn),
	}, nil
}
