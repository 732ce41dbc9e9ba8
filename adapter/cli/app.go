package cli

import (
	"context"

	"github.com/google/uuid"

	"github.com/sohel7709/pathlab/internal/subscription/application"
	"github.com/sohel7709/pathlab/internal/subscription/application/workers"
)

// OutboxDrainer publishes pending outbox messages once.
type OutboxDrainer interface {
	ProcessOnce(ctx context.Context) error
}

// App holds the CLI application dependencies.
type App struct {
	Lifecycle    *application.LifecycleService
	Entitlements *application.EntitlementService
	SweepWorker  *workers.ExpirySweepWorker

	// Outbox is drained after each command so local runs deliver their events
	// without a worker. Nil leaves delivery to the worker.
	Outbox OutboxDrainer

	// Current lab (configured per environment)
	CurrentLabID uuid.UUID
}

// NewApp creates a new CLI application with the provided services.
func NewApp(
	lifecycle *application.LifecycleService,
	entitlements *application.EntitlementService,
	sweepWorker *workers.ExpirySweepWorker,
) *App {
	return &App{
		Lifecycle:    lifecycle,
		Entitlements: entitlements,
		SweepWorker:  sweepWorker,
		CurrentLabID: uuid.Nil,
	}
}

// SetCurrentLabID updates the current lab ID.
func (a *App) SetCurrentLabID(id uuid.UUID) {
	a.CurrentLabID = id
}

// SetOutbox sets the outbox drained after each command.
func (a *App) SetOutbox(outbox OutboxDrainer) {
	a.Outbox = outbox
}

// app is the global CLI application instance
var app *App

// SetApp sets the global CLI application instance.
func SetApp(a *App) {
	app = a
}

// GetApp returns the global CLI application instance.
func GetApp() *App {
	return app
}
