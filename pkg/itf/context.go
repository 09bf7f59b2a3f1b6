package itf

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pipetrak/pipetrak/pkg/application"
	"github.com/pipetrak/pipetrak/pkg/composables"
)

// TestContext provides a fluent API for building test contexts
type TestContext struct {
	ctx     context.Context
	pool    *pgxpool.Pool
	tx      pgx.Tx
	app     application.Application
	actor   uuid.UUID
	modules []application.Module
	dbName  string
}

// NewTestContext creates a new TestContext builder
func NewTestContext() *TestContext {
	return &TestContext{
		ctx:     context.Background(),
		actor:   uuid.New(),
		modules: []application.Module{},
	}
}

// WithModules adds extra modules on top of the built-in set
func (tc *TestContext) WithModules(modules ...application.Module) *TestContext {
	tc.modules = append(tc.modules, modules...)
	return tc
}

// WithActor sets the acting operator for the test context
func (tc *TestContext) WithActor(id uuid.UUID) *TestContext {
	tc.actor = id
	return tc
}

// WithDBName sets a custom database name
func (tc *TestContext) WithDBName(tb testing.TB, name string) *TestContext {
	tb.Helper()
	if tc.dbName == "" {
		tc.dbName = name
	}
	return tc
}

// Build creates the test context with all dependencies
func (tc *TestContext) Build(tb testing.TB) *TestEnvironment {
	tb.Helper()

	if tc.dbName == "" {
		tc.dbName = tb.Name()
	}

	CreateDB(tc.dbName)
	tc.pool = NewPool(DbOpts(tc.dbName))

	app, err := SetupApplication(tc.pool, tc.modules...)
	if err != nil {
		tb.Fatal(err)
	}
	tc.app = app

	tx, err := tc.pool.Begin(tc.ctx)
	if err != nil {
		tb.Fatal(err)
	}
	tc.tx = tx

	tc.ctx = tc.buildContext()

	tb.Cleanup(func() {
		if err := tx.Rollback(tc.ctx); err != nil && err != pgx.ErrTxClosed {
			tb.Logf("Warning: failed to rollback transaction: %v", err)
		}
		tc.pool.Close()
	})

	return &TestEnvironment{
		Ctx:   tc.ctx,
		Pool:  tc.pool,
		Tx:    tc.tx,
		App:   tc.app,
		Actor: tc.actor,
	}
}

func (tc *TestContext) buildContext() context.Context {
	ctx := tc.ctx
	ctx = composables.WithPool(ctx, tc.pool)
	ctx = composables.WithTx(ctx, tc.tx)
	ctx = composables.WithActorID(ctx, tc.actor)
	ctx = composables.WithParams(ctx, DefaultParams())
	return ctx
}

// TestEnvironment contains all test dependencies
type TestEnvironment struct {
	Ctx   context.Context
	Pool  *pgxpool.Pool
	Tx    pgx.Tx
	App   application.Application
	Actor uuid.UUID
}

// Service retrieves a service from the application
func (te *TestEnvironment) Service(service interface{}) interface{} {
	return te.App.Service(service)
}

// GetService is a generic helper that retrieves and casts a service
func GetService[T any](te *TestEnvironment) *T {
	var zero T
	service := te.App.Service(zero)
	if service == nil {
		return nil
	}
	return service.(*T)
}

// AssertNoError fails the test if err is not nil
func (te *TestEnvironment) AssertNoError(tb testing.TB, err error) {
	tb.Helper()
	if err != nil {
		tb.Fatal(err)
	}
}

// WithTx returns a new context with the test transaction
func (te *TestEnvironment) WithTx(ctx context.Context) context.Context {
	return composables.WithTx(ctx, te.Tx)
}
