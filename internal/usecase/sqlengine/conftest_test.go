package sqlengine

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/talkdb/internal/domain"
)

type fakeGenerator struct {
	reply   string
	err     error
	prompts []domain.Prompt
}

func (f *fakeGenerator) Generate(_ context.Context, p domain.Prompt) (string, error) {
	f.prompts = append(f.prompts, p)
	return f.reply, f.err
}

// gatedGenerator blocks until gate is closed, signalling started first.
type gatedGenerator struct {
	reply   string
	started chan struct{}
	gate    chan struct{}
}

func newGatedGenerator(reply string) *gatedGenerator {
	return &gatedGenerator{reply: reply, started: make(chan struct{}, 1), gate: make(chan struct{})}
}

func (g *gatedGenerator) Generate(context.Context, domain.Prompt) (string, error) {
	g.started <- struct{}{}
	<-g.gate
	return g.reply, nil
}

// mockOpener hands out sqlmock pools in order and records what was asked for.
type mockOpener struct {
	t      *testing.T
	mocks  []sqlmock.Sqlmock
	opened []string
}

func (o *mockOpener) open(_ context.Context, driverName, conn string) (*sql.DB, error) {
	o.t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(o.t, err)
	o.mocks = append(o.mocks, mock)
	o.opened = append(o.opened, driverName+"|"+conn)
	return db, nil
}

func newTestRegistry(t *testing.T, gen Generator) (*Registry, *mockOpener) {
	t.Helper()
	o := &mockOpener{t: t}
	return NewRegistry(o.open, gen, 2, 0, nil), o
}
