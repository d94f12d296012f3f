package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-docs-api/internal/models"
	"github.com/noah-isme/sma-docs-api/internal/service"
)

type fakeBackend struct {
	migrated bool
	drained  int
	drainErr error
	orgReq   service.CreateOrganizationRequest
	closed   bool
}

func (f *fakeBackend) Migrate(context.Context) error {
	f.migrated = true
	return nil
}

func (f *fakeBackend) DrainOutbox(context.Context) (int, error) {
	return f.drained, f.drainErr
}

func (f *fakeBackend) CreateOrganization(_ context.Context, req service.CreateOrganizationRequest) (*models.Organization, error) {
	f.orgReq = req
	return &models.Organization{ID: "org-1", Name: req.Name, Code: "acme_school"}, nil
}

func (f *fakeBackend) Close() { f.closed = true }

func runCommand(t *testing.T, be *fakeBackend, args ...string) (string, error) {
	t.Helper()
	root := buildRootCmd(func(context.Context) (backend, error) { return be, nil })
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestMigrateCommand(t *testing.T) {
	be := &fakeBackend{}
	out, err := runCommand(t, be, "migrate")

	require.NoError(t, err)
	assert.True(t, be.migrated)
	assert.True(t, be.closed)
	assert.Contains(t, out, "schema applied")
}

func TestOutboxDrainCommand(t *testing.T) {
	be := &fakeBackend{drained: 3}
	out, err := runCommand(t, be, "outbox", "drain")

	require.NoError(t, err)
	assert.Contains(t, out, "processed 3 outbox tasks")

	_, err = runCommand(t, &fakeBackend{drainErr: errors.New("claim failed")}, "outbox", "drain")
	assert.EqualError(t, err, "claim failed")
}

func TestOrgCreateCommand(t *testing.T) {
	be := &fakeBackend{}
	out, err := runCommand(t, be, "org", "create", "Acme School!", "--description", "main campus")

	require.NoError(t, err)
	assert.Equal(t, "Acme School!", be.orgReq.Name)
	require.NotNil(t, be.orgReq.Description)
	assert.Equal(t, "main campus", *be.orgReq.Description)
	assert.Contains(t, out, `"acme_school"`)

	_, err = runCommand(t, &fakeBackend{}, "org", "create")
	assert.Error(t, err)
}
