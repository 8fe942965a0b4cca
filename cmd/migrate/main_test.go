package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/dealer-ai-platform/pkg/logging"
)

type fakeMigrator struct {
	upErr   error
	steps   []int
	forced  int
	version uint
	verErr  error
	closed  bool
}

func (f *fakeMigrator) Up() error { return f.upErr }

func (f *fakeMigrator) Steps(n int) error {
	f.steps = append(f.steps, n)
	return nil
}

func (f *fakeMigrator) Force(version int) error {
	f.forced = version
	return nil
}

func (f *fakeMigrator) Version() (uint, bool, error) { return f.version, false, f.verErr }

func (f *fakeMigrator) Close() (error, error) {
	f.closed = true
	return nil, nil
}

func runCmd(t *testing.T, fake *fakeMigrator, args ...string) (string, error) {
	t.Helper()
	var urls []string
	open := func(databaseURL string) (migrator, error) {
		urls = append(urls, databaseURL)
		return fake, nil
	}
	cmd := newRootCmd(open, logging.Discard())
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(append([]string{"--database-url", "postgres://dealer@localhost/dealer"}, args...))
	err := cmd.Execute()
	if len(urls) > 0 {
		assert.Equal(t, "postgres://dealer@localhost/dealer", urls[0])
	}
	return out.String(), err
}

func TestUpIgnoresNoChange(t *testing.T) {
	fake := &fakeMigrator{upErr: migrate.ErrNoChange}
	_, err := runCmd(t, fake, "up")
	require.NoError(t, err)
	assert.True(t, fake.closed)
}

func TestUpPropagatesFailure(t *testing.T) {
	_, err := runCmd(t, &fakeMigrator{upErr: errors.New("dirty database")}, "up")
	assert.ErrorContains(t, err, "dirty database")
}

func TestDownSteps(t *testing.T) {
	fake := &fakeMigrator{}
	_, err := runCmd(t, fake, "down")
	require.NoError(t, err)
	_, err = runCmd(t, fake, "down", "2")
	require.NoError(t, err)
	assert.Equal(t, []int{-1, -2}, fake.steps)

	_, err = runCmd(t, fake, "down", "zero")
	assert.Error(t, err)
}

func TestForceAndVersion(t *testing.T) {
	fake := &fakeMigrator{version: 3}
	_, err := runCmd(t, fake, "force", "2")
	require.NoError(t, err)
	assert.Equal(t, 2, fake.forced)

	out, err := runCmd(t, fake, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "version 3 dirty=false")

	out, err = runCmd(t, &fakeMigrator{verErr: migrate.ErrNilVersion}, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "no migrations applied")
}

func TestRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	cmd := newRootCmd(func(string) (migrator, error) {
		t.Fatal("open must not be called without a URL")
		return nil, nil
	}, logging.Discard())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"up"})
	assert.ErrorContains(t, cmd.Execute(), "DATABASE_URL is required")
}
