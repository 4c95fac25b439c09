package options

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ProjectsFile, "\ufeffProjA;Premier projet\r\nProjB\r\n\r\nProjC;Troisième;extra\n")
	writeFile(t, dir, ServicesFile, "Conseil\nN/A\n  Formation  \n")

	opts, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, []Project{
		{Name: "ProjA", Description: "Premier projet"},
		{Name: "ProjB"},
		{Name: "ProjC", Description: "Troisième;extra"},
	}, opts.Projects)
	assert.Equal(t, []Service{
		{Name: "Conseil"},
		{Name: "N/A", Selected: true},
		{Name: "Formation"},
	}, opts.Services)
}

func TestLoadMissingFileLeavesListEmpty(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ServicesFile, "N/A\n")

	opts, err := Load(dir)
	require.ErrorIs(t, err, ErrLoad)
	assert.Empty(t, opts.Projects)
	assert.Len(t, opts.Services, 1)
}

func TestLoadAggregatesFailures(t *testing.T) {
	opts, err := Load(t.TempDir())
	require.Error(t, err)

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 2)
	for _, e := range merr.Errors {
		assert.ErrorIs(t, e, ErrLoad)
	}
	assert.Empty(t, opts.Projects)
	assert.Empty(t, opts.Services)
}

func TestWatcherReloads(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ProjectsFile, "ProjA;a\n")
	writeFile(t, dir, ServicesFile, "N/A\n")

	changed := make(chan Options, 8)
	w := NewWatcher(dir, func(o Options) { changed <- o })
	first := <-changed
	assert.Len(t, first.Projects, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, dir, ProjectsFile, "ProjA;a\nProjB;b\n")

	select {
	case o := <-changed:
		assert.Len(t, o.Projects, 2)
	case <-time.After(5 * time.Second):
		t.Fatal("options were not reloaded")
	}
	opts, err := w.Options()
	require.NoError(t, err)
	assert.Len(t, opts.Projects, 2)
}
