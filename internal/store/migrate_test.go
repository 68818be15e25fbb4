package store

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExec struct {
	applied map[int]string
	ran     []int
	failOn  int
}

func (f *fakeExec) EnsureTable(context.Context) error { return nil }

func (f *fakeExec) Applied(context.Context) (map[int]string, error) {
	out := make(map[int]string, len(f.applied))
	for k, v := range f.applied {
		out[k] = v
	}
	return out, nil
}

func (f *fakeExec) Apply(_ context.Context, m Migration) error {
	if m.Version == f.failOn {
		return errors.New("syntax error")
	}
	f.ran = append(f.ran, m.Version)
	f.applied[m.Version] = m.Checksum
	return nil
}

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"m/0002_wallets.sql": {Data: []byte("CREATE TABLE wallets();")},
		"m/0001_init.sql":    {Data: []byte("CREATE TABLE accounts();")},
		"m/README.md":        {Data: []byte("ignored")},
	}
}

func TestParseMigrationsSorted(t *testing.T) {
	ms, err := NewMigrator(testFS(), "m").ParseMigrations()
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, 1, ms[0].Version)
	assert.Equal(t, "init", ms[0].Name)
	assert.Len(t, ms[0].Checksum, 64)
	assert.Equal(t, 2, ms[1].Version)
}

func TestParseMigrationsDuplicateVersion(t *testing.T) {
	fsys := testFS()
	fsys["m/0001_other.sql"] = &fstest.MapFile{Data: []byte("SELECT 1;")}
	_, err := NewMigrator(fsys, "m").ParseMigrations()
	assert.ErrorContains(t, err, "duplicate migration version 1")
}

func TestRunAppliesPendingOnly(t *testing.T) {
	m := NewMigrator(testFS(), "m")
	exec := &fakeExec{applied: map[int]string{}}

	res, err := m.Run(context.Background(), exec)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, res.Applied)

	res, err = m.Run(context.Background(), exec)
	require.NoError(t, err)
	assert.Empty(t, res.Applied)
	assert.Equal(t, []int{1, 2}, res.Skipped)
	assert.Equal(t, []int{1, 2}, exec.ran)
}

func TestRunDetectsEditedMigration(t *testing.T) {
	exec := &fakeExec{applied: map[int]string{1: "deadbeef"}}
	_, err := NewMigrator(testFS(), "m").Run(context.Background(), exec)
	assert.ErrorIs(t, err, ErrChecksumMismatch)
	assert.Empty(t, exec.ran)
}

func TestRunStopsOnFailure(t *testing.T) {
	exec := &fakeExec{applied: map[int]string{}, failOn: 2}
	res, err := NewMigrator(testFS(), "m").Run(context.Background(), exec)
	require.Error(t, err)
	require.NotNil(t, res.Failed)
	assert.Equal(t, 2, *res.Failed)
	assert.Equal(t, []int{1}, res.Applied)
}
