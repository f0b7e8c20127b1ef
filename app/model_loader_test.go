package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kris96tian/MOFAX-Online/domain/core"
	"github.com/kris96tian/MOFAX-Online/domain/model"
	"github.com/kris96tian/MOFAX-Online/internal/errors"
	"github.com/kris96tian/MOFAX-Online/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockModelReader struct {
	mock.Mock
}

func (m *MockModelReader) Open(ctx context.Context, path string) (*model.Model, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Model), args.Error(1)
}

func stagedFiles(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "mofa-*.hdf5"))
	require.NoError(t, err)
	return matches
}

func TestLoadUpload(t *testing.T) {
	dir := t.TempDir()
	reader := testkit.NewFakeReader()
	content := reader.Register([]byte("model-one"), testkit.SmallModel())
	loader := NewModelLoader(reader, dir, 1<<20, nil)

	m, err := loader.LoadUpload(context.Background(), "trained.HDF5", bytes.NewReader(content))
	require.NoError(t, err)

	assert.False(t, m.ID.String() == "")
	assert.Equal(t, "trained.HDF5", m.SourceName)
	assert.True(t, m.Temporary)
	assert.Equal(t, len("model-one"), fileSize(t, m.Path))
	assert.False(t, m.Hash.IsEmpty())
	assert.False(t, m.LoadedAt.IsZero())

	loader.Release(m)
	assert.Empty(t, stagedFiles(t, dir))
}

func TestLoadUploadRejects(t *testing.T) {
	dir := t.TempDir()
	reader := testkit.NewFakeReader()
	content := reader.Register([]byte("model-one"), testkit.SmallModel())
	ctx := context.Background()

	t.Run("wrong extension", func(t *testing.T) {
		loader := NewModelLoader(reader, dir, 1<<20, nil)
		_, err := loader.LoadUpload(ctx, "weights.csv", bytes.NewReader(content))
		assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
	})

	t.Run("too large", func(t *testing.T) {
		loader := NewModelLoader(reader, dir, 4, nil)
		_, err := loader.LoadUpload(ctx, "model.hdf5", bytes.NewReader(content))
		assert.Equal(t, errors.CodeUploadTooLarge, errors.GetCode(err))
	})

	t.Run("empty", func(t *testing.T) {
		loader := NewModelLoader(reader, dir, 1<<20, nil)
		_, err := loader.LoadUpload(ctx, "model.hdf5", bytes.NewReader(nil))
		assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
	})

	t.Run("not a model", func(t *testing.T) {
		loader := NewModelLoader(reader, dir, 1<<20, nil)
		_, err := loader.LoadUpload(ctx, "model.hdf5", bytes.NewReader([]byte("just some text")))
		assert.Equal(t, errors.CodeInvalidModel, errors.GetCode(err))
	})

	assert.Empty(t, stagedFiles(t, dir), "failed uploads leave no staged files")
}

func TestLoadPath(t *testing.T) {
	dir := t.TempDir()
	reader := testkit.NewFakeReader()
	content := reader.Register([]byte("model-on-disk"), testkit.SmallModel())
	path := filepath.Join(dir, "model.hdf5")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	loader := NewModelLoader(reader, dir, 1<<20, nil)
	m, err := loader.LoadPath(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "model.hdf5", m.SourceName)
	assert.False(t, m.Temporary)

	loader.Release(m)
	_, err = os.Stat(path)
	assert.NoError(t, err, "files loaded by path are never removed")

	_, err = loader.LoadPath(context.Background(), filepath.Join(dir, "missing.hdf5"))
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
}

func TestLoadUploadReaderErrors(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	staged := mock.MatchedBy(func(path string) bool {
		return filepath.Dir(path) == dir && HasModelExtension(path)
	})

	t.Run("malformed model", func(t *testing.T) {
		reader := new(MockModelReader)
		reader.On("Open", ctx, staged).Return(nil, core.ErrMalformedModel).Once()

		_, err := NewModelLoader(reader, dir, 1<<20, nil).LoadUpload(ctx, "model.hdf5", bytes.NewReader([]byte("x")))
		assert.Equal(t, errors.CodeInvalidModel, errors.GetCode(err))
		reader.AssertExpectations(t)
	})

	t.Run("cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		reader := new(MockModelReader)
		reader.On("Open", cctx, staged).Run(func(mock.Arguments) { cancel() }).Return(nil, context.Canceled).Once()

		_, err := NewModelLoader(reader, dir, 1<<20, nil).LoadUpload(cctx, "model.hdf5", bytes.NewReader([]byte("x")))
		assert.ErrorIs(t, err, context.Canceled)
		reader.AssertExpectations(t)
	})

	assert.Empty(t, stagedFiles(t, dir))
}

func fileSize(t *testing.T, path string) int {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	return int(info.Size())
}
