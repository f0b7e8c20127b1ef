package app

import (
	"context"
	"crypto/sha256"
	stderrors "errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kris96tian/MOFAX-Online/domain/core"
	"github.com/kris96tian/MOFAX-Online/domain/model"
	"github.com/kris96tian/MOFAX-Online/internal/errors"
	"github.com/kris96tian/MOFAX-Online/internal/metrics"
	"github.com/kris96tian/MOFAX-Online/ports"
)

// ModelExtension is the only file extension accepted for model files
const ModelExtension = ".hdf5"

// HasModelExtension reports whether name ends in .hdf5, ignoring case
func HasModelExtension(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ModelExtension)
}

// ModelLoader turns uploaded bytes or local paths into model handles
type ModelLoader struct {
	reader    ports.ModelReader
	uploadDir string
	maxBytes  int64
	metrics   *metrics.Metrics
}

// NewModelLoader creates a loader; uploads are staged under uploadDir
func NewModelLoader(reader ports.ModelReader, uploadDir string, maxBytes int64, m *metrics.Metrics) *ModelLoader {
	return &ModelLoader{
		reader:    reader,
		uploadDir: uploadDir,
		maxBytes:  maxBytes,
		metrics:   m,
	}
}

// LoadPath opens a model that already lives on disk. The file is never removed.
func (l *ModelLoader) LoadPath(ctx context.Context, path string) (*model.Model, error) {
	start := time.Now()
	if !HasModelExtension(path) {
		return nil, errors.InvalidInput("model file must have the .hdf5 extension")
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound("model file " + path)
		}
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	hash, _, err := core.HashReader(f)
	f.Close()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}

	m, err := l.open(ctx, path, hash)
	if err != nil {
		l.metrics.ObserveLoad(errors.GetCode(err), time.Since(start))
		return nil, err
	}
	m.SourceName = filepath.Base(path)
	l.metrics.ObserveLoad("ok", time.Since(start))
	return m, nil
}

// LoadUpload stages r in a temporary .hdf5 file, because the reader needs
// a filesystem path, and opens it. On failure the temporary file is removed.
func (l *ModelLoader) LoadUpload(ctx context.Context, filename string, r io.Reader) (*model.Model, error) {
	start := time.Now()
	m, err := l.loadUpload(ctx, filename, r)
	if err != nil {
		l.metrics.ObserveLoad(errors.GetCode(err), time.Since(start))
		return nil, err
	}
	l.metrics.ObserveLoad("ok", time.Since(start))
	return m, nil
}

func (l *ModelLoader) loadUpload(ctx context.Context, filename string, r io.Reader) (*model.Model, error) {
	if !HasModelExtension(filename) {
		return nil, errors.InvalidInput("only .hdf5 model files can be uploaded")
	}

	tmp, err := os.CreateTemp(l.uploadDir, "mofa-*"+ModelExtension)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create temporary model file")
	}
	path := tmp.Name()

	digest := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, digest), io.LimitReader(r, l.maxBytes+1))
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return nil, errors.Wrap(err, "failed to persist upload")
	}
	if n > l.maxBytes {
		os.Remove(path)
		return nil, errors.UploadTooLarge(l.maxBytes)
	}
	if n == 0 {
		os.Remove(path)
		return nil, errors.InvalidInput("uploaded file is empty")
	}

	m, err := l.open(ctx, path, core.FromDigest(digest))
	if err != nil {
		os.Remove(path)
		return nil, err
	}
	m.SourceName = filepath.Base(filename)
	m.Temporary = true
	log.Printf("[ModelLoader] Staged upload %s (%d bytes, sha256 %s) at %s", m.SourceName, n, m.Hash.Short(), path)
	return m, nil
}

func (l *ModelLoader) open(ctx context.Context, path string, hash core.Hash) (*model.Model, error) {
	m, err := l.reader.Open(ctx, path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.Wrap(ctxErr, "model load cancelled")
		}
		if stderrors.Is(err, core.ErrNotHDF5) || stderrors.Is(err, core.ErrMalformedModel) {
			return nil, errors.InvalidModel("not a readable MOFA+ model", err)
		}
		return nil, errors.InvalidModel("failed to open model", err)
	}
	m.ID = core.NewModelID()
	m.Hash = hash
	m.Path = path
	m.LoadedAt = time.Now()
	return m, nil
}

// Release removes the staged file of an uploaded model
func (l *ModelLoader) Release(m *model.Model) {
	if m == nil || !m.Temporary || m.Path == "" {
		return
	}
	if err := os.Remove(m.Path); err != nil && !os.IsNotExist(err) {
		log.Printf("[ModelLoader] WARNING - failed to remove %s: %v", m.Path, err)
		return
	}
	log.Printf("[ModelLoader] Removed staged file for model %s", m.ID)
}
