package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	harvesterrors "snowmapper/internal/errors"
	"snowmapper/internal/logging"
	"snowmapper/internal/schema"
)

// Materializer owns the output tree. Writes to distinct paths may run concurrently.
type Materializer struct {
	root   string
	enc    Encoder
	logger *logging.Logger

	// dirMu serializes directory creation; file writes themselves do not share state.
	dirMu sync.Mutex

	tablesMu sync.Mutex
	// tables maps each table path written since the last purge to the table stored there.
	tables map[string]string
}

func NewMaterializer(root string, enc Encoder, logger *logging.Logger) *Materializer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Materializer{root: root, enc: enc, logger: logger, tables: make(map[string]string)}
}

func (m *Materializer) Ext() string { return m.enc.Ext() }

// PurgeAndRecreate removes any previous tree and leaves an empty root. A missing root is
// not an error.
func (m *Materializer) PurgeAndRecreate() error {
	if err := os.RemoveAll(m.root); err != nil {
		return harvesterrors.Wrap(harvesterrors.ErrOutputWrite, "failed to purge output directory", err).
			WithContext("path", m.root)
	}
	if err := os.MkdirAll(m.root, 0755); err != nil {
		return harvesterrors.Wrap(harvesterrors.ErrOutputWrite, "failed to create output directory", err).
			WithContext("path", m.root)
	}
	m.tablesMu.Lock()
	m.tables = make(map[string]string)
	m.tablesMu.Unlock()
	m.logger.Debug("output directory reset", zap.String("path", m.root))
	return nil
}

// Write encodes record and stores it at relPath under the root.
func (m *Materializer) Write(relPath string, record any) error {
	data, err := m.enc.Encode(record)
	if err != nil {
		return harvesterrors.Wrap(harvesterrors.ErrOutputWrite, "failed to encode record", err).
			WithContext("path", relPath)
	}
	return m.WriteRaw(relPath, data)
}

// WriteTable stores t at its lowercase table path. Quoted identifiers that differ only by
// case share a path; the later table replaces the earlier one and the clash is logged.
func (m *Materializer) WriteTable(t schema.Table) error {
	rel := TablePath(t.Database, t.Schema, t.Name, m.Ext())
	name := t.Database + "." + t.Schema + "." + t.Name

	m.tablesMu.Lock()
	prev, seen := m.tables[rel]
	m.tables[rel] = name
	m.tablesMu.Unlock()

	if seen && prev != name {
		m.logger.Warn("table path collision, earlier table overwritten",
			zap.String("path", rel),
			zap.String("table", name),
			zap.String("overwritten", prev),
		)
	}
	return m.Write(rel, t)
}

// WriteRaw stores data at relPath, replacing any existing file in one rename.
func (m *Materializer) WriteRaw(relPath string, data []byte) error {
	path, err := m.resolve(relPath)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := m.ensureDir(dir); err != nil {
		return harvesterrors.Wrap(harvesterrors.ErrOutputWrite, "failed to create output directory", err).
			WithContext("path", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return harvesterrors.Wrap(harvesterrors.ErrOutputWrite, "failed to create output file", err).
			WithContext("path", path)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return harvesterrors.Wrap(harvesterrors.ErrOutputWrite, "failed to write output file", err).
			WithContext("path", path)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return harvesterrors.Wrap(harvesterrors.ErrOutputWrite, "failed to write output file", err).
			WithContext("path", path)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return harvesterrors.Wrap(harvesterrors.ErrOutputWrite, "failed to write output file", err).
			WithContext("path", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return harvesterrors.Wrap(harvesterrors.ErrOutputWrite, "failed to write output file", err).
			WithContext("path", path)
	}

	m.logger.Debug("wrote artifact", zap.String("path", path), zap.Int("bytes", len(data)))
	return nil
}

func (m *Materializer) ensureDir(dir string) error {
	m.dirMu.Lock()
	defer m.dirMu.Unlock()
	// MkdirAll treats an existing directory as success.
	return os.MkdirAll(dir, 0755)
}

func (m *Materializer) resolve(relPath string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(relPath))
	if filepath.IsAbs(clean) || clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", harvesterrors.New(harvesterrors.ErrOutputWrite, fmt.Sprintf("path %q escapes output root", relPath))
	}
	return filepath.Join(m.root, clean), nil
}
