package infra

import (
	"encoding/json"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/dlc_deploy/internal/domain"
)

// LoaderConfigFileName is the loader's configuration file inside a target directory.
const LoaderConfigFileName = "Koaloader.json"

// LoaderConfig is the on-disk loader configuration. Field order is the
// serialization order.
type LoaderConfig struct {
	Logging  bool           `json:"logging"`
	Enabled  bool           `json:"enabled"`
	AutoLoad bool           `json:"auto_load"`
	Targets  []string       `json:"targets"`
	Modules  []LoaderModule `json:"modules"`
}

// LoaderModule is one explicitly loaded module.
type LoaderModule struct {
	Path     string `json:"path"`
	Required bool   `json:"required"`
}

// NewLoaderConfig builds the configuration for a document. Explicit modules
// disable auto-loading so nothing is loaded twice.
func NewLoaderConfig(directory string, doc domain.ConfigDocument) LoaderConfig {
	cfg := LoaderConfig{
		Logging:  false,
		Enabled:  true,
		AutoLoad: len(doc.Modules) == 0,
		Targets:  make([]string, 0, len(doc.Targets)),
		Modules:  make([]LoaderModule, 0, len(doc.Modules)),
	}
	for _, t := range doc.Targets {
		cfg.Targets = append(cfg.Targets, absUnder(directory, t))
	}
	for _, m := range doc.Modules {
		cfg.Modules = append(cfg.Modules, LoaderModule{Path: absUnder(directory, m.Path), Required: true})
	}
	return cfg
}

// Document converts the configuration back to a domain document.
func (c LoaderConfig) Document() domain.ConfigDocument {
	doc := domain.ConfigDocument{}
	doc.Targets = append(doc.Targets, c.Targets...)
	for _, m := range c.Modules {
		doc.Modules = append(doc.Modules, domain.Module{Path: m.Path, Required: m.Required})
	}
	return doc
}

// EncodeLoaderConfig serializes a configuration.
func EncodeLoaderConfig(cfg LoaderConfig) ([]byte, error) {
	if cfg.Targets == nil {
		cfg.Targets = []string{}
	}
	if cfg.Modules == nil {
		cfg.Modules = []LoaderModule{}
	}
	return EncodeJSON(cfg)
}

// DecodeLoaderConfig parses a configuration.
func DecodeLoaderConfig(data []byte) (LoaderConfig, error) {
	var cfg LoaderConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return LoaderConfig{}, err
	}
	return cfg, nil
}

// LoaderConfigWriter implements domain.ConfigWriter for Koaloader.json.
type LoaderConfigWriter struct {
	fs     domain.FileSystemManager
	logger *zap.Logger
}

// NewLoaderConfigWriter creates a new loader config writer.
func NewLoaderConfigWriter(fs domain.FileSystemManager, logger *zap.Logger) *LoaderConfigWriter {
	return &LoaderConfigWriter{fs: fs, logger: logger}
}

// Path returns the configuration file path for a directory.
func (w *LoaderConfigWriter) Path(directory string) string {
	return filepath.Join(directory, LoaderConfigFileName)
}

// Render returns the bytes Reconcile would write.
func (w *LoaderConfigWriter) Render(directory string, doc domain.ConfigDocument) ([]byte, bool, error) {
	if doc.IsEmpty() {
		return nil, false, nil
	}
	data, err := EncodeLoaderConfig(NewLoaderConfig(directory, doc))
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Reconcile deletes the configuration for an empty document and fully
// rewrites it otherwise.
func (w *LoaderConfigWriter) Reconcile(directory string, doc domain.ConfigDocument) (domain.WriteResult, error) {
	data, present, err := w.Render(directory, doc)
	if err != nil {
		return "", err
	}

	path := w.Path(directory)
	result, err := ReconcileFile(w.fs, path, data, present)
	if err != nil {
		return "", err
	}

	w.logger.Debug("loader configuration reconciled",
		zap.String("path", path),
		zap.String("result", string(result)),
		zap.Int("targets", len(doc.Targets)),
		zap.Int("modules", len(doc.Modules)))
	return result, nil
}

// Remove deletes the configuration if present.
func (w *LoaderConfigWriter) Remove(directory string) (domain.WriteResult, error) {
	return ReconcileFile(w.fs, w.Path(directory), nil, false)
}

func absUnder(directory, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(directory, path)
}

// Ensure LoaderConfigWriter implements domain.ConfigWriter.
var _ domain.ConfigWriter = (*LoaderConfigWriter)(nil)
