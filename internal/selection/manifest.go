package selection

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/eliteGoblin/focusd/dlc_deploy/internal/domain"
)

// Manifest is the YAML document listing selections.
//
//	selections:
//	  - name: Some Game
//	    directory: ~/Games/SomeGame
//	    platform: steam
//	    proxy: version
//	    addons: ["1001", "1002"]
type Manifest struct {
	Selections []domain.TargetSelection `yaml:"selections"`
}

// LoadManifest reads a manifest file into a new registry.
func LoadManifest(path string, fs domain.FileSystemManager) (*Registry, error) {
	data, err := os.ReadFile(fs.ExpandHome(path))
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	return ParseManifest(data, fs)
}

// ParseManifest decodes a manifest. Directories have ~ expanded and
// platforms are normalized; unknown keys are rejected.
func ParseManifest(data []byte, fs domain.FileSystemManager) (*Registry, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	r := NewRegistry()
	for i, sel := range m.Selections {
		platform, err := domain.ParsePlatform(string(sel.Platform))
		if err != nil {
			return nil, fmt.Errorf("selection %d (%s): %w", i, sel.Label(), err)
		}
		sel.Platform = platform
		sel.Directory = fs.ExpandHome(strings.TrimSpace(sel.Directory))
		sel.ProxyName = strings.TrimSpace(sel.ProxyName)

		if _, err := r.Add(sel); err != nil {
			return nil, fmt.Errorf("selection %d: %w", i, err)
		}
	}
	return r, nil
}
