package infra

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/eliteGoblin/focusd/dlc_deploy/internal/domain"
)

// EncodeJSON renders a configuration document: two-space indent, no HTML
// escaping, trailing newline. Decoding the output and encoding it again
// yields the same bytes.
func EncodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReconcileFile makes path hold exactly data, or makes it absent when
// present is false. Files that already match are left untouched.
func ReconcileFile(fs domain.FileSystemManager, path string, data []byte, present bool) (domain.WriteResult, error) {
	if !present {
		if !fs.Exists(path) {
			return domain.WriteResultNotPresent, nil
		}
		if err := fs.Delete(path); err != nil {
			return "", fmt.Errorf("delete %s: %w", path, err)
		}
		return domain.WriteResultDeleted, nil
	}

	if existing, err := fs.ReadFile(path); err == nil && bytes.Equal(existing, data) {
		return domain.WriteResultUnchanged, nil
	}
	if err := fs.WriteFile(path, data); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return domain.WriteResultWritten, nil
}
