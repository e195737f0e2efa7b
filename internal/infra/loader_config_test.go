package infra

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/dlc_deploy/internal/domain"
)

func newTestLoaderWriter() *LoaderConfigWriter {
	return NewLoaderConfigWriter(NewFileSystemManager(), zap.NewNop())
}

func TestLoaderConfigWriter_EmptyDocumentDeletes(t *testing.T) {
	dir := t.TempDir()
	w := newTestLoaderWriter()
	path := w.Path(dir)

	require.NoError(t, os.WriteFile(path, []byte(`{"enabled": true}`), 0644))

	result, err := w.Reconcile(dir, domain.ConfigDocument{})
	require.NoError(t, err)
	assert.Equal(t, domain.WriteResultDeleted, result)
	assert.NoFileExists(t, path)

	result, err = w.Reconcile(dir, domain.ConfigDocument{})
	require.NoError(t, err)
	assert.Equal(t, domain.WriteResultNotPresent, result)
	assert.NoFileExists(t, path)
}

func TestLoaderConfigWriter_AutoLoadRule(t *testing.T) {
	dir := t.TempDir()
	w := newTestLoaderWriter()

	_, err := w.Reconcile(dir, domain.ConfigDocument{Targets: []string{filepath.Join(dir, "game.exe")}})
	require.NoError(t, err)
	cfg := readLoaderConfig(t, w.Path(dir))
	assert.True(t, cfg.AutoLoad)
	assert.True(t, cfg.Enabled)
	assert.False(t, cfg.Logging)
	assert.Empty(t, cfg.Modules)

	_, err = w.Reconcile(dir, domain.ConfigDocument{Modules: []domain.Module{{Path: filepath.Join(dir, "SmokeAPI64.dll")}}})
	require.NoError(t, err)
	cfg = readLoaderConfig(t, w.Path(dir))
	assert.False(t, cfg.AutoLoad)
	require.Len(t, cfg.Modules, 1)
	assert.True(t, cfg.Modules[0].Required)
	assert.Empty(t, cfg.Targets)
}

func TestLoaderConfigWriter_EmptyArraysRenderedExplicitly(t *testing.T) {
	dir := t.TempDir()
	w := newTestLoaderWriter()

	data, ok, err := w.Render(dir, domain.ConfigDocument{Targets: []string{"/games/x/game.exe"}})
	require.NoError(t, err)
	require.True(t, ok)

	want := "{\n" +
		"  \"logging\": false,\n" +
		"  \"enabled\": true,\n" +
		"  \"auto_load\": true,\n" +
		"  \"targets\": [\n" +
		"    \"/games/x/game.exe\"\n" +
		"  ],\n" +
		"  \"modules\": []\n" +
		"}\n"
	assert.Equal(t, want, string(data))
}

func TestLoaderConfigWriter_RelativePathsResolvedAgainstDirectory(t *testing.T) {
	dir := t.TempDir()
	w := newTestLoaderWriter()

	data, ok, err := w.Render(dir, domain.ConfigDocument{Targets: []string{"game.exe"}})
	require.NoError(t, err)
	require.True(t, ok)

	cfg, err := DecodeLoaderConfig(data)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "game.exe")}, cfg.Targets)
}

func TestLoaderConfig_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	doc := domain.ConfigDocument{
		Targets: []string{
			filepath.Join(dir, "z.exe"),
			filepath.Join(dir, "a.exe"),
			filepath.Join(dir, `we "quote" <it>.exe`),
		},
		Modules: []domain.Module{
			{Path: filepath.Join(dir, "b.dll"), Required: true},
			{Path: filepath.Join(dir, "a.dll"), Required: true},
		},
	}

	first, err := EncodeLoaderConfig(NewLoaderConfig(dir, doc))
	require.NoError(t, err)

	decoded, err := DecodeLoaderConfig(first)
	require.NoError(t, err)
	assert.Equal(t, doc, decoded.Document())

	second, err := EncodeLoaderConfig(decoded)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestLoaderConfigWriter_UnchangedWhenIdentical(t *testing.T) {
	dir := t.TempDir()
	w := newTestLoaderWriter()
	doc := domain.ConfigDocument{Targets: []string{filepath.Join(dir, "game.exe")}}

	result, err := w.Reconcile(dir, doc)
	require.NoError(t, err)
	assert.Equal(t, domain.WriteResultWritten, result)

	result, err = w.Reconcile(dir, doc)
	require.NoError(t, err)
	assert.Equal(t, domain.WriteResultUnchanged, result)
}

func TestLoaderConfigWriter_Remove(t *testing.T) {
	dir := t.TempDir()
	w := newTestLoaderWriter()

	result, err := w.Remove(dir)
	require.NoError(t, err)
	assert.Equal(t, domain.WriteResultNotPresent, result)

	require.NoError(t, os.WriteFile(w.Path(dir), []byte("{}"), 0644))
	result, err = w.Remove(dir)
	require.NoError(t, err)
	assert.Equal(t, domain.WriteResultDeleted, result)
}

func readLoaderConfig(t *testing.T, path string) LoaderConfig {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	cfg, err := DecodeLoaderConfig(data)
	require.NoError(t, err)
	return cfg
}
