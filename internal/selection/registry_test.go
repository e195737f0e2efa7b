package selection

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/dlc_deploy/internal/domain"
	"github.com/eliteGoblin/focusd/dlc_deploy/internal/infra"
)

func TestRegistry_AddDerivesIDAndRejectsDuplicates(t *testing.T) {
	r := NewRegistry()

	sel, err := r.Add(domain.TargetSelection{Directory: "/Games/Foo/", Platform: domain.PlatformSteam})
	require.NoError(t, err)
	assert.Equal(t, "/games/foo", sel.ID)
	assert.Equal(t, "/Games/Foo", sel.Directory)

	_, err = r.Add(domain.TargetSelection{Directory: "/games/foo", Platform: domain.PlatformEpic})
	assert.ErrorIs(t, err, domain.ErrDuplicateSelection)

	_, err = r.Add(domain.TargetSelection{ID: "x"})
	assert.Error(t, err)

	assert.Equal(t, 1, r.Len())
}

func TestRegistry_OrderRemoveAndEnabled(t *testing.T) {
	r := NewRegistry()
	for _, s := range []domain.TargetSelection{
		{ID: "b", Directory: "/b", EnabledAddOns: []string{"1"}},
		{ID: "a", Directory: "/a"},
		{ID: "c", Directory: "/c", EnabledAddOns: []string{"2"}},
	} {
		_, err := r.Add(s)
		require.NoError(t, err)
	}

	ids := func(sels []domain.TargetSelection) []string {
		var out []string
		for _, s := range sels {
			out = append(out, s.ID)
		}
		return out
	}

	assert.Equal(t, []string{"b", "a", "c"}, ids(r.All()))
	assert.Equal(t, []string{"b", "c"}, ids(r.Enabled()))

	assert.True(t, r.Remove("a"))
	assert.False(t, r.Remove("a"))
	assert.Equal(t, []string{"b", "c"}, ids(r.All()))

	got, ok := r.Get("c")
	assert.True(t, ok)
	assert.Equal(t, "/c", got.Directory)
}

func TestRegistry_ValidateDropsMissingDirectories(t *testing.T) {
	present := t.TempDir()
	missing := filepath.Join(present, "gone")

	r := NewRegistry()
	_, err := r.Add(domain.TargetSelection{ID: "present", Directory: present})
	require.NoError(t, err)
	_, err = r.Add(domain.TargetSelection{ID: "missing", Directory: missing})
	require.NoError(t, err)

	dropped := r.Validate(infra.NewFileSystemManager())
	require.Len(t, dropped, 1)
	assert.Equal(t, "missing", dropped[0].ID)
	assert.Equal(t, 1, r.Len())
}

func TestParseManifest(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	data := []byte(`
selections:
  - name: Some Game
    directory: ~/Games/SomeGame
    platform: Steam
    proxy: winmm
    addons: ["1001", "1002"]
  - id: other
    directory: /games/other
    platform: ubisoft
`)
	r, err := ParseManifest(data, infra.NewFileSystemManager())
	require.NoError(t, err)

	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, filepath.Join(home, "Games", "SomeGame"), all[0].Directory)
	assert.Equal(t, domain.PlatformSteam, all[0].Platform)
	assert.Equal(t, "winmm", all[0].ProxyName)
	assert.Equal(t, []string{"1001", "1002"}, all[0].EnabledAddOns)
	assert.Equal(t, "other", all[1].ID)
	assert.Equal(t, domain.PlatformUbisoft, all[1].Platform)
}

func TestParseManifest_Errors(t *testing.T) {
	fs := infra.NewFileSystemManager()

	_, err := ParseManifest([]byte("selections:\n  - directory: /g\n    platform: gog\n"), fs)
	assert.ErrorIs(t, err, domain.ErrUnknownPlatform)

	_, err = ParseManifest([]byte("selections:\n  - directory: /g\n    platform: steam\n  - directory: /g\n    platform: epic\n"), fs)
	assert.ErrorIs(t, err, domain.ErrDuplicateSelection)

	_, err = ParseManifest([]byte("selections:\n  - directory: /g\n    platfrom: steam\n"), fs)
	assert.Error(t, err)
}

func TestLoadManifest(t *testing.T) {
	fs := infra.NewFileSystemManager()

	path := filepath.Join(t.TempDir(), "games.yaml")
	require.NoError(t, os.WriteFile(path, []byte("selections:\n  - directory: /g\n    platform: epic\n"), 0644))
	r, err := LoadManifest(path, fs)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())

	_, err = LoadManifest(filepath.Join(t.TempDir(), "none.yaml"), fs)
	assert.Error(t, err)

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(empty, nil, 0644))
	r, err = LoadManifest(empty, fs)
	require.NoError(t, err)
	assert.Equal(t, 0, r.Len())
}
