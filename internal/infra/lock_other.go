//go:build !unix && !windows

package infra

// probeExclusive has no lock primitive to test on this platform.
func probeExclusive(path string) (bool, error) {
	return false, nil
}
