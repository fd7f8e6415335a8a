package provision

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// manifest records which version of a tool family is installed. A missing or
// unreadable manifest means "redownload", never a hard failure.
type manifest struct {
	Version string `json:"version"`
}

func manifestPath(dir string, family Family) string {
	if family == FamilyFetcher {
		return filepath.Join(dir, "fetcher-manifest.json")
	}
	return filepath.Join(dir, "manifest.json")
}

func readManifest(dir string, family Family) (manifest, bool) {
	data, err := os.ReadFile(manifestPath(dir, family))
	if err != nil {
		return manifest{}, false
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil || m.Version == "" {
		return manifest{}, false
	}
	return m, true
}

func writeManifest(dir string, family Family, version string) error {
	data, err := json.MarshalIndent(manifest{Version: version}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure binaries directory: %w", err)
	}
	if err := os.WriteFile(manifestPath(dir, family), data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
