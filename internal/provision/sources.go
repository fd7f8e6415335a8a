package provision

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime"

	"snag/internal/services"
)

// release describes the newest available version of a tool family and the
// download URL for each member on the current platform.
type release struct {
	Version string
	URLs    map[Tool]string
}

// source resolves the latest release of one tool family.
type source interface {
	Latest(ctx context.Context) (release, error)
}

// bundleSource speaks to the versioned multi-binary distribution index
// (ffbinaries-style): one document lists the latest version and per-platform
// download URLs for the transcoder and prober.
type bundleSource struct {
	indexURL string
	client   *http.Client
}

type bundleIndex struct {
	Version string                       `json:"version"`
	Bin     map[string]map[string]string `json:"bin"`
}

func (s *bundleSource) Latest(ctx context.Context) (release, error) {
	var index bundleIndex
	if err := getJSON(ctx, s.client, s.indexURL+"/version/latest", &index); err != nil {
		return release{}, services.WrapCoded(services.CodeProvisionFailed, "transcoder bundle version lookup", err)
	}
	if index.Version == "" {
		return release{}, services.NewCoded(services.CodeProvisionFailed, "transcoder bundle index reported no versions")
	}

	platform := bundlePlatform(runtime.GOOS, runtime.GOARCH)
	entries, ok := index.Bin[platform]
	if !ok {
		return release{}, services.NewCoded(services.CodeUnsupportedPlatform,
			fmt.Sprintf("no transcoder bundle published for %s/%s", runtime.GOOS, runtime.GOARCH))
	}

	urls := make(map[Tool]string, 2)
	for _, tool := range familyTools(FamilyBundle) {
		url, ok := entries[bundleEntryName(tool)]
		if !ok || url == "" {
			return release{}, services.NewCoded(services.CodeUnsupportedPlatform,
				fmt.Sprintf("bundle for %s is missing the %s binary", platform, tool))
		}
		urls[tool] = url
	}
	return release{Version: index.Version, URLs: urls}, nil
}

func bundleEntryName(t Tool) string {
	switch t {
	case ToolTranscoder:
		return "ffmpeg"
	case ToolProber:
		return "ffprobe"
	default:
		return string(t)
	}
}

func bundlePlatform(goos, goarch string) string {
	switch goos {
	case "windows":
		return "windows-64"
	case "darwin":
		return "osx-64"
	case "linux":
		switch goarch {
		case "arm64":
			return "linux-arm64"
		case "arm":
			return "linux-armhf"
		case "386":
			return "linux-32"
		default:
			return "linux-64"
		}
	default:
		return goos + "-" + goarch
	}
}

// fetcherSource speaks to a release-asset index (GitHub releases API shape):
// the latest release lists named assets with direct download URLs.
type fetcherSource struct {
	releaseURL string
	client     *http.Client
}

type releaseDocument struct {
	TagName string `json:"tag_name"`
	Assets  []struct {
		Name               string `json:"name"`
		BrowserDownloadURL string `json:"browser_download_url"`
	} `json:"assets"`
}

func (s *fetcherSource) Latest(ctx context.Context) (release, error) {
	var doc releaseDocument
	if err := getJSON(ctx, s.client, s.releaseURL, &doc); err != nil {
		return release{}, services.WrapCoded(services.CodeProvisionFailed, "fetcher release lookup", err)
	}

	assetName := fetcherAssetName(runtime.GOOS)
	for _, asset := range doc.Assets {
		if asset.Name == assetName {
			return release{
				Version: doc.TagName,
				URLs:    map[Tool]string{ToolFetcher: asset.BrowserDownloadURL},
			}, nil
		}
	}
	return release{}, services.NewCoded(services.CodeUnsupportedPlatform,
		fmt.Sprintf("release %s has no asset named %q", doc.TagName, assetName))
}

func fetcherAssetName(goos string) string {
	switch goos {
	case "windows":
		return "yt-dlp.exe"
	case "darwin":
		return "yt-dlp_macos"
	default:
		return "yt-dlp"
	}
}

func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s: %s: %s", url, resp.Status, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
