package orchestrator

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"snag/internal/logging"
	"snag/internal/provision"
	"snag/internal/services"
	"snag/internal/services/ytdlp"
)

// FetchMetadata runs the fetcher in JSON-dump mode and returns one item per
// media entry. Metadata fetches are short-lived and carry no job id, so they
// bypass the registry and are not stoppable.
func (o *Orchestrator) FetchMetadata(ctx context.Context, url string, opts ytdlp.MetadataOptions) ([]ytdlp.Metadata, error) {
	logger := o.logger.With(logging.String("url", url))
	logger.Info("fetching metadata")

	paths, err := o.prov.Ensure(ctx, []provision.Tool{provision.ToolFetcher})
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, paths[provision.ToolFetcher], ytdlp.MetadataArgs(url, opts)...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	exitCode := 0
	if err := cmd.Run(); err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			return nil, services.WrapCoded(services.CodeProcessError, "spawn fetcher", err)
		}
		exitCode = exitErr.ProcessState.ExitCode()
	}

	// A failed automatic browser-cookie lookup makes the fetcher exit
	// non-zero even when the dump itself succeeded.
	usable := strings.TrimSpace(stdout.String()) != "" &&
		(exitCode == 0 || ytdlp.BenignCookieFailureOnly(stderr.String()))
	if !usable {
		return nil, ytdlp.Classify(ytdlp.OpFetch, stderr.String(), exitCode, opts.UseCookieFile)
	}

	items, err := ytdlp.ParseMetadata(stdout.String(), logger)
	if err != nil {
		return nil, err
	}
	logger.Info("metadata fetched", logging.Int("items", len(items)))
	return items, nil
}
