package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeProvision()
	c.normalizeDownload()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.BinariesDir, err = expandPath(orDefault(c.Paths.BinariesDir, defaultBinariesDir)); err != nil {
		return fmt.Errorf("paths.binaries_dir: %w", err)
	}
	if c.Paths.DownloadDir, err = expandPath(orDefault(c.Paths.DownloadDir, defaultDownloadDir)); err != nil {
		return fmt.Errorf("paths.download_dir: %w", err)
	}
	if c.Paths.DataDir, err = expandPath(orDefault(c.Paths.DataDir, defaultDataDir)); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(orDefault(c.Paths.LogDir, defaultLogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.SocketPath, err = expandPath(orDefault(c.Paths.SocketPath, defaultSocketPath)); err != nil {
		return fmt.Errorf("paths.socket_path: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	return nil
}

func (c *Config) normalizeProvision() {
	c.Provision.BinaryIndexURL = strings.TrimRight(strings.TrimSpace(orDefault(c.Provision.BinaryIndexURL, defaultBinaryIndexURL)), "/")
	c.Provision.FetcherReleaseURL = strings.TrimSpace(orDefault(c.Provision.FetcherReleaseURL, defaultFetcherReleaseURL))
	if c.Provision.RequestTimeout <= 0 {
		c.Provision.RequestTimeout = defaultRequestTimeout
	}
}

func (c *Config) normalizeDownload() {
	c.Download.AudioFormat = strings.ToLower(strings.TrimSpace(orDefault(c.Download.AudioFormat, defaultAudioFormat)))
	c.Download.MergeFormat = strings.ToLower(strings.TrimSpace(orDefault(c.Download.MergeFormat, defaultMergeFormat)))
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(orDefault(c.Logging.Format, defaultLogFormat)))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(orDefault(c.Logging.Level, defaultLogLevel)))
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
