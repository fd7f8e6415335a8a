package config

const (
	defaultBinariesDir       = "~/.local/share/snag/binaries"
	defaultDownloadDir       = "~/Downloads"
	defaultDataDir           = "~/.local/share/snag"
	defaultLogDir            = "~/.local/share/snag/logs"
	defaultSocketPath        = "~/.local/share/snag/snagd.sock"
	defaultAPIBind           = "127.0.0.1:7645"
	defaultBinaryIndexURL    = "https://ffbinaries.com/api/v1"
	defaultFetcherReleaseURL = "https://api.github.com/repos/yt-dlp/yt-dlp/releases/latest"
	defaultRequestTimeout    = 30
	defaultAudioFormat       = "mp3"
	defaultMergeFormat       = "mp4"
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			BinariesDir: defaultBinariesDir,
			DownloadDir: defaultDownloadDir,
			DataDir:     defaultDataDir,
			LogDir:      defaultLogDir,
			SocketPath:  defaultSocketPath,
			APIBind:     defaultAPIBind,
		},
		Provision: Provision{
			BinaryIndexURL:    defaultBinaryIndexURL,
			FetcherReleaseURL: defaultFetcherReleaseURL,
			RequestTimeout:    defaultRequestTimeout,
		},
		Download: Download{
			AudioFormat: defaultAudioFormat,
			MergeFormat: defaultMergeFormat,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
