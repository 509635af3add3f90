package config

const (
	defaultDataDir               = "~/.local/share/intake"
	defaultLogDir                = "~/.local/share/intake/logs"
	defaultHistoryPath           = "~/.local/share/intake/history.db"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLocalTimeoutSeconds   = 1
	defaultGlobalTimeoutSeconds  = 15
	defaultDirBatchSize          = 100
	defaultChunkSizeBytes        = 2 << 20
	defaultHashBatchSize         = 8
	defaultRoundTripSeconds      = 30
	defaultProgressSeconds       = 1
	defaultLookupChunkSize       = 25
	defaultLookupParallelism     = 4
	defaultScope                 = "default"
	defaultRemoteTimeoutSeconds  = 10
	defaultRemoteRetryMax        = 3
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Traversal: Traversal{
			LocalTimeoutSeconds:  defaultLocalTimeoutSeconds,
			GlobalTimeoutSeconds: defaultGlobalTimeoutSeconds,
			DirBatchSize:         defaultDirBatchSize,
		},
		Hashing: Hashing{
			ChunkSizeBytes:          defaultChunkSizeBytes,
			Workers:                 0, // 0 selects runtime.NumCPU at startup
			BatchSize:               defaultHashBatchSize,
			RoundTripTimeoutSeconds: defaultRoundTripSeconds,
			ProgressIntervalSeconds: defaultProgressSeconds,
		},
		Classification: Classification{
			LookupChunkSize:   defaultLookupChunkSize,
			LookupParallelism: defaultLookupParallelism,
			Scope:             defaultScope,
		},
		History: History{
			Path:                 defaultHistoryPath,
			RemoteTimeoutSeconds: defaultRemoteTimeoutSeconds,
			RemoteRetryMax:       defaultRemoteRetryMax,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
