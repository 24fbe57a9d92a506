package config

const (
	defaultConfigPath         = "~/.config/oracletom/config.toml"
	defaultTOMURL             = "https://desc-tom-2.lbl.gov"
	defaultRequestTimeout     = 60
	defaultNumObjects         = 5
	defaultDetectedInLastDays = 1
	defaultModelBackend       = "command"
	defaultModelBinary        = "oracle-predict"
	defaultModelTimeout       = 120
	defaultMaxSequenceLength  = 256
	defaultDetectionSNR       = 5.0
	defaultOutputDir          = "~/.local/share/oracletom"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Model backends understood by the oracle package.
const (
	BackendCommand = "command"
	BackendHTTP    = "http"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		TOM: TOM{
			URL:            defaultTOMURL,
			RequestTimeout: defaultRequestTimeout,
		},
		Query: Query{
			NumObjects:         defaultNumObjects,
			DetectedInLastDays: defaultDetectedInLastDays,
		},
		Model: Model{
			Backend:           defaultModelBackend,
			Binary:            defaultModelBinary,
			TimeoutSeconds:    defaultModelTimeout,
			MaxSequenceLength: defaultMaxSequenceLength,
		},
		Features: Features{
			DetectionSNR: defaultDetectionSNR,
		},
		Output: Output{
			Dir: defaultOutputDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
