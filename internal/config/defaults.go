package config

const (
	defaultConfigPath        = "~/.config/babel/config.toml"
	defaultDataDir           = "~/.local/share/babel"
	defaultLogDir            = "~/.local/share/babel/logs"
	defaultSocketName        = "babel.sock"
	defaultEngineKind        = EngineStub
	defaultModelID           = "Xenova/nllb-200-distilled-600M"
	defaultStubChunkCount    = 10
	defaultStubStepDelay     = 40
	defaultStubTokenDelay    = 30
	defaultLLMBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel          = "google/gemini-2.5-flash"
	defaultLLMReferer        = "https://github.com/babel-translate/babel"
	defaultLLMTitle          = "babel translator"
	defaultLLMTimeoutSeconds = 60
	defaultLLMRetryAttempts  = 3
	defaultQueueDepth        = 8
	defaultProgressBucket    = 25
	defaultSourceLanguage    = "eng_Latn"
	defaultTargetLanguage    = "fra_Latn"
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// DefaultStubArtifacts mirrors the file set of a quantized NLLB export.
func DefaultStubArtifacts() []string {
	return []string{
		"config.json",
		"tokenizer.json",
		"tokenizer_config.json",
		"generation_config.json",
		"onnx/encoder_model_quantized.onnx",
		"onnx/decoder_model_merged_quantized.onnx",
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Engine: Engine{
			Kind:    defaultEngineKind,
			ModelID: defaultModelID,
		},
		Stub: Stub{
			Artifacts:        DefaultStubArtifacts(),
			ChunkCount:       defaultStubChunkCount,
			StepDelayMillis:  defaultStubStepDelay,
			TokenDelayMillis: defaultStubTokenDelay,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
			RetryAttempts:  defaultLLMRetryAttempts,
		},
		Worker: Worker{
			QueueDepth:        defaultQueueDepth,
			ProgressLogBucket: defaultProgressBucket,
		},
		History: History{
			Enabled: true,
		},
		Translate: Translate{
			SourceLanguage: defaultSourceLanguage,
			TargetLanguage: defaultTargetLanguage,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
