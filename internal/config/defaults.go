package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:           "info",
			BotName:            "AI导航小助手",
			ThinkingMessage:    "🤔 思考中...",
			MaxContextMessages: 10,
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8001,
			CallbackPath: "/callback",
		},
		LLM: LLMConfig{
			APIBase:     "https://api.openai.com/v1",
			Model:       "gpt-4o",
			MaxTokens:   2000,
			Temperature: 0.7,
		},
		Analytics: AnalyticsConfig{
			BaseURL:        "http://localhost:8000",
			TimeoutSeconds: 30,
		},
		Dedup: DedupConfig{
			Capacity: 1000,
		},
		Transcript: TranscriptConfig{
			Enabled: false,
			DBPath:  "~/.botpilot/transcript.db",
		},
	}
}
