package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"botpilot/internal/agent"
	"botpilot/internal/analytics"
	"botpilot/internal/config"
	"botpilot/internal/domain"
	"botpilot/internal/gateway"
	"botpilot/internal/lark"
	"botpilot/internal/provider"
	"botpilot/internal/tools"
	"botpilot/internal/transcript"

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "botpilot",
		Short: "BotPilot: analytics assistant bot for Lark/Feishu",
		Long:  "BotPilot answers data questions in Lark chats by calling the analytics query service through LLM function calling.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.botpilot/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(chatCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func loadConfig() *config.Config {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Warn("config not found, using defaults", "path", cfgPath, "err", err)
		cfg = config.Defaults()
	}
	setLogLevel(cfg.General.LogLevel)
	return cfg
}

func setLogLevel(level string) {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			if cfgPath == "" {
				cfgPath = config.DefaultConfigPath()
			}
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists at %s", cfgPath)
			}
			if err := config.Save(cfgPath, config.Defaults()); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("botpilot", version)
		},
	}
}

// buildOrchestrator wires the analytics client, tool catalog, provider, and
// conversation store shared by the serve and chat commands. The returned
// cleanup closes the transcript store when enabled.
func buildOrchestrator(cfg *config.Config) (*agent.Orchestrator, func(), error) {
	analyticsClient := analytics.NewClient(analytics.ClientConfig{
		BaseURL: cfg.Analytics.BaseURL,
		Timeout: time.Duration(cfg.Analytics.TimeoutSeconds) * time.Second,
		Logger:  logger,
	})

	registry := tools.NewRegistry(logger)
	tools.RegisterCatalog(registry, analyticsClient)
	executor := tools.NewExecutor(registry, analyticsClient, logger)

	prov := provider.NewOpenAI(provider.OpenAIConfig{
		APIKey:  cfg.LLM.APIKey,
		APIBase: cfg.LLM.APIBase,
		Model:   cfg.LLM.Model,
		Logger:  logger,
	})

	var transcriptStore domain.TranscriptStore
	cleanup := func() {}
	if cfg.Transcript.Enabled {
		store, err := transcript.NewSQLiteStore(cfg.Transcript.DBPath, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open transcript store: %w", err)
		}
		transcriptStore = store
		cleanup = func() {
			if err := store.Close(); err != nil {
				logger.Warn("transcript close failed", "error", err)
			}
		}
	}

	store := agent.NewConversationStore(cfg.General.MaxContextMessages)
	orch := agent.NewOrchestrator(prov, registry, executor, store, transcriptStore, agent.OrchestratorConfig{
		BotName:     cfg.General.BotName,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	}, logger)

	return orch, cleanup, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			if cfg.Lark.AppID == "" || cfg.Lark.AppSecret == "" {
				return fmt.Errorf("lark.appId and lark.appSecret are required, run 'botpilot init' and edit the config")
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			orch, cleanup, err := buildOrchestrator(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			larkClient := lark.NewClient(lark.ClientConfig{
				AppID:     cfg.Lark.AppID,
				AppSecret: cfg.Lark.AppSecret,
				Logger:    logger,
			})

			commands := agent.NewCommandSet()
			if cfg.Commands.File != "" {
				if err := commands.LoadFile(cfg.Commands.File); err != nil {
					logger.Warn("cannot load extra commands", "path", cfg.Commands.File, "error", err)
				}
			}

			router := agent.NewRouter(orch, commands, larkClient, larkClient, agent.RouterConfig{
				BotName:         cfg.General.BotName,
				ThinkingMessage: cfg.General.ThinkingMessage,
			}, logger)

			dedup := gateway.NewDedupCache(cfg.Dedup.Capacity)
			dispatcher := gateway.NewDispatcher(dedup, router, larkClient, logger)

			server := gateway.NewServer(gateway.ServerConfig{
				Host:              cfg.Server.Host,
				Port:              cfg.Server.Port,
				CallbackPath:      cfg.Server.CallbackPath,
				EncryptKey:        cfg.Lark.EncryptKey,
				VerificationToken: cfg.Lark.VerificationToken,
				Dispatcher:        dispatcher,
				Logger:            logger,
			})

			logger.Info("starting botpilot", "version", version, "bot", cfg.General.BotName)
			return server.Start(ctx)
		},
	}
}

// chatCmd runs a local conversation loop against the orchestrator, useful for
// checking LLM and analytics wiring without a Lark app.
func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat on the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			orch, cleanup, err := buildOrchestrator(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			fmt.Printf("%s ready, /new resets, Ctrl-D exits\n", cfg.General.BotName)
			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("> ")
				if !scanner.Scan() {
					fmt.Println()
					return scanner.Err()
				}
				text := strings.TrimSpace(scanner.Text())
				if text == "" {
					continue
				}
				if text == "/new" {
					orch.Reset("local", "cli")
					fmt.Println("(context cleared)")
					continue
				}

				reply, err := orch.Converse(ctx, "local", "cli", text)
				if err != nil {
					fmt.Fprintln(os.Stderr, "error:", err)
					continue
				}
				fmt.Println(reply)
			}
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check analytics backend and config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				logger.Info("config", "path", cfgPath, "loaded", false)
				cfg = config.Defaults()
			} else {
				logger.Info("config", "path", cfgPath, "loaded", true)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			client := analytics.NewClient(analytics.ClientConfig{
				BaseURL: cfg.Analytics.BaseURL,
				Timeout: 5 * time.Second,
				Logger:  logger,
			})
			if _, err := client.Overview(ctx); err != nil {
				logger.Info("analytics", "url", cfg.Analytics.BaseURL, "healthy", false, "error", err)
			} else {
				logger.Info("analytics", "url", cfg.Analytics.BaseURL, "healthy", true)
			}

			if cfg.LLM.APIKey == "" {
				logger.Info("llm", "configured", false)
			} else {
				logger.Info("llm", "model", cfg.LLM.Model, "configured", true)
			}
			return nil
		},
	}
}
