package cmd

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/robun/internal/agent"
	"github.com/nextlevelbuilder/robun/internal/bootstrap"
	"github.com/nextlevelbuilder/robun/internal/bus"
	"github.com/nextlevelbuilder/robun/internal/channels"
	"github.com/nextlevelbuilder/robun/internal/channels/dingtalk"
	"github.com/nextlevelbuilder/robun/internal/channels/discord"
	"github.com/nextlevelbuilder/robun/internal/channels/email"
	"github.com/nextlevelbuilder/robun/internal/channels/feishu"
	"github.com/nextlevelbuilder/robun/internal/channels/mochat"
	"github.com/nextlevelbuilder/robun/internal/channels/qq"
	"github.com/nextlevelbuilder/robun/internal/channels/slack"
	"github.com/nextlevelbuilder/robun/internal/channels/telegram"
	"github.com/nextlevelbuilder/robun/internal/channels/whatsapp"
	"github.com/nextlevelbuilder/robun/internal/channels/wsgateway"
	agentctx "github.com/nextlevelbuilder/robun/internal/context"
	"github.com/nextlevelbuilder/robun/internal/config"
	"github.com/nextlevelbuilder/robun/internal/cron"
	"github.com/nextlevelbuilder/robun/internal/heartbeat"
	"github.com/nextlevelbuilder/robun/internal/httpapi"
	"github.com/nextlevelbuilder/robun/internal/memory"
	"github.com/nextlevelbuilder/robun/internal/providers"
	"github.com/nextlevelbuilder/robun/internal/session"
	"github.com/nextlevelbuilder/robun/internal/skills"
	"github.com/nextlevelbuilder/robun/internal/store/pg"
	"github.com/nextlevelbuilder/robun/internal/subagent"
	"github.com/nextlevelbuilder/robun/internal/tools"
)

func gatewayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gateway",
		Short: "Run the full robun runtime: bus, agent loop, channels, cron, heartbeat, HTTP surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGateway()
		},
	}
}

func runGateway() error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return err
	}
	configureLogging(cfg)

	if _, err := bootstrap.EnsureWorkspaceFiles(cfg.Agents.Workspace); err != nil {
		return err
	}

	msgBus := bus.New()

	sessionsDir := cfg.Agents.Workspace + "/sessions"
	sessionStore, err := session.NewStore(sessionsDir)
	if err != nil {
		return err
	}

	var cronMirror *pg.CronMirror
	if dsn := cfg.Database.PostgresDSN; dsn != "" {
		if err := pg.Migrate(dsn, cfg.Database.MigrationsDir); err != nil {
			return err
		}
		db, err := pg.OpenDB(dsn)
		if err != nil {
			return err
		}
		sessionStore.Mirror = pg.NewSessionMirror(db).Upsert
		cronMirror = pg.NewCronMirror(db)
		slog.Info("postgres mirror enabled")
	}

	memStore, err := memory.NewStore(cfg.Agents.Workspace)
	if err != nil {
		return err
	}

	provider, err := providers.New(&cfg.Providers, "", cfg.Agents.Model)
	if err != nil {
		return err
	}

	skillsLoader := skills.NewLoader(cfg.Agents.Workspace)
	builder := agentctx.NewBuilder(cfg.Agents.Workspace, memStore, skillsLoader)
	builder.MaxHistoryTokens = cfg.Agents.MaxHistoryTokens

	registry := tools.NewRegistry()
	registerBuiltinTools(registry, cfg)
	registry.Register(&tools.MessageTool{Publish: msgBus.PublishOutbound})

	consolidator := memory.NewConsolidator(memStore, provider, cfg.Agents.Model)

	loop := &agent.Loop{
		Bus:               msgBus,
		Sessions:          sessionStore,
		Memory:            memStore,
		Consolidator:      consolidator,
		Tools:             registry,
		Provider:          provider,
		Builder:           builder,
		Model:             cfg.Agents.Model,
		Temperature:       cfg.Agents.Temperature,
		MaxTokens:         cfg.Agents.MaxTokens,
		MaxToolIterations: cfg.Agents.MaxToolIterations,
		MemoryWindow:      cfg.Agents.MemoryWindow,
	}

	subManager := subagent.NewManager(msgBus, provider, cfg)
	registry.Register(&tools.SpawnTool{Manager: subManager})

	cronSvc := cron.NewService(cfg.Cron.StorePath, func(message, sessionKey, channel, chatID string) (string, error) {
		return loop.ProcessDirect(context.Background(), message, sessionKey, channel, chatID)
	})
	if cronMirror != nil {
		cronSvc.Mirror = cronMirror
	}
	registry.Register(&tools.CronTool{Cron: &cron.ToolAdapter{Service: cronSvc}})

	if err := cronSvc.Start(); err != nil {
		return err
	}
	defer cronSvc.Stop()

	hb := heartbeat.NewService(cfg.Agents.Workspace, cfg.Agents.HeartbeatIntervalS, func(prompt, sessKey string) (string, error) {
		return loop.ProcessDirect(context.Background(), prompt, sessKey, "heartbeat", "system")
	})
	go hb.Run()
	defer hb.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	adapters := buildChannels(ctx, cfg, msgBus)

	for name, adapter := range adapters {
		msgBus.SubscribeOutbound(name, func(evt bus.OutboundEvent) {
			if err := adapter.Send(ctx, evt); err != nil {
				slog.Error("channel send failed", "channel", name, "error", err)
			}
		})
		if err := adapter.Start(ctx); err != nil {
			slog.Error("channel failed to start", "channel", name, "error", err)
			continue
		}
		defer adapter.Stop(context.Background())
	}

	go msgBus.DispatchOutbound()
	go loop.Run(ctx)

	httpServer := httpapi.NewServer(msgBus, sessionStore, cronSvc, cfg)
	go func() {
		addr := cfg.Gateway.Host + ":" + strconv.Itoa(cfg.Gateway.Port)
		slog.Info("http surface listening", "addr", addr)
		if err := http.ListenAndServe(addr, httpServer.Handler()); err != nil && err != http.ErrServerClosed {
			slog.Error("http surface stopped", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	subManager.Shutdown(10 * time.Second)
	msgBus.Stop()
	cancel()
	return nil
}

// buildChannels constructs every enabled channel adapter from config. A
// channel with no credentials configured is skipped, not an error — this
// mirrors an operator choosing which of the ten protocols to run.
func buildChannels(ctx context.Context, cfg *config.Config, b *bus.Bus) map[string]channels.Adapter {
	out := map[string]channels.Adapter{}

	if ch, ok := cfg.Channels["telegram"]; ok && ch.Enabled {
		if token := ch.Credentials["token"]; token != "" {
			if adapter, err := telegram.New(token, b, ch.Allowlist); err == nil {
				out["telegram"] = adapter
			} else {
				slog.Error("telegram: init failed", "error", err)
			}
		}
	}
	if ch, ok := cfg.Channels["discord"]; ok && ch.Enabled {
		if token := ch.Credentials["token"]; token != "" {
			if adapter, err := discord.New(token, b, ch.Allowlist); err == nil {
				out["discord"] = adapter
			} else {
				slog.Error("discord: init failed", "error", err)
			}
		}
	}
	if ch, ok := cfg.Channels["slack"]; ok && ch.Enabled {
		botToken, appToken := ch.Credentials["bot_token"], ch.Credentials["app_token"]
		if botToken != "" && appToken != "" {
			out["slack"] = slack.New(botToken, appToken, b, ch.Allowlist)
		}
	}
	if ch, ok := cfg.Channels["dingtalk"]; ok && ch.Enabled {
		clientID, clientSecret := ch.Credentials["client_id"], ch.Credentials["client_secret"]
		if clientID != "" && clientSecret != "" {
			out["dingtalk"] = dingtalk.New(clientID, clientSecret, b, ch.Allowlist)
		}
	}
	if ch, ok := cfg.Channels["feishu"]; ok && ch.Enabled {
		appID, appSecret := ch.Credentials["app_id"], ch.Credentials["app_secret"]
		if appID != "" && appSecret != "" {
			out["feishu"] = feishu.New(appID, appSecret, b, ch.Allowlist)
		}
	}
	if ch, ok := cfg.Channels["qq"]; ok && ch.Enabled {
		appID, appToken := ch.Credentials["app_id"], ch.Credentials["app_token"]
		if appID != "" && appToken != "" {
			out["qq"] = qq.New(appID, appToken, b, ch.Allowlist)
		}
	}
	if ch, ok := cfg.Channels["mochat"]; ok && ch.Enabled {
		if url := ch.Credentials["url"]; url != "" {
			out["mochat"] = mochat.New(url, b, ch.Allowlist)
		}
	}
	if ch, ok := cfg.Channels["wsgateway"]; ok && ch.Enabled {
		addr := ch.Credentials["addr"]
		if addr == "" {
			addr = ":8766"
		}
		out["wsgateway"] = wsgateway.New(addr, b, ch.Allowlist)
	}
	if ch, ok := cfg.Channels["whatsapp"]; ok && ch.Enabled {
		dbPath := ch.Credentials["db_path"]
		if dbPath == "" {
			dbPath = cfg.Agents.Workspace + "/whatsapp.db"
		}
		if adapter, err := whatsapp.New(ctx, dbPath, b, ch.Allowlist); err == nil {
			out["whatsapp"] = adapter
		} else {
			slog.Error("whatsapp: init failed", "error", err)
		}
	}
	if ch, ok := cfg.Channels["email"]; ok && ch.Enabled {
		imapAddr, smtpAddr := ch.Credentials["imap_addr"], ch.Credentials["smtp_addr"]
		username, password := ch.Credentials["username"], ch.Credentials["password"]
		if imapAddr != "" && smtpAddr != "" && username != "" {
			out["email"] = email.New(email.Config{
				IMAPAddr: imapAddr,
				SMTPAddr: smtpAddr,
				Username: username,
				Password: password,
			}, b, ch.Allowlist)
		}
	}
	return out
}

func registerBuiltinTools(reg *tools.Registry, cfg *config.Config) {
	ws := cfg.Agents.Workspace
	restrict := cfg.Tools.RestrictWorkspace

	reg.Register(&tools.ReadFileTool{Workspace: ws, Restrict: restrict})
	reg.Register(&tools.WriteFileTool{Workspace: ws, Restrict: restrict})
	reg.Register(&tools.EditFileTool{Workspace: ws, Restrict: restrict})
	reg.Register(&tools.ListDirTool{Workspace: ws, Restrict: restrict})
	timeout := time.Duration(cfg.Tools.ExecTimeoutSeconds) * time.Second
	reg.Register(&tools.ExecTool{Workspace: ws, Restrict: restrict, Timeout: timeout})
	reg.Register(&tools.WebSearchTool{APIKey: cfg.Tools.WebSearchAPIKey})
	reg.Register(&tools.WebFetchTool{})
}

func configureLogging(cfg *config.Config) {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
