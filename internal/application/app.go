// Package application wires every infrastructure component into the
// running orchestrator: the dependency-injection container, in the
// teacher's own staged-init style (initX methods called in sequence from
// NewApp, a single Start/Stop pair).
package application

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/claudecube/claudecube/internal/application/approval"
	"github.com/claudecube/claudecube/internal/application/pipeline"
	"github.com/claudecube/claudecube/internal/domain/entity"
	"github.com/claudecube/claudecube/internal/domain/service"
	"github.com/claudecube/claudecube/internal/infrastructure/audit"
	"github.com/claudecube/claudecube/internal/infrastructure/config"
	llmeval "github.com/claudecube/claudecube/internal/infrastructure/llm"
	"github.com/claudecube/claudecube/internal/infrastructure/llm/anthropic"
	"github.com/claudecube/claudecube/internal/infrastructure/policy"
	"github.com/claudecube/claudecube/internal/infrastructure/rules"
	"github.com/claudecube/claudecube/internal/infrastructure/session"
	"github.com/claudecube/claudecube/internal/infrastructure/telegram"
	"github.com/claudecube/claudecube/internal/infrastructure/tmux"
	"github.com/claudecube/claudecube/internal/infrastructure/transcript"
	httpServer "github.com/claudecube/claudecube/internal/interfaces/http"
)

// Paths collects the on-disk locations the container reads from.
type Paths struct {
	RulesPath    string
	PoliciesPath string
	AuditDir     string
}

// App is the orchestrator's dependency-injection container.
type App struct {
	config *config.Config
	logger *zap.Logger

	rulesWatcher *rules.Watcher
	registry     *session.Registry
	auditSink    *audit.Sink
	costSink     *audit.CostSink
	policyStore  *policy.Store
	tmuxAdapter  *tmux.Adapter

	anthropicClient *anthropic.Client
	evaluator       *llmeval.Evaluator

	telegramAdapter *telegram.Adapter
	coordinator     *approval.Coordinator

	preTool   *pipeline.PreTool
	stop      *pipeline.Stop
	lifecycle *pipeline.Lifecycle

	httpServer *httpServer.Server
	startedAt  time.Time
	rulesPath  string
}

// NewApp constructs every component and wires the seams between them.
// Telegram wiring is entirely skipped when cfg.Telegram.Enabled is false
// (TELEGRAM_BOT_TOKEN or TELEGRAM_CHAT_ID absent): the approval
// coordinator is then nil, and the pipelines fall back to LLM-only
// escalation with denial as the default per spec §6.
func NewApp(cfg *config.Config, paths Paths, logger *zap.Logger) (*App, error) {
	app := &App{config: cfg, logger: logger}

	if err := app.initRules(paths.RulesPath); err != nil {
		return nil, fmt.Errorf("init rules: %w", err)
	}
	if err := app.initPersistence(paths); err != nil {
		return nil, fmt.Errorf("init persistence: %w", err)
	}
	app.initLLM()
	if err := app.initTelegram(); err != nil {
		return nil, fmt.Errorf("init telegram: %w", err)
	}
	app.initPipelines()
	app.startedAt = time.Now()
	app.initHTTP()

	return app, nil
}

func (app *App) initRules(rulesPath string) error {
	watcher, err := rules.NewWatcher(rulesPath, app.logger)
	if err != nil {
		return err
	}
	app.rulesWatcher = watcher
	app.rulesPath = rulesPath
	return nil
}

func (app *App) initPersistence(paths Paths) error {
	app.tmuxAdapter = tmux.New("")
	app.registry = session.New(app.tmuxAdapter)
	app.auditSink = audit.NewSink(paths.AuditDir, app.logger)
	app.costSink = audit.NewCostSink(paths.AuditDir, app.logger)

	store, err := policy.Load(paths.PoliciesPath)
	if err != nil {
		return err
	}
	app.policyStore = store
	return nil
}

func (app *App) initLLM() {
	app.anthropicClient = anthropic.New(app.config.AnthropicAPIKey, "")
	app.evaluator = llmeval.NewEvaluator(app.anthropicClient, app.config.Escalation.EvaluatorModel, app.costSink, app.logger)
}

func (app *App) initTelegram() error {
	if !app.config.Telegram.Enabled {
		app.logger.Warn("telegram not configured, human approval channel disabled")
		return nil
	}

	adapter, err := telegram.NewAdapter(telegram.Config{
		BotToken: app.config.TelegramToken,
		ChatID:   app.config.TelegramChatID,
	}, app.logger)
	if err != nil {
		return err
	}
	app.telegramAdapter = adapter

	timeout := time.Duration(app.config.Escalation.TelegramTimeoutSeconds) * time.Second
	summarizer := transcript.NewSummarizer(app.anthropicClient, app.costSink)

	app.coordinator = approval.New(approval.Config{
		Chat:       adapter,
		Registry:   app.registry,
		Reader:     transcript.Reader{},
		Summarizer: summarizer,
		Mux:        app.tmuxAdapter,
		Classifier: app.evaluator,
		RulesPath:  app.rulesPath,
		Timeout:    timeout,
	}, app.logger)
	adapter.SetHandler(app.coordinator)

	return nil
}

func (app *App) initPipelines() {
	var approvalCoord service.ApprovalCoordinator
	var chatAdapter service.ChatAdapter
	if app.coordinator != nil {
		approvalCoord = app.coordinator
		chatAdapter = app.telegramAdapter
	}

	app.preTool = pipeline.NewPreTool(pipeline.PreToolConfig{
		Registry:  app.registry,
		Rules:     liveRules{watcher: app.rulesWatcher},
		Evaluator: app.evaluator,
		Approval:  approvalCoord,
		Policies:  app.policyStore,
		Audit:     app.auditSink,
	}, app.logger)

	var summarizer service.Summarizer
	if app.coordinator != nil {
		summarizer = transcript.NewSummarizer(app.anthropicClient, app.costSink)
	}

	app.stop = pipeline.NewStop(pipeline.StopConfig{
		Registry:   app.registry,
		Reader:     transcript.Reader{},
		Summarizer: summarizer,
		Approval:   approvalCoord,
		Policy: pipeline.StopPolicy{
			RetryOnError:       app.config.Stop.RetryOnError,
			MaxRetries:         app.config.Stop.MaxRetries,
			EscalateToTelegram: app.config.Stop.EscalateToTelegram,
		},
	}, app.logger)

	app.lifecycle = pipeline.NewLifecycle(pipeline.LifecycleConfig{
		Registry:         app.registry,
		Chat:             chatAdapter,
		NotifyOnStart:    app.config.Telegram.NotifyOnStart,
		NotifyOnComplete: app.config.Telegram.NotifyOnComplete,
	}, app.logger)
}

// liveRules forwards each evaluation to the watcher's current engine, so a
// hot-reloaded rules file takes effect on the next PreToolUse event.
type liveRules struct{ watcher *rules.Watcher }

func (l liveRules) Evaluate(toolName string, toolInput map[string]any) entity.EvaluationResult {
	return l.watcher.Current().Evaluate(toolName, toolInput)
}

func (l liveRules) Version() int { return l.watcher.Current().Version() }

func (app *App) initHTTP() {
	app.httpServer = httpServer.NewServer(httpServer.Config{
		Host: "0.0.0.0",
		Port: app.config.Server.Port,
	}, httpServer.Deps{
		PreTool:   app.preTool,
		Stop:      app.stop,
		Lifecycle: app.lifecycle,
		Registry:  app.registry,
		Rules:     app.rulesWatcher,
		StartedAt: app.startedAt,
	}, app.logger)
}

// Start brings up the HTTP listener and, if configured, the Telegram
// polling loop.
func (app *App) Start(ctx context.Context) error {
	if err := app.httpServer.Start(ctx); err != nil {
		return fmt.Errorf("start HTTP server: %w", err)
	}
	if app.telegramAdapter != nil {
		app.telegramAdapter.Start(ctx)
	}

	app.logger.Info("claudecube started", zap.Int("port", app.config.Server.Port))
	return nil
}

// Stop gracefully shuts down the HTTP listener and Telegram polling,
// bounded by ctx. In-flight approval waits are not forcibly cancelled: the
// spec already requires tolerating resolution after the HTTP timeout.
func (app *App) Stop(ctx context.Context) error {
	if app.telegramAdapter != nil {
		app.telegramAdapter.Stop()
	}
	if app.rulesWatcher != nil {
		if err := app.rulesWatcher.Close(); err != nil {
			app.logger.Warn("rules watcher close failed", zap.Error(err))
		}
	}
	return app.httpServer.Stop(ctx)
}

// Logger returns the process-wide logger.
func (app *App) Logger() *zap.Logger { return app.logger }
