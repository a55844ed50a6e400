package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/claudecube/claudecube/internal/application"
	"github.com/claudecube/claudecube/internal/infrastructure/config"
	"github.com/claudecube/claudecube/internal/infrastructure/installer"
	"github.com/claudecube/claudecube/internal/infrastructure/logger"
)

const binaryName = "claudecube"

func main() {
	rootCmd := &cobra.Command{
		Use:   binaryName,
		Short: "ClaudeCube — local permission-mediation service for a coding agent",
		RunE:  runMediator,
	}

	rootCmd.Flags().Bool("install", false, "register the hook bridge in the agent's settings file")
	rootCmd.Flags().Bool("uninstall", false, "remove ClaudeCube-owned hooks from the agent's settings file")
	rootCmd.Flags().Bool("status", false, "query a running instance's /status endpoint")
	rootCmd.Flags().Int("port", 0, "HTTP port (overrides orchestrator.yaml)")
	rootCmd.Flags().StringP("config", "c", "", "path to orchestrator.yaml")
	rootCmd.Flags().StringP("rules", "r", "", "path to rules.yaml")
	rootCmd.Flags().BoolP("verbose", "v", false, "console-format logging at debug level")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMediator(cmd *cobra.Command, args []string) error {
	install, _ := cmd.Flags().GetBool("install")
	uninstall, _ := cmd.Flags().GetBool("uninstall")
	status, _ := cmd.Flags().GetBool("status")
	port, _ := cmd.Flags().GetInt("port")
	configPath, _ := cmd.Flags().GetString("config")
	rulesPath, _ := cmd.Flags().GetString("rules")
	verbose, _ := cmd.Flags().GetBool("verbose")

	if install || uninstall {
		return runInstall(install)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if port != 0 {
		cfg.Server.Port = port
	}

	if status {
		return runStatus(cfg.Server.Port)
	}

	logCfg := logger.Config{Level: "info", Format: "json", OutputPath: "stdout"}
	if verbose {
		logCfg = logger.Config{Level: "debug", Format: "console", OutputPath: "stdout"}
	}
	log, err := logger.New(logCfg)
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer log.Sync()

	if rulesPath == "" {
		rulesPath = filepath.Join(".claudecube", "rules.yaml")
	}

	app, err := application.NewApp(cfg, application.Paths{
		RulesPath:    rulesPath,
		PoliciesPath: filepath.Join(".claudecube", "policies.yaml"),
		AuditDir:     filepath.Join(".claudecube", "audit"),
	}, log)
	if err != nil {
		log.Fatal("failed to initialize application", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.Start(ctx); err != nil {
		log.Fatal("failed to start application", zap.Error(err))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := app.Stop(shutdownCtx); err != nil {
		log.Error("error during shutdown", zap.Error(err))
		os.Exit(1)
	}

	log.Info("claudecube stopped cleanly")
	return nil
}

func runInstall(install bool) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("resolve home directory: %w", err)
	}
	settingsPath := filepath.Join(home, ".claude", "settings.json")

	if install {
		binaryPath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("resolve binary path: %w", err)
		}
		if err := installer.Install(settingsPath, binaryPath); err != nil {
			return fmt.Errorf("install hooks: %w", err)
		}
		fmt.Printf("installed ClaudeCube hooks into %s\n", settingsPath)
		return nil
	}

	if err := installer.Uninstall(settingsPath); err != nil {
		return fmt.Errorf("uninstall hooks: %w", err)
	}
	fmt.Printf("removed ClaudeCube hooks from %s\n", settingsPath)
	return nil
}

func runStatus(port int) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://localhost:%d/status", port))
	if err != nil {
		return fmt.Errorf("query status: %w", err)
	}
	defer resp.Body.Close()

	var body bytes.Buffer
	if _, err := body.ReadFrom(resp.Body); err != nil {
		return fmt.Errorf("read status response: %w", err)
	}
	fmt.Println(body.String())
	return nil
}
