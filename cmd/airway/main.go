// cmd/airway/main.go
//
// Entry point for the airway CLI. Running `airway` with no subcommand opens
// the terminal questionnaire in the current directory; `serve` exposes the
// same sessions over HTTP.

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kingrea/airway/internal/chat"
	"github.com/kingrea/airway/internal/config"
	"github.com/kingrea/airway/internal/logbook"
	"github.com/kingrea/airway/internal/steps"
	"github.com/kingrea/airway/internal/tui"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var projectDir string
	cmd := &cobra.Command{
		Use:           "airway",
		Short:         "Asthma assessment and treatment-step questionnaire",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnv(projectDir)
			if err != nil {
				return err
			}
			return runTUI(env)
		},
	}
	cmd.PersistentFlags().StringVar(&projectDir, "project", "", "Project directory holding .airway/ (default: current directory)")
	cmd.AddCommand(serveCmd(&projectDir))
	cmd.AddCommand(recommendCmd())
	cmd.AddCommand(stepsCmd(&projectDir))
	return cmd
}

// env is everything the subcommands share once the project is loaded.
type env struct {
	cfg       *config.Config
	log       *logbook.Logbook
	catalog   *steps.Catalog
	assistant *chat.Assistant
}

// loadEnv reads .env, prepares .airway/ and resolves the step catalog and the
// optional chat assistant.
func loadEnv(projectDir string) (*env, error) {
	if projectDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		projectDir = cwd
	}
	if err := godotenv.Load(filepath.Join(projectDir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := config.InitAirwayDir(projectDir); err != nil {
		return nil, err
	}
	cfg, err := config.NewConfig(projectDir)
	if err != nil {
		return nil, err
	}
	lb, err := logbook.New(cfg.JourneyLogPath())
	if err != nil {
		return nil, err
	}
	catalog, err := loadCatalog(cfg)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, log: lb, catalog: catalog}
	if key := cfg.ChatAPIKey(); key != "" {
		assistant, err := chat.New(chat.Config{
			APIKey:  key,
			BaseURL: cfg.ChatBaseURL(),
			Model:   cfg.ChatModel(),
			Timeout: cfg.ChatTimeout(),
		}, chat.WithLogbook(lb))
		if err != nil {
			return nil, err
		}
		e.assistant = assistant
	} else {
		lb.Info("Chat disabled · %s is not set", cfg.Project.Chat.APIKeyEnv)
	}
	return e, nil
}

func loadCatalog(cfg *config.Config) (*steps.Catalog, error) {
	path := cfg.StepsCatalogPath()
	if path == "" {
		return steps.Default(), nil
	}
	return steps.LoadCatalogFile(path)
}

func runTUI(e *env) error {
	opts := []tui.AppOption{tui.WithLogbook(e.log)}
	if e.assistant != nil {
		opts = append(opts, tui.WithAssistant(e.assistant))
	}
	if !e.cfg.Strict() {
		opts = append(opts, tui.WithUnchecked())
	}
	p := tea.NewProgram(
		tui.NewApp(e.catalog, opts...),
		tea.WithAltScreen(), // Use alternate screen buffer (like vim does)
	)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run TUI: %w", err)
	}
	return nil
}
