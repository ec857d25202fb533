package cmd

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/asistente-voz/vozterm/internal/app"
	"github.com/asistente-voz/vozterm/internal/config"
	"github.com/asistente-voz/vozterm/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "vozterm",
	Short: "Asistente de voz para la terminal",
	Long:  `VozTerm is a terminal voice assistant client: ask questions by typing or speaking, confirm web searches and knowledge updates, and listen to the answers.`,
	Run: func(cmd *cobra.Command, args []string) {
		runApp()
	},
}

func runApp() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logPath, err := config.LogPath()
	if err != nil {
		log.Fatalf("Failed to resolve log path: %v", err)
	}
	logger, err := logging.New(logPath, cfg.GetLogLevel())
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	application, err := app.NewApplication(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}
	defer application.Stop()

	if err := application.Start(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Printf("Command execution error: %v", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(profileCmd)
}
