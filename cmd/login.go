package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/asistente-voz/vozterm/internal/api"
	"github.com/asistente-voz/vozterm/internal/config"
)

const authTimeout = 15 * time.Second

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the session token on the active profile",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig()
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}

		usernamePrompt := promptui.Prompt{Label: "Username"}
		username, err := usernamePrompt.Run()
		if err != nil {
			log.Fatalf("Prompt failed: %v", err)
		}

		passwordPrompt := promptui.Prompt{Label: "Password", Mask: '*'}
		password, err := passwordPrompt.Run()
		if err != nil {
			log.Fatalf("Prompt failed: %v", err)
		}

		client := api.New(cfg.GetBaseURL(), "", zap.NewNop())
		ctx, cancel := context.WithTimeout(context.Background(), authTimeout)
		defer cancel()

		token, user, err := client.Login(ctx, username, password)
		if err != nil {
			log.Fatalf("Login failed: %v", err)
		}

		cfg.SetToken(token)
		if err := cfg.Save(); err != nil {
			log.Fatalf("Failed to save config: %v", err)
		}

		fmt.Printf("Logged in as %s\n", user.Username)
		if user.IsAdmin {
			fmt.Println("Admin commands are available (vozterm admin)")
		}
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and log in",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig()
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}

		usernamePrompt := promptui.Prompt{Label: "Username"}
		username, err := usernamePrompt.Run()
		if err != nil {
			log.Fatalf("Prompt failed: %v", err)
		}

		emailPrompt := promptui.Prompt{Label: "Email"}
		email, err := emailPrompt.Run()
		if err != nil {
			log.Fatalf("Prompt failed: %v", err)
		}

		passwordPrompt := promptui.Prompt{Label: "Password", Mask: '*'}
		password, err := passwordPrompt.Run()
		if err != nil {
			log.Fatalf("Prompt failed: %v", err)
		}

		client := api.New(cfg.GetBaseURL(), "", zap.NewNop())
		ctx, cancel := context.WithTimeout(context.Background(), authTimeout)
		defer cancel()

		token, user, err := client.Register(ctx, username, email, password)
		if err != nil {
			log.Fatalf("Registration failed: %v", err)
		}

		cfg.SetToken(token)
		if err := cfg.Save(); err != nil {
			log.Fatalf("Failed to save config: %v", err)
		}

		fmt.Printf("Account created, logged in as %s\n", user.Username)
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Discard the stored session token",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig()
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}

		cfg.SetToken("")
		if err := cfg.Save(); err != nil {
			log.Fatalf("Failed to save config: %v", err)
		}

		fmt.Println("Logged out")
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in user",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig()
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		if cfg.GetToken() == "" {
			fmt.Println("Not logged in")
			return
		}

		client := api.New(cfg.GetBaseURL(), cfg.GetToken(), zap.NewNop())
		ctx, cancel := context.WithTimeout(context.Background(), authTimeout)
		defer cancel()

		user, err := client.Profile(ctx)
		if err != nil {
			log.Fatalf("Failed to fetch profile: %v", err)
		}

		fmt.Printf("%s <%s>\n", user.Username, user.Email)
		if user.IsAdmin {
			fmt.Println("Role: admin")
		}
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
}
