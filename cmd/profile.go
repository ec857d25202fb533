package cmd

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/asistente-voz/vozterm/internal/api"
	"github.com/asistente-voz/vozterm/internal/config"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage backend profiles",
	Long:  `Manage backend profiles for different servers and voice configurations.`,
}

var listProfilesCmd = &cobra.Command{
	Use:   "list",
	Short: "List all profiles",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig()
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}

		fmt.Printf("Active Profile: %s\n\n", cfg.ActiveProfile)
		fmt.Println("Available Profiles:")
		for name, profile := range cfg.Profiles {
			marker := ""
			if name == cfg.ActiveProfile {
				marker = " (active)"
			}
			fmt.Printf("  %s%s\n", name, marker)
			fmt.Printf("    Backend: %s\n", profile.BaseURL)
			fmt.Printf("    Wake word: %s\n", profile.WakeWord)
			loggedIn := "No"
			if profile.Token != "" {
				loggedIn = "Yes"
			}
			fmt.Printf("    Logged in: %s\n", loggedIn)
			fmt.Println()
		}
	},
}

var showProfileCmd = &cobra.Command{
	Use:   "show [profile-name]",
	Short: "Show profile details",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig()
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}

		profileName := args[0]
		profile, exists := cfg.Profiles[profileName]
		if !exists {
			log.Fatalf("Profile '%s' does not exist", profileName)
		}

		fmt.Printf("Profile: %s\n", profileName)
		fmt.Printf("Backend: %s\n", profile.BaseURL)
		fmt.Printf("Wake word: %s\n", profile.WakeWord)
		fmt.Printf("Auto speak: %v\n", profile.AutoSpeak)
		fmt.Printf("Voice: %s (rate %.2f)\n", orDefault(profile.VoiceName, "system default"), profileRate(profile))
		token := "Not set"
		if profile.Token != "" {
			token = "Set (hidden for security)"
		}
		fmt.Printf("Session token: %s\n", token)
	},
}

var addProfileCmd = &cobra.Command{
	Use:   "add [profile-name]",
	Short: "Add a new profile",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig()
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}

		var profileName string
		if len(args) > 0 {
			profileName = args[0]
		} else {
			prompt := promptui.Prompt{
				Label: "Profile name",
			}
			profileName, err = prompt.Run()
			if err != nil {
				log.Fatalf("Prompt failed: %v", err)
			}
		}

		if _, exists := cfg.Profiles[profileName]; exists {
			log.Fatalf("Profile '%s' already exists", profileName)
		}

		profile, err := promptProfile(config.Profile{
			WakeWord:  "asistente",
			AutoSpeak: true,
			VoiceRate: 1.0,
		})
		if err != nil {
			log.Fatalf("Prompt failed: %v", err)
		}

		cfg.Profiles[profileName] = profile

		if err := cfg.Save(); err != nil {
			log.Fatalf("Failed to save config: %v", err)
		}

		fmt.Printf("Profile '%s' added successfully!\n", profileName)
	},
}

var editProfileCmd = &cobra.Command{
	Use:   "edit [profile-name]",
	Short: "Edit an existing profile",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig()
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}

		var profileName string
		if len(args) > 0 {
			profileName = args[0]
		} else {
			profileNames := make([]string, 0, len(cfg.Profiles))
			for name := range cfg.Profiles {
				profileNames = append(profileNames, name)
			}

			if len(profileNames) == 0 {
				log.Fatalf("No profiles available to edit")
			}

			prompt := promptui.Select{
				Label: "Select profile to edit",
				Items: profileNames,
			}
			_, profileName, err = prompt.Run()
			if err != nil {
				log.Fatalf("Selection failed: %v", err)
			}
		}

		profile, exists := cfg.Profiles[profileName]
		if !exists {
			log.Fatalf("Profile '%s' does not exist", profileName)
		}

		updated, err := promptProfile(profile)
		if err != nil {
			log.Fatalf("Prompt failed: %v", err)
		}

		cfg.Profiles[profileName] = updated

		if err := cfg.Save(); err != nil {
			log.Fatalf("Failed to save config: %v", err)
		}

		fmt.Printf("Profile '%s' updated successfully!\n", profileName)

		if updated.Token != "" {
			if err := pushPreferences(updated); err != nil {
				fmt.Printf("Warning: could not sync preferences to the server: %v\n", err)
			} else {
				fmt.Println("Preferences synced to your account")
			}
		}
	},
}

// preferencesFromProfile maps the local voice settings onto the account
// preference fields.
func preferencesFromProfile(p config.Profile) api.Preferences {
	return api.Preferences{
		WakeWord:   p.WakeWord,
		VoiceType:  p.VoiceName,
		VoiceSpeed: profileRate(p),
	}
}

// pushPreferences mirrors the edited voice settings to the logged-in
// account, so other clients pick them up.
func pushPreferences(profile config.Profile) error {
	client := api.New(profile.BaseURL, profile.Token, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), authTimeout)
	defer cancel()

	_, err := client.UpdatePreferences(ctx, preferencesFromProfile(profile))
	return err
}

var removeProfileCmd = &cobra.Command{
	Use:   "remove [profile-name]",
	Short: "Remove a profile",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig()
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}

		profileName := args[0]
		if _, exists := cfg.Profiles[profileName]; !exists {
			log.Fatalf("Profile '%s' does not exist", profileName)
		}
		if profileName == cfg.ActiveProfile {
			log.Fatalf("Cannot remove the active profile; switch with 'vozterm use' first")
		}

		confirm := promptui.Prompt{
			Label:     fmt.Sprintf("Remove profile '%s'", profileName),
			IsConfirm: true,
		}
		if _, err := confirm.Run(); err != nil {
			fmt.Println("Aborted")
			return
		}

		delete(cfg.Profiles, profileName)

		if err := cfg.Save(); err != nil {
			log.Fatalf("Failed to save config: %v", err)
		}

		fmt.Printf("Profile '%s' removed\n", profileName)
	},
}

// promptProfile walks through every profile field, using the given profile
// as defaults.
func promptProfile(defaults config.Profile) (config.Profile, error) {
	profile := defaults

	baseURLPrompt := promptui.Prompt{
		Label:   "Backend URL",
		Default: defaults.BaseURL,
	}
	baseURL, err := baseURLPrompt.Run()
	if err != nil {
		return profile, err
	}
	profile.BaseURL = baseURL

	wakeWordPrompt := promptui.Prompt{
		Label:   "Wake word",
		Default: defaults.WakeWord,
	}
	wakeWord, err := wakeWordPrompt.Run()
	if err != nil {
		return profile, err
	}
	profile.WakeWord = wakeWord

	autoSpeakPrompt := promptui.Select{
		Label: "Read answers aloud automatically",
		Items: []string{"yes", "no"},
	}
	_, autoSpeak, err := autoSpeakPrompt.Run()
	if err != nil {
		return profile, err
	}
	profile.AutoSpeak = autoSpeak == "yes"

	voicePrompt := promptui.Prompt{
		Label:   "Voice name (optional)",
		Default: defaults.VoiceName,
	}
	voice, err := voicePrompt.Run()
	if err != nil {
		return profile, err
	}
	profile.VoiceName = voice

	ratePrompt := promptui.Prompt{
		Label:   "Voice rate",
		Default: strconv.FormatFloat(profileRate(defaults), 'f', 2, 64),
		Validate: func(input string) error {
			_, err := strconv.ParseFloat(input, 64)
			return err
		},
	}
	rate, err := ratePrompt.Run()
	if err != nil {
		return profile, err
	}
	profile.VoiceRate, _ = strconv.ParseFloat(rate, 64)

	return profile, nil
}

func profileRate(p config.Profile) float64 {
	if p.VoiceRate <= 0 {
		return 1.0
	}
	return p.VoiceRate
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func init() {
	profileCmd.AddCommand(listProfilesCmd)
	profileCmd.AddCommand(showProfileCmd)
	profileCmd.AddCommand(addProfileCmd)
	profileCmd.AddCommand(editProfileCmd)
	profileCmd.AddCommand(removeProfileCmd)
}
