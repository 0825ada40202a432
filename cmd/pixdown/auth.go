package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"pixdown/pkg/auth"
	"pixdown/pkg/logger"
	"pixdown/pkg/pixiv"
	"pixdown/pkg/ui"
)

var authProfile string

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored pixiv credentials",
	Long: `Store, inspect and remove pixiv refresh tokens.

Tokens are kept in the system keychain when available, falling back to an
encrypted file. The PIXDOWN_REFRESH_TOKEN environment variable is always
honored without storing anything.`,
}

// authLoginCmd stores a refresh token after verifying it works.
var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store a pixiv refresh token",
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := auth.PromptRefreshToken()
		if err != nil {
			return err
		}

		// Verify the token before storing it.
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		client := pixiv.NewClient(token, 30*time.Second, logger.GetLogger())
		account, err := client.Authenticate(ctx)
		if err != nil {
			return fmt.Errorf("token verification failed: %w", err)
		}

		manager, err := auth.NewManager()
		if err != nil {
			return err
		}
		if err := manager.Store(&auth.Credential{
			Profile:      authProfile,
			RefreshToken: token,
			AccountName:  account.Name,
		}); err != nil {
			return err
		}

		ui.PrintSuccess(fmt.Sprintf("Stored token for %s", account.Name))
		return nil
	},
}

// authShowCmd lists stored credentials with masked tokens.
var authShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List stored credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := auth.NewManager()
		if err != nil {
			return err
		}
		creds, err := manager.List()
		if err != nil {
			return err
		}
		if len(creds) == 0 {
			ui.PrintWarning("No stored credentials")
			return nil
		}
		for _, cred := range creds {
			name := cred.AccountName
			if name == "" {
				name = "(unknown account)"
			}
			fmt.Printf("%-12s  %-24s  %s\n", cred.Profile, name, auth.MaskToken(cred.RefreshToken))
		}
		return nil
	},
}

// authLogoutCmd removes a stored credential.
var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove a stored credential",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := auth.NewManager()
		if err != nil {
			return err
		}
		if err := manager.Delete(authProfile); err != nil {
			return err
		}
		ui.PrintSuccess("Credential removed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authShowCmd)
	authCmd.AddCommand(authLogoutCmd)

	authCmd.PersistentFlags().StringVarP(&authProfile, "profile", "a", "", "token profile name (default \"default\")")
}
