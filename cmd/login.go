package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"carbonseed.io/console/pkg/api"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Print an access token",
	Long: `Sign in against the backend and print the access token, for use with
the --api-token flag of the simulate, relay and upload commands.`,
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)

	loginCmd.Flags().String("email", "", "Account email")
	loginCmd.Flags().String("password", "", "Account password")
	loginCmd.Flags().String("api-url", "http://localhost:8000", "Backend REST API base URL")

	_ = viper.BindPFlag("login.email", loginCmd.Flags().Lookup("email"))
	_ = viper.BindPFlag("login.password", loginCmd.Flags().Lookup("password"))
	_ = viper.BindPFlag("login.api.url", loginCmd.Flags().Lookup("api-url"))
}

func runLogin(cmd *cobra.Command, _ []string) error {
	log := GetLogger()

	creds := api.Credentials{
		Email:    viper.GetString("login.email"),
		Password: viper.GetString("login.password"),
	}
	if creds.Email == "" || creds.Password == "" {
		return errors.New("--email and --password are required")
	}

	client, err := newAPIClient(log, "login", false)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tok, err := client.Login(ctx, creds)
	if err != nil {
		if api.IsTransport(err) {
			return fmt.Errorf("login failed: %w", err)
		}
		return errors.New("invalid email or password")
	}

	fmt.Fprintln(cmd.OutOrStdout(), tok.AccessToken)
	return nil
}
