// Package main is the blog binary.
//
//	blog [serve]                 run the web server (default)
//	blog createsuperuser         create a staff account
//	blog deleteuser <username>   delete an account and everything it wrote
//	blog version
//
// Configuration comes from --config (YAML), a .env file and BLOG_*
// environment variables; see internal/config.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sakif/blog/internal/server"
)

const (
	Version = "0.1.0"
	appName = "blog"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "A small server-rendered blog",
		Long: `blog serves a multi-user blog: posts with categories and images,
comments, profiles and per-user themes, backed by a single SQLite file.

Running it without a subcommand starts the web server.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), opts)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file to load if present")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides config")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the web server",
			RunE: func(cmd *cobra.Command, args []string) error {
				return serve(cmd.Context(), opts)
			},
		},
		createSuperuserCmd(opts),
		deleteUserCmd(opts),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
			},
		},
	)

	return cmd
}

func serve(ctx context.Context, opts *options) error {
	cfg, logger, err := opts.load()
	if err != nil {
		return err
	}

	if !cfg.GitHubEnabled() {
		logger.Warn("GitHub credentials not set; sign in with GitHub is disabled")
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	if err := srv.Start(ctx); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		return err
	}
	return nil
}

func createSuperuserCmd(opts *options) *cobra.Command {
	var username, email, password string

	cmd := &cobra.Command{
		Use:   "createsuperuser",
		Short: "Create a staff and superuser account",
		Long: `createsuperuser creates an account that can manage categories.
The password may also be given in BLOG_SUPERUSER_PASSWORD.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("BLOG_SUPERUSER_PASSWORD")
			}
			if password == "" {
				return fmt.Errorf("a password is required (--password or BLOG_SUPERUSER_PASSWORD)")
			}

			a, err := opts.open()
			if err != nil {
				return err
			}
			defer a.Close()

			user, err := a.accounts.CreateSuperuser(cmd.Context(), username, email, password)
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Superuser %q created (id %d).\n", user.Username, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Username")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password")
	cmd.MarkFlagRequired("username")

	return cmd
}

func deleteUserCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "deleteuser <username>",
		Short: "Delete an account with its posts, comments and sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.accounts.DeleteUser(cmd.Context(), args[0]); err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User %q deleted.\n", args[0])
			return nil
		},
	}
}
