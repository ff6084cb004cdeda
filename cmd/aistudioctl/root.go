package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/aistudio-dev/aistudio/internal/apiclient"
	"github.com/aistudio-dev/aistudio/internal/models"
	"github.com/aistudio-dev/aistudio/internal/retry"
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var serverFlag string
	var tokenFlag string

	rootCmd := &cobra.Command{
		Use:           "aistudioctl",
		Short:         "AI Studio command line client",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "http://localhost:3001", "AI Studio server URL")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "Bearer token (defaults to AISTUDIO_TOKEN)")

	newClient := func(opts ...apiclient.Option) *apiclient.Client {
		token := tokenFlag
		if token == "" {
			token = os.Getenv("AISTUDIO_TOKEN")
		}
		opts = append([]apiclient.Option{apiclient.WithToken(token)}, opts...)
		return apiclient.New(strings.TrimRight(serverFlag, "/"), opts...)
	}

	rootCmd.AddCommand(newSignupCommand(newClient))
	rootCmd.AddCommand(newLoginCommand(newClient))
	rootCmd.AddCommand(newGenerateCommand(newClient))
	rootCmd.AddCommand(newHistoryCommand(newClient))

	return rootCmd
}

type clientFactory func(opts ...apiclient.Option) *apiclient.Client

func newSignupCommand(newClient clientFactory) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and print a bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := newClient().Signup(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			fmt.Printf("Signed up as %s\n", resp.User.Email)
			fmt.Printf("export AISTUDIO_TOKEN=%s\n", resp.Token)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password (at least 6 characters)")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")

	return cmd
}

func newLoginCommand(newClient clientFactory) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and print a bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := newClient().Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			fmt.Printf("Logged in as %s\n", resp.User.Email)
			fmt.Printf("export AISTUDIO_TOKEN=%s\n", resp.Token)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")

	return cmd
}

func newGenerateCommand(newClient clientFactory) *cobra.Command {
	var imagePath, prompt, style string
	var retries int

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Upload an image and create a generation, retrying on overload",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !models.ValidStyle(style) {
				return fmt.Errorf("unknown style %q (valid: %s)", style, strings.Join(models.Styles, ", "))
			}

			client := newClient(
				apiclient.WithMaxRetries(retries),
				apiclient.WithOnRetry(func(attempt int, err error) {
					fmt.Fprintf(os.Stderr, "Model overloaded. Retrying (%d/%d)...\n", attempt, retries)
				}),
			)

			generation, err := client.GenerateWithRetry(cmd.Context(), imagePath, prompt, style)
			if err != nil {
				return err
			}

			fmt.Printf("Generated %s (%s)\n", generation.ImageURL, generation.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&imagePath, "image", "", "Path to a JPEG or PNG image")
	cmd.Flags().StringVar(&prompt, "prompt", "", "Prompt text (1-1000 characters)")
	cmd.Flags().StringVar(&style, "style", "artistic", "Style: photorealistic, artistic, abstract, vintage or modern")
	cmd.Flags().IntVar(&retries, "retries", retry.DefaultMaxRetries, "Maximum retries on overload")
	cmd.MarkFlagRequired("image")
	cmd.MarkFlagRequired("prompt")

	return cmd
}

func newHistoryCommand(newClient clientFactory) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent generations, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			generations, err := newClient().ListGenerations(cmd.Context(), limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CREATED\tSTATUS\tSTYLE\tPROMPT\tIMAGE")
			for _, g := range generations {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					g.CreatedAt.Format("2006-01-02 15:04:05"), g.Status, g.Style, g.Prompt, g.ImageURL)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 5, "Maximum number of generations to list")

	return cmd
}
