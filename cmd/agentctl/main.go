// Command agentctl is the operator CLI for the cybermed backend: start
// classification runs, watch their progress, and query results.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cybermed/agent/internal/client"
	"github.com/cybermed/agent/internal/jobs"
	"github.com/cybermed/agent/internal/logging"
)

var (
	serverURL string
	username  string
	password  string
	token     string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "agentctl",
		Short: "Operator CLI for the cybermed backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("AGENT_SERVER", "http://localhost:8080"), "backend base URL")
	rootCmd.PersistentFlags().StringVar(&username, "username", os.Getenv("AGENT_USERNAME"), "username for token login")
	rootCmd.PersistentFlags().StringVar(&password, "password", os.Getenv("AGENT_PASSWORD"), "password for token login")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("AGENT_TOKEN"), "bearer token (skips login)")

	rootCmd.AddCommand(classifyCommand())
	rootCmd.AddCommand(progressCommand())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "agentctl: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func newClient(ctx context.Context) (*client.Client, error) {
	c := client.New(serverURL)
	if token != "" {
		c.SetToken(token)
		return c, nil
	}
	if username == "" || password == "" {
		return nil, errors.New("either --token or --username and --password are required")
	}
	if err := c.Login(ctx, username, password); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return c, nil
}

func classifyCommand() *cobra.Command {
	var (
		all     bool
		ids     []string
		watch   bool
		every   time.Duration
		display time.Duration
	)

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Start a classification run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			c, err := newClient(ctx)
			if err != nil {
				return err
			}

			resp, err := c.StartClassification(ctx, client.StartRequest{
				AllDocuments: all,
				DocumentIDs:  ids,
			})
			if err != nil {
				if errors.Is(err, jobs.ErrAlreadyRunning) {
					return errors.New("a classification job is already running; try again when it finishes")
				}
				return err
			}

			fmt.Printf("accepted: %d documents\n", resp.TotalCount)
			for _, skipped := range resp.SkippedDocuments {
				fmt.Printf("skipped (already classified): %s\n", skipped)
			}
			if !watch {
				return nil
			}

			return watchProgress(ctx, c, every, display)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "classify every unclassified document")
	cmd.Flags().StringSliceVar(&ids, "ids", nil, "document ids to classify")
	cmd.Flags().BoolVar(&watch, "watch", false, "poll progress until the job finishes")
	cmd.Flags().DurationVar(&every, "every", client.DefaultInterval, "poll interval for --watch")
	cmd.Flags().DurationVar(&display, "display-window", client.DefaultDisplayWindow, "how long the final state stays displayed")

	return cmd
}

func progressCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "progress",
		Short: "Show current classification job progress",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			c, err := newClient(ctx)
			if err != nil {
				return err
			}

			p, err := c.GetProgress(ctx)
			if err != nil {
				return err
			}
			printProgress(*p)
			return nil
		},
	}
}

func watchProgress(ctx context.Context, c *client.Client, every, display time.Duration) error {
	done := make(chan struct{})
	var final client.Progress

	poller := client.NewPoller(c, logging.NewNop(),
		client.WithInterval(every),
		client.WithDisplayWindow(display),
		client.WithUpdateFunc(func(state client.State, progress client.Progress) {
			switch state {
			case client.StatePolling:
				printProgress(progress)
			case client.StateCompleted, client.StateError:
				final = progress
				printProgress(progress)
			case client.StateDormant:
				select {
				case <-done:
				default:
					close(done)
				}
			}
		}),
	)

	poller.Start(ctx)
	select {
	case <-done:
	case <-ctx.Done():
		poller.Stop()
		return ctx.Err()
	}

	if final.Status == "error" {
		return fmt.Errorf("classification failed: %s", final.Error)
	}
	return nil
}

func printProgress(p client.Progress) {
	if p.Error != "" {
		fmt.Printf("%s %d/%d (%s)\n", p.Status, p.CurrentCount, p.TotalCount, p.Error)
		return
	}
	fmt.Printf("%s %d/%d\n", p.Status, p.CurrentCount, p.TotalCount)
}
