// Command aoactl is the admin CLI for an AOA Observatory server, adapted
// from the teacher's cmd/cli/main.go: a cobra root command with small,
// focused subcommands instead of the teacher's interactive agent REPL.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/aoa-dev/aoa/internal/interfaces/cli"
	"github.com/aoa-dev/aoa/sdk/aoaclient"
)

const (
	cliVersion = "0.1.0"
	cliName    = "aoactl"
)

func main() {
	serverURL := defaultServerURL()

	rootCmd := &cobra.Command{
		Use:   cliName,
		Short: "aoactl — AOA Observatory admin CLI",
		Long:  "aoactl talks to a running AOA Observatory server over its loopback HTTP API.",
	}
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", serverURL, "observatory server base URL")

	rootCmd.AddCommand(
		newVersionCmd(),
		newStatusCmd(&serverURL),
		newPredictCmd(&serverURL),
		newIntentCmd(&serverURL),
		newDomainsCmd(&serverURL),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// defaultServerURL honors the URL environment variable hook clients use to
// override the observatory's base URL (§6), falling back to the loopback
// default port.
func defaultServerURL() string {
	if url := os.Getenv("URL"); url != "" {
		return url
	}
	return "http://127.0.0.1:8080"
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s v%s\n", cliName, cliVersion)
		},
	}
}

func newStatusCmd(serverURL *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "check server health and rolling accuracy",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			client := aoaclient.NewClient(*serverURL)
			renderer := cli.NewRenderer()

			if !client.Health(ctx) {
				renderer.RenderError(fmt.Sprintf("server at %s is not reachable", *serverURL))
				os.Exit(1)
			}

			metrics, err := client.GetMetrics(ctx)
			if err != nil {
				return err
			}
			renderer.RenderMetrics(metrics)
			return nil
		},
	}
}

func newPredictCmd(serverURL *string) *cobra.Command {
	var limit, snippetLines int
	var prompt string

	cmd := &cobra.Command{
		Use:   "predict [keywords...]",
		Short: "rank files for a set of keywords or a free-text prompt",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if prompt == "" && len(args) == 0 {
				return fmt.Errorf("predict needs either keyword arguments or --prompt")
			}

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			client := aoaclient.NewClient(*serverURL)
			var files []aoaclient.PredictedFile
			var err error
			if len(args) > 0 {
				keywords := strings.Split(strings.Join(args, ","), ",")
				files, err = client.Predict(ctx, keywords, limit, snippetLines)
			} else {
				files, err = client.PredictFromPrompt(ctx, prompt, limit, snippetLines)
			}
			if err != nil {
				return err
			}
			cli.NewRenderer().RenderPredictions(files)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 3, "maximum candidates")
	cmd.Flags().IntVar(&snippetLines, "snippet-lines", 15, "lines of snippet per candidate")
	cmd.Flags().StringVar(&prompt, "prompt", "", "free-text prompt to extract keywords from, instead of positional keywords")
	return cmd
}

func newIntentCmd(serverURL *string) *cobra.Command {
	intentCmd := &cobra.Command{
		Use:   "intent",
		Short: "inspect the intent log",
	}

	var limit int
	var projectID string
	tailCmd := &cobra.Command{
		Use:   "tail",
		Short: "show the newest recorded intents",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			client := aoaclient.NewClient(*serverURL)
			raw, err := client.RecentIntents(ctx, limit, projectID)
			if err != nil {
				return err
			}
			var pretty bytes.Buffer
			if err := json.Indent(&pretty, raw, "", "  "); err != nil {
				fmt.Println(string(raw))
				return nil
			}
			fmt.Println(pretty.String())
			return nil
		},
	}
	tailCmd.Flags().IntVar(&limit, "limit", 20, "maximum records")
	tailCmd.Flags().StringVar(&projectID, "project", "", "filter by project id")

	intentCmd.AddCommand(tailCmd)
	return intentCmd
}

func newDomainsCmd(serverURL *string) *cobra.Command {
	domainsCmd := &cobra.Command{
		Use:   "domains",
		Short: "inspect and manage learned domains",
	}

	var project string
	domainsCmd.PersistentFlags().StringVar(&project, "project", "", "project id")

	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "show active domains",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			client := aoaclient.NewClient(*serverURL)
			domains, err := client.DomainsList(ctx, project, limit)
			if err != nil {
				return err
			}
			cli.NewRenderer().RenderDomains(domains)
			return nil
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", 50, "maximum domains")

	learnedCmd := &cobra.Command{
		Use:   "learned",
		Short: "clear the learning_pending flag",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return aoaclient.NewClient(*serverURL).DomainsLearned(ctx, project)
		},
	}

	tuneCmd := &cobra.Command{
		Use:   "tune",
		Short: "run the math-only tuning pass now",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			result, err := aoaclient.NewClient(*serverURL).DomainsTuneMath(ctx, project)
			if err != nil {
				return err
			}
			cli.NewRenderer().RenderTuneResult(result)
			return nil
		},
	}

	var termsCSV string
	addCmd := &cobra.Command{
		Use:   "add <name>",
		Short: "propose a new domain (name must begin with @)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			terms := strings.Split(termsCSV, ",")
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return aoaclient.NewClient(*serverURL).DomainsAdd(ctx, project, []aoaclient.ProposedDomain{
				{Name: args[0], Terms: terms},
			})
		},
	}
	addCmd.Flags().StringVar(&termsCSV, "terms", "", "comma-separated terms (3-7, each >= 3 chars)")

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "render a markdown summary of domains, orphans, and accuracy",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			client := aoaclient.NewClient(*serverURL)
			stats, err := client.DomainsStats(ctx, project)
			if err != nil {
				return err
			}
			orphans, err := client.DomainsOrphans(ctx, project, 20)
			if err != nil {
				return err
			}
			metrics, err := client.GetMetrics(ctx)
			if err != nil {
				return err
			}
			cli.NewRenderer().RenderReport(stats, orphans, metrics)
			return nil
		},
	}

	domainsCmd.AddCommand(listCmd, addCmd, learnedCmd, tuneCmd, reportCmd)
	return domainsCmd
}
