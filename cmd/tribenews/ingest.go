package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/educatorstribe/tribenews/internal/config"
	"github.com/educatorstribe/tribenews/internal/ingest"
)

var (
	ingestSources []string
	ingestJSON    bool
)

// ingestCmd creates the "ingest" subcommand: one run, then exit.
func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run one ingestion pass over the configured sources",
		RunE:  runIngest,
	}
	cmd.Flags().StringSliceVarP(&ingestSources, "source", "s", nil, "only run these source names")
	cmd.Flags().BoolVar(&ingestJSON, "json", false, "print the run result as JSON")
	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.close()

	if len(ingestSources) > 0 {
		e.cfg.Sources, err = selectSources(e.cfg.Sources, ingestSources)
		if err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := e.openStore(ctx)
	if err != nil {
		return err
	}
	f, err := e.openFetcher()
	if err != nil {
		return err
	}
	classifier, err := e.classifier()
	if err != nil {
		return err
	}

	ing := ingest.New(ingest.Deps{
		Config:     e.cfg,
		Fetcher:    f,
		Store:      store,
		Classifier: classifier,
		Logger:     e.logger,
	})

	res, err := ing.Run(ctx, ingest.TriggerCLI)
	if res != nil {
		if ingestJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(res); encErr != nil {
				return encErr
			}
		} else {
			printRun(res)
		}
	}
	return err
}

func selectSources(all []config.SourceConfig, names []string) ([]config.SourceConfig, error) {
	byName := make(map[string]config.SourceConfig, len(all))
	for _, s := range all {
		byName[s.Name] = s
	}
	var out []config.SourceConfig
	for _, n := range names {
		s, ok := byName[n]
		if !ok {
			return nil, fmt.Errorf("unknown source %q", n)
		}
		out = append(out, s)
	}
	return out, nil
}

func printRun(res *ingest.RunResult) {
	fmt.Printf("\nRun %s (%s) finished in %s\n", res.ID, res.Trigger, res.Duration.Round(time.Millisecond))
	for _, s := range res.Sources {
		if s.Skipped {
			fmt.Printf("  %-24s skipped: %s\n", s.Name, s.Error)
			continue
		}
		fmt.Printf("  %-24s %3d links  %3d accepted  %3d added  %3d backfilled  %3d touched\n",
			s.Name, s.Candidates, s.Accepted, s.Added, s.Backfilled, s.Touched)

		reasons := make([]string, 0, len(s.Dropped))
		for r := range s.Dropped {
			reasons = append(reasons, r)
		}
		sort.Strings(reasons)
		for _, r := range reasons {
			fmt.Printf("      dropped %-28s %d\n", r, s.Dropped[r])
		}
		if s.Error != "" {
			fmt.Printf("      error: %s\n", s.Error)
		}
	}
	fmt.Printf("  Total: %d added, %d backfilled, %d touched\n", res.Added, res.Backfilled, res.Touched)
}
