package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/hibiken/asynq"
)

// JobRunner is the queue surface the jobs command drives.
type JobRunner interface {
	Trigger(ctx context.Context, name string, targets []string) (*asynq.TaskInfo, error)
	InspectQueue(ctx context.Context) (QueueStats, error)
}

// JobsCommandOptions configures command output.
type JobsCommandOptions struct {
	Stdout io.Writer
	Stderr io.Writer
}

const jobsUsage = `usage:
  ledgerboard jobs trigger <ledger:warmup|ledger:cache_bump> [entity:pk ...]
  ledgerboard jobs stats [--json]`

// RunJobsCommand executes "jobs" subcommands and returns the exit code.
func RunJobsCommand(ctx context.Context, runner JobRunner, args []string, opts JobsCommandOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if len(args) == 0 {
		_, _ = fmt.Fprintln(opts.Stderr, jobsUsage)
		return 2
	}

	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			_, _ = fmt.Fprintln(opts.Stderr, jobsUsage)
			return 2
		}
		info, err := runner.Trigger(ctx, args[1], args[2:])
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "jobs trigger: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintf(opts.Stdout, "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
		return 0
	case "stats":
		fs := flag.NewFlagSet("stats", flag.ContinueOnError)
		fs.SetOutput(opts.Stderr)
		asJSON := fs.Bool("json", false, "print JSON")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		stats, err := runner.InspectQueue(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "jobs stats: %v\n", err)
			return 1
		}
		if *asJSON {
			enc := json.NewEncoder(opts.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(stats); err != nil {
				return 1
			}
			return 0
		}
		_, _ = fmt.Fprintf(opts.Stdout, "queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
		return 0
	default:
		_, _ = fmt.Fprintln(opts.Stderr, jobsUsage)
		return 2
	}
}
