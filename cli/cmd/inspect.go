package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/ripestream/cli/config"
	"github.com/pithecene-io/ripestream/cli/reader"
	"github.com/pithecene-io/ripestream/cli/render"
)

// InspectCommand returns the inspect command with subcommands.
// Inspect reads recorded sessions back from storage.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Inspect a recorded session (session, metrics)",
		Subcommands: []*cli.Command{
			inspectSessionCommand(),
			inspectMetricsCommand(),
		},
	}
}

func inspectFlags() []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "Path to ripestream.yaml (default: ./ripestream.yaml when present)",
		},
		&cli.StringFlag{
			Name:     "session-id",
			Usage:    "Session ID to inspect",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "source",
			Usage: "Source partition to search (narrows the lookup)",
		},
	}
	flags = append(flags, storageFlags()...)
	return append(flags, ReadOnlyFlags()...)
}

func inspectSessionCommand() *cli.Command {
	return &cli.Command{
		Name:   "session",
		Usage:  "Inspect a recorded session by ID",
		Flags:  inspectFlags(),
		Action: inspectSessionAction,
	}
}

func inspectSessionAction(c *cli.Context) error {
	rd, err := newInspectReader(c)
	if err != nil {
		return err
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	resp, err := rd.InspectSession(c.Context, c.String("session-id"), c.String("source"))
	if err != nil {
		if reader.IsNotFound(err) {
			return cli.Exit(fmt.Sprintf("session not found: %s", c.String("session-id")), 1)
		}
		return fmt.Errorf("inspect session: %w", err)
	}

	if c.Bool("tui") {
		return r.RenderTUI("inspect_session", resp)
	}
	return r.Render(resp)
}

func inspectMetricsCommand() *cli.Command {
	return &cli.Command{
		Name:   "metrics",
		Usage:  "Show the metrics recorded for a session",
		Flags:  inspectFlags(),
		Action: inspectMetricsAction,
	}
}

func inspectMetricsAction(c *cli.Context) error {
	rd, err := newInspectReader(c)
	if err != nil {
		return err
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	snap, err := rd.SessionMetrics(c.Context, c.String("session-id"), c.String("source"))
	if err != nil {
		if reader.IsNotFound(err) {
			return cli.Exit(fmt.Sprintf("no metrics recorded for session %s", c.String("session-id")), 1)
		}
		return fmt.Errorf("inspect metrics: %w", err)
	}

	if c.Bool("tui") {
		return r.RenderTUI("stats_session", snap)
	}
	return r.Render(snap)
}

// newInspectReader resolves storage settings and opens the dataset.
func newInspectReader(c *cli.Context) (reader.Reader, error) {
	cfg, err := config.LoadOptional(c.String("config"))
	if err != nil {
		return nil, cli.Exit(err.Error(), 1)
	}

	sc := parseStorageChoice(c, cfg)
	if !sc.enabled() {
		return nil, cli.Exit("--storage-path is required\n  Example: --storage-path ./data", 1)
	}
	if err := validateStorageConfig(sc); err != nil {
		return nil, cli.Exit(err.Error(), 1)
	}

	ds, err := openReadDataset(c.Context, sc)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	return reader.NewLodeReader(ds), nil
}
