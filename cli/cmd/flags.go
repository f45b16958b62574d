// Package cmd holds the urfave/cli commands of the ripestream binary.
package cmd

import "github.com/urfave/cli/v2"

// ReadOnlyFlags are the output flags of commands that only print: --format,
// --no-color and --tui. Commands without a TUI view still accept --tui so
// they can reject it with a specific message. Each call returns fresh flag
// values.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format: json, table, yaml (default: table on a terminal, json otherwise)",
			EnvVars: []string{"RIPESTREAM_FORMAT"},
		},
		&cli.BoolFlag{
			Name:  "no-color",
			Usage: "Disable colored table output",
		},
		&cli.BoolFlag{
			Name:  "tui",
			Usage: "Open an interactive view instead of printing",
		},
	}
}
