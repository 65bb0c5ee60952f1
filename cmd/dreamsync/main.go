package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/dmitrijs2005/dreamsync/internal/cli"
	"github.com/dmitrijs2005/dreamsync/internal/config"
	"github.com/dmitrijs2005/dreamsync/internal/logging"
)

// globalFlags are consumed by the config loader; everything after them
// belongs to the subcommand.
var globalFlags = []string{"-c", "-config", "-s", "-db", "-cache", "-t"}

func main() {
	cfg := config.LoadConfig()
	log := logging.NewTextLogger(os.Stderr, slog.LevelInfo)

	ctx := context.Background()

	app, err := cli.NewApp(ctx, cfg, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, cli.FormatError(err))
		os.Exit(1)
	}
	defer app.Close()

	args := commandArgs(os.Args[1:])
	if err := app.Run(ctx, args); err != nil {
		fmt.Fprintln(os.Stderr, cli.FormatError(err))
		os.Exit(1)
	}
}

// commandArgs strips the global flags (and their values) so the subcommand
// flag sets never see them.
func commandArgs(args []string) []string {
	global := make(map[string]struct{}, len(globalFlags))
	for _, f := range globalFlags {
		global[f] = struct{}{}
	}

	var rest []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		name := arg
		if j := strings.Index(arg, "="); j > 0 {
			name = arg[:j]
		}
		if _, ok := global[name]; ok {
			// Skip the separate value form too.
			if name == arg && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				i++
			}
			continue
		}
		rest = append(rest, arg)
	}
	return rest
}
