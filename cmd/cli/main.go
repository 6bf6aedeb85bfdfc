package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/specialistvlad/questgrid/internal/app"
	"github.com/specialistvlad/questgrid/internal/cli"
	"github.com/specialistvlad/questgrid/internal/quest"
	"github.com/specialistvlad/questgrid/internal/suite"
	"github.com/specialistvlad/questgrid/internal/world/db"
)

// main is the entrypoint for the questgrid command.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := run(os.Stdout, os.Args[1:]); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run loads the suite, builds the registry and prints a summary of both.
// With database checks enabled it then connects to every suite database on
// the worker pool, serving the health check for the duration.
func run(outW io.Writer, args []string) error {
	settings, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	ctx := context.Background()
	rt, err := app.New(ctx, outW, settings, nil)
	if err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}
	addr, err := rt.StartHealthcheck()
	if err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}
	defer func() { _ = rt.StopHealthcheck(ctx) }()

	decls, err := rt.Registry().Declarations()
	if err != nil {
		return err
	}
	s := rt.Suite()

	fmt.Fprintf(outW, "suite files:  %d\n", len(s.Files))
	fmt.Fprintf(outW, "credentials:  %v\n", suite.Names(s.Credentials))
	fmt.Fprintf(outW, "endpoints:    %v\n", suite.Names(s.Endpoints))
	fmt.Fprintf(outW, "databases:    %v\n", suite.Names(s.Databases))
	fmt.Fprintf(outW, "static keys:  %v\n", suite.Names(s.Static))
	fmt.Fprintf(outW, "components:   %d\n", len(decls))
	for _, d := range decls {
		fmt.Fprintf(outW, "  %s (%s)\n", d.Key, d.Source)
	}
	if addr != "" {
		fmt.Fprintf(outW, "healthcheck:  %s\n", addr)
	}

	if !settings.CheckDatabases {
		return nil
	}
	cases := databaseCases(s)
	if err := rt.RunParallel(ctx, cases...); err != nil {
		return fmt.Errorf("database checks failed: %w", err)
	}
	fmt.Fprintf(outW, "checks:       %d passed (%d workers)\n", len(cases), settings.Workers)
	return nil
}

// databaseCases builds one connectivity case per suite database.
func databaseCases(s *suite.Suite) []app.Case {
	cases := make([]app.Case, 0, len(s.Databases))
	for _, name := range suite.Names(s.Databases) {
		database := s.Databases[name]
		cases = append(cases, app.Case{
			Name: "database:" + name,
			Body: func(ctx context.Context, q *quest.Quest) error {
				_, err := quest.MustUse[*db.World](q).Connect(ctx, database, database.DSN)
				return err
			},
		})
	}
	return cases
}
