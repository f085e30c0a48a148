package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	ansicolor "github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
)

const usageMessage = "Expected encoded file id argument"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	fd := os.Stderr.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		ansicolor.NoColor = true
	}

	if err := realMain(
		ctx,
		os.Args,
		os.Stdin,
		os.Stdout,
		os.Stderr,
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

func realMain(
	ctx context.Context,
	args []string,
	stdin io.Reader,
	stdout io.Writer,
	stderr io.Writer,
) error {
	exec := args[0]

	fs := flag.NewFlagSet(exec, flag.ContinueOnError)
	fs.SetOutput(stderr)
	flagHTML := fs.Bool("html", false, "read an embed page from stdin and decode the file id found in it")
	flagURL := fs.String("url", "", "fetch an embed page and decode the file id found in it")
	flagReferer := fs.String("referer", defaultReferer, "referer header sent with -url")
	flagRetries := fs.Int("retries", 2, "retries for -url")
	flagTimeout := fs.Duration("timeout", 30*time.Second, "timeout for -url")
	flagTrace := fs.Bool("trace", false, "print marker stripping steps to stderr")
	flagYAML := fs.Bool("yaml", false, "print a YAML report instead of the decoded id")
	flagDebug := fs.Bool("debug", false, "debug logging")

	rootCmd := &ffcli.Command{
		Name:       exec,
		ShortUsage: fmt.Sprintf("%v [flags] <encoded-file-id>", exec),
		FlagSet:    fs,
		Options:    []ff.Option{ff.WithEnvVarPrefix("FILEID")},
		Exec: func(ctx context.Context, args []string) error {
			logout := io.Discard
			if *flagDebug {
				logout = stderr
			}
			logger := slog.New(
				slog.NewTextHandler(
					logout,
					&slog.HandlerOptions{Level: slog.LevelDebug},
				),
			)

			var (
				encoded string
				page    *pageSource
			)
			switch {
			case *flagHTML && *flagURL != "":
				return errors.New("-html and -url are mutually exclusive")
			case *flagHTML || *flagURL != "":
				if len(args) != 0 {
					return fmt.Errorf("unexpected arguments with -html or -url: %q", args)
				}

				var (
					body []byte
					err  error
				)
				if *flagURL != "" {
					ctx, cancel := context.WithTimeout(ctx, *flagTimeout)
					defer cancel()

					client := newHTTPClient(logger, *flagRetries)
					body, err = fetchPage(ctx, client, logger, *flagURL, *flagReferer)
				} else {
					body, err = io.ReadAll(stdin)
				}
				if err != nil {
					return err
				}
				page = newPageSource(*flagURL, body)

				id, err := extractFileID(bytes.NewReader(body))
				if err != nil {
					return fmt.Errorf("extract: %w", err)
				}
				logger.Debug("extracted file id", "id", id)
				encoded = id
			default:
				if len(args) != 1 {
					fmt.Fprintln(stdout, usageMessage)
					return nil
				}
				encoded = args[0]
			}

			if !*flagTrace && !*flagYAML {
				fmt.Fprintln(stdout, decode(stderr, encoded))
				return nil
			}

			rep := inspect(stderr, encoded)
			rep.Page = page
			for _, s := range rep.Stripped {
				logger.Debug("strip", "index", s.Index, "pattern", s.Pattern, "removed", s.Removed)
			}

			if *flagTrace {
				if page != nil {
					fmt.Fprintf(stderr, "page: %s\n", page)
				}
				renderSteps(stderr, rep.Stripped)
			}

			if *flagYAML {
				return writeReport(stdout, rep)
			}

			fmt.Fprintln(stdout, rep.Decoded)
			return nil
		},
	}

	err := rootCmd.ParseAndRun(ctx, fileIDArgs(fs, args[1:]))
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	return err
}

// fileIDArgs keeps a lone encoded id that happens to start with '-' from being
// parsed as a flag.
func fileIDArgs(fs *flag.FlagSet, args []string) []string {
	if len(args) != 1 {
		return args
	}

	arg := args[0]
	if arg == "-" || arg == "--" || !strings.HasPrefix(arg, "-") {
		return args
	}

	name := strings.TrimPrefix(strings.TrimPrefix(arg, "-"), "-")
	name, _, _ = strings.Cut(name, "=")
	if name == "h" || name == "help" || fs.Lookup(name) != nil {
		return args
	}

	return []string{"--", arg}
}
