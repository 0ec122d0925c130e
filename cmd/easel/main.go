package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	goerrors "github.com/go-errors/errors"

	"github.com/five82/easel/internal/app"
)

const usage = `usage: easel <command> [flags]

commands:
  generate   run example prompts against the generation server
  launch     start the generation and asset servers and open the browser
  serve      serve static front-end files

Run "easel <command> -h" for command flags.
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "generate":
		return runGenerate(ctx, rest, stdout, stderr)
	case "launch":
		return runLaunch(ctx, rest, stderr)
	case "serve":
		return runServe(ctx, rest, stderr)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "easel: unknown command %q\n\n%s", cmd, usage)
		return 2
	}
}

func runGenerate(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "override config path (optional)")
	pollSeconds := fs.Int("poll", 0, "job poll interval in seconds (optional, defaults to 2s)")
	images := fs.Int("images", 0, "images per job (optional, defaults to 1)")
	steps := fs.Int("steps", 0, "inference steps per job (optional, defaults to 100)")
	streamFreq := fs.Int("stream-freq", 0, "ask the server for an intermediate image every N steps (optional)")
	outDir := fs.String("out", "", "directory to save images in (optional)")
	plain := fs.Bool("plain", false, "print log lines instead of the interactive view")
	debug := fs.Bool("debug", false, "verbose logging and error stacks")
	if err := fs.Parse(args); err != nil {
		return usageExit(err)
	}
	if *streamFreq < 0 {
		fmt.Fprintln(stderr, "easel generate: -stream-freq must not be negative")
		return 2
	}

	err := app.Generate(ctx, app.GenerateOptions{
		ConfigPath: *configPath,
		Prompts:    fs.Args(),
		PollEvery:  *pollSeconds,
		Images:     *images,
		Steps:      *steps,
		StreamFreq: *streamFreq,
		OutputDir:  *outDir,
		Plain:      *plain,
		Debug:      *debug,
		Stdout:     stdout,
	})
	return report(stderr, err, *debug)
}

func runLaunch(ctx context.Context, args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("launch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "override config path (optional)")
	dir := fs.String("dir", "", "project directory containing api.py (defaults to the current directory)")
	noBrowser := fs.Bool("no-browser", false, "do not open the front-end in a browser")
	debug := fs.Bool("debug", false, "verbose logging and error stacks")
	if err := fs.Parse(args); err != nil {
		return usageExit(err)
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "easel launch: unexpected arguments %q\n", fs.Args())
		return 2
	}

	err := app.Launch(ctx, app.LaunchOptions{
		ConfigPath: *configPath,
		Dir:        *dir,
		NoBrowser:  *noBrowser,
		Debug:      *debug,
	})
	return report(stderr, err, *debug)
}

func runServe(ctx context.Context, args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", "127.0.0.1:8080", "listen address")
	dir := fs.String("dir", ".", "directory to serve")
	debug := fs.Bool("debug", false, "verbose logging and error stacks")
	if err := fs.Parse(args); err != nil {
		return usageExit(err)
	}

	err := app.Serve(ctx, app.ServeOptions{Addr: *addr, Dir: *dir, Debug: *debug})
	return report(stderr, err, *debug)
}

func usageExit(err error) int {
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	return 2
}

func report(stderr io.Writer, err error, debug bool) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(stderr, "easel: %v\n", err)
	var stackErr *goerrors.Error
	if debug && errors.As(err, &stackErr) {
		fmt.Fprintln(stderr, stackErr.ErrorStack())
	}
	return 1
}
