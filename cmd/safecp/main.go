package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bamsammich/safecp/internal/config"
	"github.com/bamsammich/safecp/internal/engine"
	"github.com/bamsammich/safecp/internal/event"
	"github.com/bamsammich/safecp/internal/stats"
	"github.com/bamsammich/safecp/internal/ui"
)

var version = "dev"

// Exit codes.
const (
	exitOK          = 0
	exitFailed      = 1
	exitUsage       = 2
	exitRollback    = 3
	exitInterrupted = 130
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	verbose     bool
	quiet       bool
	logFile     string
	configFile  string
	chunkSize   config.Size
	verify      bool
	hash        string
	bwLimit     config.Size
	noHardlink  bool
	noProgress  bool
	showVersion bool
}

func execute(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.Execute(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	return exitOK
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{chunkSize: config.Size(engine.DefaultChunkSize)}

	rootCmd := &cobra.Command{
		Use:   "safecp [flags] <source> <destination>",
		Short: "Copy one file so the destination is either complete or untouched",
		Args: func(cmd *cobra.Command, args []string) error {
			if opts.showVersion {
				return nil
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.showVersion {
				fmt.Fprintf(stdout, "safecp %s\n", version)
				return nil
			}

			cfg, err := config.Load(opts.configFile)
			if err != nil {
				return err
			}
			if err := applyConfigDefaults(cmd, cfg.Defaults, opts); err != nil {
				return err
			}
			if err := checkChunkSize(opts.chunkSize); err != nil {
				return err
			}
			algo, err := engine.ParseHashAlgo(opts.hash)
			if err != nil {
				return fmt.Errorf("invalid --hash: %w", err)
			}

			closeLog, err := setupLogging(opts, stderr)
			if err != nil {
				return err
			}
			defer closeLog()

			return copyFile(args[0], args[1], algo, opts, stdout, stderr)
		},
	}

	f := rootCmd.Flags()
	f.BoolVar(&opts.showVersion, "version", false, "print version and exit")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "suppress all output except errors")
	f.StringVar(&opts.logFile, "log", "", "write structured JSON log to FILE")
	f.StringVar(&opts.configFile, "config", "", "read flag defaults from TOML FILE")
	f.Var(&opts.chunkSize, "chunk-size", "read/write unit for byte copies (e.g. 4K, 1M)")
	f.BoolVar(&opts.verify, "verify", false, "verify checksums after a byte copy")
	f.StringVar(&opts.hash, "hash", string(engine.HashBLAKE3), "checksum for --verify: blake3 or xxhash")
	f.Var(&opts.bwLimit, "bwlimit", "bandwidth limit (e.g. 100M, 1G)")
	f.BoolVar(&opts.noHardlink, "no-hardlink", false, "always copy bytes instead of hardlinking")
	f.BoolVar(&opts.noProgress, "no-progress", false, "disable progress display")

	return rootCmd
}

// applyConfigDefaults applies config file defaults for flags not explicitly set on the CLI.
func applyConfigDefaults(cmd *cobra.Command, defaults config.DefaultsConfig, opts *options) error {
	changed := cmd.Flags().Changed

	if !changed("chunk-size") && defaults.ChunkSize != nil {
		if err := opts.chunkSize.Set(*defaults.ChunkSize); err != nil {
			return fmt.Errorf("config chunk_size: %w", err)
		}
	}
	if !changed("bwlimit") && defaults.BWLimit != nil {
		if err := opts.bwLimit.Set(*defaults.BWLimit); err != nil {
			return fmt.Errorf("config bwlimit: %w", err)
		}
	}
	if !changed("verify") && defaults.Verify != nil {
		opts.verify = *defaults.Verify
	}
	if !changed("hash") && defaults.Hash != nil {
		opts.hash = *defaults.Hash
	}
	if !changed("no-hardlink") && defaults.NoHardlink != nil {
		opts.noHardlink = *defaults.NoHardlink
	}
	if !changed("no-progress") && defaults.Progress != nil {
		opts.noProgress = !*defaults.Progress
	}
	return nil
}

// checkChunkSize runs before the engine touches anything, so an unusable
// --chunk-size or chunk_size is a usage error with the destination intact.
func checkChunkSize(n config.Size) error {
	if n < 1 || int64(n) > engine.MaxChunkSize {
		return fmt.Errorf("invalid chunk size %d: must be between 1 and %d bytes (%s)",
			int64(n), engine.MaxChunkSize, stats.FormatBytes(engine.MaxChunkSize))
	}
	return nil
}

// setupLogging installs the default slog logger. The returned func closes
// the --log file, if any.
func setupLogging(opts *options, stderr io.Writer) (func(), error) {
	logLevel := slog.LevelWarn
	if opts.verbose {
		logLevel = slog.LevelDebug
	} else if !opts.quiet {
		logLevel = slog.LevelInfo
	}
	textHandler := slog.NewTextHandler(stderr, &slog.HandlerOptions{
		Level: logLevel,
	})

	var logHandler slog.Handler = textHandler
	closeLog := func() {}
	if opts.logFile != "" {
		lf, err := os.Create(opts.logFile)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		closeLog = func() { lf.Close() }
		jsonHandler := slog.NewJSONHandler(lf, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
		logHandler = ui.NewMultiHandler(textHandler, jsonHandler)
	}
	slog.SetDefault(slog.New(logHandler))
	return closeLog, nil
}

func copyFile(src, dst string, algo engine.HashAlgo, opts *options, stdout, stderr io.Writer) error {
	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM, syscall.SIGABRT)
	defer stop()

	collector := stats.NewCollector()
	events := make(chan event.Event, 256)

	// When --log is set, tee events through a logging goroutine
	// that writes structured records before forwarding to the presenter.
	presenterEvents := (<-chan event.Event)(events)
	if opts.logFile != "" {
		teed := make(chan event.Event, 256)
		go func() {
			for ev := range events {
				logEvent(ev)
				teed <- ev
			}
			close(teed)
		}()
		presenterEvents = teed
	}

	isTTY, width := false, 0
	if f, ok := stderr.(*os.File); ok && ui.IsTTY(f) {
		isTTY, width = true, ui.TermWidth(f)
	}
	presenter := ui.NewPresenter(ui.Config{
		Writer:     stdout,
		ErrWriter:  stderr,
		Stats:      collector,
		IsTTY:      isTTY,
		Width:      width,
		Quiet:      opts.quiet,
		NoProgress: opts.noProgress,
	})

	var presenterErr error
	var presenterWg sync.WaitGroup
	presenterWg.Add(1)
	go func() {
		defer presenterWg.Done()
		presenterErr = presenter.Run(presenterEvents)
	}()

	slog.Debug("starting copy",
		"src", src,
		"dst", dst,
		"chunk_size", int64(opts.chunkSize),
		"verify", opts.verify,
		"no_hardlink", opts.noHardlink,
	)
	result := engine.Run(ctx, engine.Config{
		Src:        src,
		Dst:        dst,
		ChunkSize:  int(opts.chunkSize),
		NoHardlink: opts.noHardlink,
		Verify:     opts.verify,
		Hash:       algo,
		BWLimit:    int64(opts.bwLimit),
		Events:     events,
		Stats:      collector,
	})
	stop()
	close(events)
	presenterWg.Wait()
	if presenterErr != nil {
		fmt.Fprintf(stderr, "presenter: %v\n", presenterErr)
	}

	if summary := presenter.Summary(result.Err == nil); summary != "" {
		fmt.Fprintln(stderr, summary)
	}

	code := exitCode(result)
	if code == exitOK {
		return nil
	}

	slog.Error("copy failed", "error", result.Err)
	if result.RollbackErr != nil {
		fmt.Fprintf(stderr, "rollback incomplete: %v\n", result.RollbackErr)
		var rbErr *engine.Error
		if errors.As(result.RollbackErr, &rbErr) && rbErr.Path != "" {
			fmt.Fprintf(stderr, "original data left at %s\n", rbErr.Path)
		}
	}
	return &exitError{code: code}
}

func logEvent(ev event.Event) {
	attrs := []slog.Attr{
		slog.String("type", ev.Type.String()),
		slog.String("path", ev.Path),
	}
	if ev.Target != "" {
		attrs = append(attrs, slog.String("target", ev.Target))
	}
	if ev.Phase != "" {
		attrs = append(attrs, slog.String("phase", ev.Phase))
	}
	if ev.Size != 0 || ev.Total != 0 {
		attrs = append(attrs, slog.Int64("size", ev.Size), slog.Int64("total", ev.Total))
	}
	if ev.Error != nil {
		attrs = append(attrs, slog.String("error", ev.Error.Error()))
	}
	slog.LogAttrs(context.Background(), slog.LevelDebug, "safecp.event", attrs...)
}

// exitCode maps a transaction result to the process exit status.
func exitCode(result engine.Result) int {
	switch {
	case result.Err == nil:
		return exitOK
	case result.RollbackErr != nil:
		return exitRollback
	case errors.Is(result.Err, engine.Cancelled):
		return exitInterrupted
	default:
		return exitFailed
	}
}

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}
