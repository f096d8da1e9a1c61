package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/adrg/xdg"
	"github.com/common-nighthawk/go-figure"
	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// Version is the version of the CLI
	Version = "unknown"

	// GitCommit is the commit that the CLI was built from
	GitCommit = "unknown"

	// BuildDate is the date the CLI was built
	BuildDate = "unknown"
)

type globalOptions struct {
	LogLevel LogLevel
	DataDir  string
}

func NewRootCmd() *cobra.Command {
	options := globalOptions{}
	cmd := &cobra.Command{
		Use:   "gather",
		Short: "Gather: Turn vague intentions into done tasks.",
		Long:  figure.NewColorFigure("gather", "standard", "green", true).String(),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			options.LogLevel = resolveLogLevel(cmd, &options)

			dataDir, err := resolveDataDir(options.DataDir)
			if err != nil {
				return err
			}
			options.DataDir = dataDir

			slog.SetDefault(slog.New(slog.NewJSONHandler(setupLogSink(dataDir, cmd.ErrOrStderr()), &slog.HandlerOptions{
				Level: options.LogLevel.SlogLevel(),
			})))
			cmd.SetContext(setGlobalOptions(cmd.Context(), &options))

			return nil
		},
	}

	cmd.PersistentFlags().Var(&options.LogLevel, "log-level", "set the log level")
	cmd.PersistentFlags().StringVar(&options.DataDir, "data-dir", "", "directory for tasks and preferences (defaults to the user data dir)")

	cmd.AddGroup(
		&cobra.Group{
			ID:    "core",
			Title: "Core Commands",
		},
	)

	cmd.AddGroup(
		&cobra.Group{
			ID:    "system",
			Title: "System Commands",
		},
	)

	cmd.AddCommand(NewChatCmd())
	cmd.AddCommand(NewTaskCmd())
	cmd.AddCommand(NewAuthCmd())
	return cmd
}

func Execute() {
	defer func() {
		if r := recover(); r != nil {
			sentry.CurrentHub().Recover(r)
			sentry.Flush(2 * time.Second)
			fmt.Fprintf(os.Stderr, "Panic occurred: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack:\n%s\n", debug.Stack())
			os.Exit(1)
		}
	}()

	// A local .env is a convenience for development; missing is fine.
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if dsn := os.Getenv("GATHER_SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: dsn}); err != nil {
			fmt.Printf("failed to initialize sentry: %s\n", err)
		}
	}

	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		sentry.CaptureException(err)
		sentry.Flush(2 * time.Second)
		os.Exit(1)
	}

	sentry.Flush(2 * time.Second)
}

type contextKey string

const contextKeyGlobalOptions contextKey = "globalOptions"

func setGlobalOptions(ctx context.Context, options *globalOptions) context.Context {
	return context.WithValue(ctx, contextKeyGlobalOptions, options)
}

func getGlobalOptions(ctx context.Context) *globalOptions {
	if options, ok := ctx.Value(contextKeyGlobalOptions).(*globalOptions); ok {
		return options
	}
	return &globalOptions{}
}

func resolveDataDir(flagValue string) (string, error) {
	dir := flagValue
	if dir == "" {
		dir = filepath.Join(xdg.DataHome, "gather")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dir, nil
}

func resolveLogLevel(cmd *cobra.Command, options *globalOptions) LogLevel {
	if cmd.Flags().Changed("log-level") {
		return options.LogLevel
	}

	switch os.Getenv("GATHER_LOG_LEVEL") {
	case "debug":
		return LogLevelDebug
	case "info":
		return LogLevelInfo
	case "warn":
		return LogLevelWarn
	case "error":
		return LogLevelError
	}
	return LogLevelInfo
}

func setupLogSink(dataDir string, stderr io.Writer) io.Writer {
	fileLogger := &lumberjack.Logger{
		Filename:   filepath.Join(dataDir, "gather.json"),
		MaxSize:    50,
		MaxAge:     7,
		MaxBackups: 3,
		Compress:   true,
	}
	return io.MultiWriter(stderr, fileLogger)
}
