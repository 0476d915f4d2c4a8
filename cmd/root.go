package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/brensch/failurelogs/internal/config"
	"github.com/brensch/failurelogs/internal/db"

	_ "github.com/marcboeker/go-duckdb" // DuckDB driver
	"github.com/spf13/cobra"
)

var (
	// Config flags - bound in init()
	dbPath            string
	workDir           string
	tableName         string
	eventTableName    string
	maxAttachmentSize int64
	contextRadius     int
	contentMode       string
	contentEncoding   string
	logSuffix         string
	logFormat         string
	logLevel          string
	logOutput         string

	// Global instances populated in PersistentPreRunE
	rootLogger *slog.Logger
	dbConn     *sql.DB
	appConfig  config.Config
	logFile    *os.File
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "failurelogs",
	Short: "Extract error context from failed step log archives into DuckDB.",
	Long: `failurelogs expands failure report archives, selects the logs of a failed
step, parses their worker header and error context, and stores one record per
log in DuckDB. Attachments that already have stored records are skipped.

The primary command is 'ingest'. 'state' shows the event log and 'export'
writes stored records to Parquet.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// --- 1. Initialize Logger ---
		logger, err := newLogger(logLevel, logFormat, logOutput)
		if err != nil {
			return err
		}
		rootLogger = logger
		slog.SetDefault(rootLogger)
		rootLogger.Debug("Logger initialized", "level", logLevel, "format", logFormat, "output", logOutput)

		// --- 2. Build/Validate Config (from flags) ---
		appConfig = config.Config{
			DbPath:            dbPath,
			TableName:         tableName,
			EventTableName:    eventTableName,
			WorkDir:           workDir,
			MaxAttachmentSize: maxAttachmentSize,
			ContextRadius:     contextRadius,
			ContentMode:       contentMode,
			ContentEncoding:   contentEncoding,
			LogSuffix:         logSuffix,
		}
		rootLogger.Debug("Configuration loaded", slog.Any("config", appConfig))
		if err := appConfig.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		if appConfig.DbPath != ":memory:" {
			dbDir := filepath.Dir(appConfig.DbPath)
			if err := os.MkdirAll(dbDir, 0o755); err != nil {
				return fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
			}
		}
		if appConfig.WorkDir != "" {
			if err := os.MkdirAll(appConfig.WorkDir, 0o755); err != nil {
				return fmt.Errorf("failed to create work directory %s: %w", appConfig.WorkDir, err)
			}
		}

		// --- 3. Initialize DuckDB Connection & Schema ---
		rootLogger.Debug("Initializing DuckDB connection", "path", appConfig.DbPath)
		dbConn, err = sql.Open("duckdb", appConfig.DbPath)
		if err != nil {
			return fmt.Errorf("failed to open duckdb database (%s): %w", appConfig.DbPath, err)
		}
		pingCtx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		if err = dbConn.PingContext(pingCtx); err != nil {
			dbConn.Close()
			return fmt.Errorf("failed to ping duckdb database (%s): %w", appConfig.DbPath, err)
		}

		if err := db.InitializeSchema(cmd.Context(), dbConn, appConfig); err != nil {
			dbConn.Close()
			return fmt.Errorf("failed to initialize database schema: %w", err)
		}
		rootLogger.Debug("Database schema initialized successfully.")
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if dbConn != nil {
			if err := dbConn.Close(); err != nil {
				rootLogger.Error("Failed to close DuckDB connection cleanly", "error", err)
			}
			dbConn = nil
		}
		if logFile != nil {
			logFile.Close()
			logFile = nil
		}
		return nil
	},
}

// newLogger builds the process logger. Unknown levels fall back to info.
func newLogger(levelName, format, output string) (*slog.Logger, error) {
	var level slog.Level
	switch strings.ToLower(levelName) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var logWriter io.Writer = os.Stderr
	switch strings.ToLower(output) {
	case "", "stderr":
	case "stdout":
		logWriter = os.Stdout
	default:
		f, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", output, err)
		}
		logFile = f
		logWriter = f
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(logWriter, opts)
	} else {
		handler = slog.NewTextHandler(logWriter, opts)
	}
	return slog.New(handler), nil
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
// This is called by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if rootLogger != nil {
			rootLogger.Error("Command execution failed", "error", err)
		} else {
			fmt.Fprintf(os.Stderr, "Command execution failed: %v\n", err)
		}
		stop()
		os.Exit(1)
	}
}

func init() {
	defaults := config.Default()
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&dbPath, "db-path", "d", defaults.DbPath, "Path to DuckDB database file (:memory: for in-memory)")
	pf.StringVar(&workDir, "work-dir", "", "Parent directory for per-attachment scratch space (default system temp dir)")
	pf.StringVar(&tableName, "table", defaults.TableName, "Table holding one record per log file")
	pf.StringVar(&eventTableName, "event-table", defaults.EventTableName, "Table holding the attachment event log")
	pf.Int64Var(&maxAttachmentSize, "max-attachment-size", defaults.MaxAttachmentSize, "Maximum attachment and archive member size in bytes")
	pf.IntVar(&contextRadius, "context-radius", defaults.ContextRadius, "Lines kept on each side of an error line")
	pf.StringVar(&contentMode, "content-mode", defaults.ContentMode, "Stored content: error-context or full")
	pf.StringVar(&contentEncoding, "content-encoding", defaults.ContentEncoding, "Stored content encoding: identity, gzip or zstd")
	pf.StringVar(&logSuffix, "log-suffix", defaults.LogSuffix, "File suffix identifying log files inside archives")
	pf.StringVar(&logFormat, "log-format", "text", "Log output format (text or json)")
	pf.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&logOutput, "log-output", "stderr", "Log output destination (stderr, stdout, or file path)")

	rootCmd.Version = "0.1.0"

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(inspectCmd)
}

// Helper to get logger (could use context propagation instead)
func getLogger() *slog.Logger {
	if rootLogger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return rootLogger
}

// Helper to get DB connection
func getDB() *sql.DB {
	return dbConn
}

// Helper to get Config
func getConfig() config.Config {
	return appConfig
}
