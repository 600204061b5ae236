package sweeply

import (
	stdlog "log"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sweeply/sweeply/internal/conf"
	"github.com/sweeply/sweeply/pkg/util"
)

var Debug bool

func initLog(cmd *cobra.Command, args []string) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	stdlog.SetOutput(os.Stderr)
}

// initFileLog routes logs to <app-data>/logs/sweeply.log, falling back
// to stderr when the file cannot be opened. Used by non-interactive
// commands whose stdout carries JSON.
func initFileLog(cmd *cobra.Command, args []string) {
	logDir := conf.LogsDir()
	if err := util.PrepareDir(logDir); err != nil {
		initLog(cmd, args)
		return
	}
	logPath := filepath.Join(logDir, "sweeply.log")

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		initLog(cmd, args)
		log.Warn().Err(err).Str("path", logPath).Msg("failed to open log file, fallback to stderr")
		return
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: logFile, NoColor: true, TimeFormat: time.RFC3339})
	stdlog.SetOutput(logFile)

	if Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}
