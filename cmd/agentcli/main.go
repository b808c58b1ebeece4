package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

type stringList []string

func (s *stringList) String() string {
	return strings.Join(*s, ",")
}

func (s *stringList) Set(value string) error {
	*s = append(*s, value)
	return nil
}

var (
	debugMode      = flag.Bool("d", false, "Enable debug mode")
	logFile        = flag.String("log-file", "", "Log file path (logs disabled by default)")
	configPath     = flag.String("config", "config.json", "Path to the JSON config file")
	modelFlag      = flag.String("model", "", "Override the model name")
	maxTokensFlag  = flag.Int("max-tokens", 0, "Override max tokens per response")
	maxTurnsFlag   = flag.Int("max-turns", 0, "Override the tool-call turn ceiling")
	repoPathFlag   = flag.String("repo-path", "", "Repository directory the tools operate on")
	ignoreFileFlag = flag.String("ignore-file", "", "Ignore pattern file (default <repo>/.toolignore)")
	maxOutputFlag  = flag.Int("max-output-chars", 0, "Cap on tool output characters")
	allowDirs      stringList
)

func init() {
	flag.Var(&allowDirs, "allow-dir", "Additional allowed directory outside the repository (repeatable)")
}

func main() {
	flag.Parse()

	logger := initLogger(*debugMode, *logFile)
	logger.Info().Msg("agentcli starting")

	if err := runREPL(logger); err != nil {
		logger.Error().Err(err).Msg("fatal error")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func initLogger(debug bool, logFilePath string) zerolog.Logger {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	var output io.Writer
	if logFilePath != "" {
		file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			log.Fatalf("Failed to open log file: %v", err)
		}
		output = file
	} else {
		output = io.Discard
	}

	return zerolog.New(output).With().Timestamp().Logger()
}
