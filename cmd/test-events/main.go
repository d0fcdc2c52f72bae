package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/okian/arena/internal/config"
	"github.com/okian/arena/internal/testevents"
	"github.com/okian/arena/pkg/logger"
)

// Default configuration constants.
const (
	defaultUsers          = 200
	defaultCompetitions   = 1000
	defaultMaxWinners     = 5
	defaultDuplicateRatio = 0.1
	defaultWorkers        = 2 // multiplier for runtime.NumCPU()
	defaultTimeout        = 30 * time.Second
	defaultSettle         = 30 * time.Second
	defaultTestTimeout    = 10 * time.Minute
)

func main() {
	// The server's own configuration supplies the address and token settings.
	serverCfg, err := config.Load(context.Background())
	if err != nil {
		_, _ = os.Stderr.WriteString("Failed to load arena config: " + err.Error() + "\n")
		os.Exit(1)
	}

	var (
		baseURL      = flag.String("url", baseURLFor(serverCfg.Addr), "Base URL of the service")
		users        = flag.Int("users", defaultUsers, "Simulated user population")
		competitions = flag.Int("competitions", defaultCompetitions, "Competitions to create and settle")
		winners      = flag.Int("winners", defaultMaxWinners, "Max winners per event")
		duplicates   = flag.Float64("duplicates", defaultDuplicateRatio, "Share of events replayed")
		workers      = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout      = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		settle       = flag.Duration("settle", defaultSettle, "Time allowed for achievements to converge")
		jwtSecret    = flag.String("jwt-secret", serverCfg.JWTSecret, "Secret the service verifies tokens with")
		jwtIssuer    = flag.String("jwt-issuer", serverCfg.JWTIssuer, "Issuer the service expects")
		outputFile   = flag.String("output", "", "Write the generated plan to this JSON file")
		logFile      = flag.String("log", "", "Also write logs to this file")
		verbose      = flag.Bool("verbose", false, "Enable verbose logging")
		help         = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		testevents.ShowHelp()
		return
	}

	closeLog, err := testevents.SetupLogging(*logFile, *verbose)
	if err != nil {
		_, _ = os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer closeLog()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	cfg := &testevents.Config{
		BaseURL:        *baseURL,
		Users:          *users,
		Competitions:   *competitions,
		MaxWinners:     *winners,
		DuplicateRatio: *duplicates,
		Workers:        *workers,
		Timeout:        *timeout,
		Settle:         *settle,
		JWTSecret:      *jwtSecret,
		JWTIssuer:      *jwtIssuer,
		OutputFile:     *outputFile,
		LogFile:        *logFile,
		Verbose:        *verbose,
	}

	if _, err := testevents.Run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "load run failed", logger.Error(err))
		closeLog()
		os.Exit(1)
	}
}

// baseURLFor turns a listen address such as ":8080" into a local URL.
func baseURLFor(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}
