// cmd/feedharvester/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/valpere/FeedHarvester/internal/config"
	"github.com/valpere/FeedHarvester/internal/errors"
	"github.com/valpere/FeedHarvester/internal/harvest"
	"github.com/valpere/FeedHarvester/internal/output"
	"github.com/valpere/FeedHarvester/internal/utils"
	"github.com/valpere/FeedHarvester/pkg/api"
)

// Version information (set by build flags)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// Global error service instance
var errorService = errors.NewService()

// runHarvest runs one harvest job from the command line and saves the
// records to the configured output
func runHarvest(args []string) {
	verbose := hasFlag("-v") || hasFlag("--verbose")
	errorService = errorService.WithVerbose(verbose)

	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Error: record kind required\n")
		fmt.Fprintf(os.Stderr, "Usage: feedharvester harvest <posts|videos|comments> -c <config.yaml> [options]\n")
		os.Exit(1)
	}

	if err := executeHarvest(context.Background(), args[0], args[1:], verbose); err != nil {
		fmt.Fprint(os.Stderr, errorService.FormatErrorForCLI(err))
		os.Exit(errorService.GetExitCode(err))
	}
}

// executeHarvest performs the harvest described by kind and args
func executeHarvest(ctx context.Context, kind string, args []string, verbose bool) error {
	target, err := parseTarget(kind, args)
	if err != nil {
		return err
	}

	configFile := flagValue(args, "-c", "--config")
	if configFile == "" {
		return errors.New(errors.ClassInput, "", fmt.Errorf("config file required (-c <config.yaml>)"))
	}
	cfg, err := config.LoadFromFile(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if file := flagValue(args, "-o", "--output"); file != "" {
		cfg.Output.File = file
	} else if dir := flagValue(args, "-d", "--output-dir"); dir != "" {
		file, err := outputFileIn(dir, cfg.Output.Format, target, time.Now())
		if err != nil {
			return err
		}
		cfg.Output.File = file
	}
	if verbose {
		cfg.LogLevel = utils.DebugLevel.String()
	}

	svc, err := api.New(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	if verbose {
		fmt.Printf("Harvesting up to %d %ss (%s)\n", target.Limit, target.Kind, describeTarget(target))
	}

	res, err := svc.HarvestAndSave(ctx, target)
	if err != nil {
		if len(res.Records) > 0 {
			fmt.Printf("⚠ Harvest stopped early, %d partial records saved\n", len(res.Records))
		}
		return err
	}

	fmt.Printf("Harvested %d %s records in %s (%s). Results saved to %s\n",
		len(res.Records), res.Kind, utils.FormatDuration(res.Duration), res.Stop, describeOutput(cfg, svc, res.Kind))
	return nil
}

// parseTarget builds a harvest target from the kind argument and flags
func parseTarget(kind string, args []string) (harvest.Target, error) {
	k, err := harvest.ParseKind(kind)
	if err != nil {
		return harvest.Target{}, errors.New(errors.ClassInput, "", err)
	}

	target := harvest.Target{
		Kind:  k,
		Query: flagValue(args, "-q", "--query"),
		URL:   flagValue(args, "-u", "--url"),
		Limit: 10,
	}
	if k == harvest.KindComment {
		target.Limit = 50
	}

	if raw := flagValue(args, "-n", "--limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return harvest.Target{}, errors.New(errors.ClassInput, "", errors.ErrInvalidLimit)
		}
		target.Limit = n
	}

	switch k {
	case harvest.KindComment:
		if target.URL == "" {
			return harvest.Target{}, errors.New(errors.ClassInput, "", errors.ErrMissingTarget)
		}
	default:
		if target.Query == "" {
			return harvest.Target{}, errors.New(errors.ClassInput, "", errors.ErrMissingQuery)
		}
	}
	return target, nil
}

// outputFileIn names a per-run output file in dir after the job's query
func outputFileIn(dir, format string, target harvest.Target, now time.Time) (string, error) {
	switch output.Format(format) {
	case output.FormatPostgres, output.FormatMySQL, output.FormatMongoDB:
		return "", errors.New(errors.ClassInput, "", fmt.Errorf("--output-dir requires a file format, got %s", format))
	}
	name := string(target.Kind) + "_" + target.Query
	if target.Query == "" {
		name = string(target.Kind) + "s"
	}
	return filepath.Join(dir, utils.GenerateOutputFileName(name, output.Format(format).Extension(), now)), nil
}

func describeTarget(t harvest.Target) string {
	if t.URL != "" {
		return t.URL
	}
	return fmt.Sprintf("query %q", t.Query)
}

func describeOutput(cfg *config.Config, svc *api.Service, kind harvest.Kind) string {
	switch cfg.Output.Format {
	case "postgres", "mysql", "mongodb":
		return cfg.Output.Format
	}
	return svc.OutputPath(kind)
}

// runServer starts the HTTP job surface and scheduled harvests
func runServer(configFile string) {
	verbose := hasFlag("-v") || hasFlag("--verbose")
	errorService = errorService.WithVerbose(verbose)

	if err := executeServer(configFile, hasFlag("--watch")); err != nil {
		fmt.Fprint(os.Stderr, errorService.FormatErrorForCLI(err))
		os.Exit(errorService.GetExitCode(err))
	}
}

func executeServer(configFile string, watch bool) error {
	svc, err := api.NewFromFile(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	defer svc.Close()

	if watch {
		if err := svc.Watch(configFile); err != nil {
			return fmt.Errorf("failed to watch configuration: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return svc.Serve(ctx)
}

// validateConfig checks a configuration file and prints its warnings
func validateConfig(configFile string) {
	verbose := hasFlag("-v") || hasFlag("--verbose")
	errorService = errorService.WithVerbose(verbose)

	if err := executeValidation(configFile, verbose); err != nil {
		fmt.Fprint(os.Stderr, errorService.FormatErrorForCLI(err))
		os.Exit(errorService.GetExitCode(err))
	}

	fmt.Printf("✓ Configuration file '%s' is valid\n", configFile)
}

// executeValidation performs configuration validation
func executeValidation(configFile string, verbose bool) error {
	cfg, err := config.LoadFromFile(configFile)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	result := cfg.ValidateWithDetails()
	for _, w := range result.Warnings {
		fmt.Printf("⚠ %s\n", w)
	}

	if verbose {
		fmt.Printf("Configuration details:\n")
		fmt.Printf("  Server: %s\n", cfg.Server.Address)
		fmt.Printf("  Browser backend: %s (headless: %t)\n", cfg.Browser.Backend, cfg.Browser.Headless)
		fmt.Printf("  Output format: %s\n", cfg.Output.Format)
		fmt.Printf("  Schedules: %d\n", len(cfg.Schedules))
	}

	return nil
}

// generateTemplate returns the starter configuration
func generateTemplate() (string, error) {
	data, err := config.GenerateTemplate()
	if err != nil {
		return "", fmt.Errorf("failed to generate template: %w", err)
	}
	return string(data), nil
}

// hasFlag checks if a flag is present in command line arguments
func hasFlag(flag string) bool {
	for _, arg := range os.Args {
		if arg == flag {
			return true
		}
	}
	return false
}

// flagValue returns the value following the first of names in args,
// accepting both "-n 5" and "--limit=5"
func flagValue(args []string, names ...string) string {
	for i, arg := range args {
		for _, name := range names {
			if arg == name && i+1 < len(args) {
				return args[i+1]
			}
			if strings.HasPrefix(arg, name+"=") {
				return strings.TrimPrefix(arg, name+"=")
			}
		}
	}
	return ""
}

// main function handles CLI arguments and routes to appropriate functions
func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	api.Version = version
	command := os.Args[1]

	switch command {
	case "harvest":
		runHarvest(os.Args[2:])

	case "serve":
		if len(os.Args) < 3 {
			fmt.Fprintf(os.Stderr, "Error: config file required\n")
			fmt.Fprintf(os.Stderr, "Usage: feedharvester serve <config.yaml> [--watch]\n")
			os.Exit(1)
		}
		runServer(os.Args[2])

	case "validate":
		if len(os.Args) < 3 {
			fmt.Fprintf(os.Stderr, "Error: config file required\n")
			fmt.Fprintf(os.Stderr, "Usage: feedharvester validate <config.yaml>\n")
			os.Exit(1)
		}
		validateConfig(os.Args[2])

	case "template":
		template, err := generateTemplate()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if file := flagValue(os.Args[2:], "-o", "--output"); file != "" {
			if err := os.WriteFile(file, []byte(template), 0644); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(5)
			}
			fmt.Printf("Template written to %s\n", file)
			return
		}
		fmt.Print(template)

	case "version", "--version":
		printVersion()

	case "help", "--help", "-h":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command '%s'\n", command)
		printUsage()
		os.Exit(1)
	}
}

// printUsage displays help information
func printUsage() {
	fmt.Println("FeedHarvester - Social Feed Harvesting Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  feedharvester harvest <kind> -c <config.yaml> [options]  Run one harvest job")
	fmt.Println("  feedharvester serve <config.yaml> [--watch]              Start the HTTP job server")
	fmt.Println("  feedharvester validate <config.yaml>                     Validate configuration file")
	fmt.Println("  feedharvester template [-o <file>]                       Generate configuration template")
	fmt.Println("  feedharvester version                                    Show version information")
	fmt.Println("  feedharvester help                                       Show this help message")
	fmt.Println()
	fmt.Println("Kinds:")
	fmt.Println("  posts      Posts matching a search term (requires credentials)")
	fmt.Println("  videos     Videos matching a search term")
	fmt.Println("  comments   Comments under one video")
	fmt.Println()
	fmt.Println("Harvest options:")
	fmt.Println("  -q, --query <term>                      Search term for posts and videos")
	fmt.Println("  -u, --url <video url>                   Video whose comments are harvested")
	fmt.Println("  -n, --limit <count>                     Records to collect (default 10, comments 50)")
	fmt.Println("  -o, --output <file>                     Override the configured output file")
	fmt.Println("  -d, --output-dir <dir>                  Write to a timestamped file in dir")
	fmt.Println("  -v, --verbose                           Enable verbose output")
}

// printVersion displays version information
func printVersion() {
	fmt.Printf("FeedHarvester %s\n", version)
	fmt.Printf("Build time: %s\n", buildTime)
	fmt.Printf("Git commit: %s\n", gitCommit)
}
