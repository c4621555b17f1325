package main

import (
	"fmt"
	"os"
	"strings"

	"songfetch/internal/config"
)

type options struct {
	query      string
	lyricsFile string
	configPath string
}

// parseArgs parses command-line arguments and loads configuration.
// Priority: CLI flags > config file > defaults
func parseArgs() (config.Config, options, error) {
	args := os.Args[1:]

	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			printUsage()
			os.Exit(0)
		}
		if arg == "--init-config" {
			return config.Config{}, options{}, initConfigFile()
		}
	}

	var opts options

	for i := 0; i < len(args); i++ {
		if args[i] == "--config" || args[i] == "-c" {
			if i+1 >= len(args) {
				return config.Config{}, options{}, fmt.Errorf("--config requires a path argument")
			}
			opts.configPath = args[i+1]
			break
		}
	}

	cfg, err := config.LoadConfigFile(opts.configPath)
	if err != nil {
		return config.Config{}, options{}, fmt.Errorf("failed to load config: %w", err)
	}
	if opts.configPath == "" {
		opts.configPath = config.FindConfigFile()
	}

	var queryParts []string
	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "--verbose", "-v":
			cfg.Verbose = true

		case "--output", "-o":
			if i+1 >= len(args) {
				return config.Config{}, options{}, fmt.Errorf("--output requires a directory argument")
			}
			i++
			cfg.OutputDir = config.ExpandHome(args[i])

		case "--lyrics-file", "-l":
			if i+1 >= len(args) {
				return config.Config{}, options{}, fmt.Errorf("--lyrics-file requires a path argument")
			}
			i++
			opts.lyricsFile = args[i]

		case "--site", "-s":
			if i+1 >= len(args) {
				return config.Config{}, options{}, fmt.Errorf("--site requires a host argument")
			}
			i++
			cfg.Search.Site = args[i]

		case "--config", "-c":
			i++

		default:
			if len(arg) > 0 && arg[0] == '-' {
				return config.Config{}, options{}, fmt.Errorf("unknown flag: %s", arg)
			}
			queryParts = append(queryParts, arg)
		}
	}

	opts.query = strings.Join(queryParts, " ")
	if opts.query == "" {
		return config.Config{}, options{}, fmt.Errorf("a song query is required")
	}

	return cfg, opts, nil
}

// initConfigFile creates a new config file with default values
func initConfigFile() error {
	path := config.GetDefaultConfigPath()

	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Config file already exists at: %s\n", path)
		fmt.Println("Delete it first if you want to recreate it.")
		os.Exit(0)
	}

	cfg := config.DefaultConfig()

	if err := config.SaveConfigFile(cfg, path); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	fmt.Printf("Created default config file at: %s\n", path)
	fmt.Println("\nYou can now edit this file to customize your settings.")
	fmt.Println("Available options:")
	fmt.Println("  output_dir: where tagged files are saved")
	fmt.Println("  search.suffix: appended to every query (default: \"mp3 download\")")
	fmt.Println("  search.site: restrict search results to one host")
	fmt.Println("  cover_art.strict: fail the run when cover art can't be fetched")
	fmt.Println("  metadata_providers: fallback order, e.g. [spotify, deezer]")

	os.Exit(0)
	return nil
}

// printUsage displays the help message
func printUsage() {
	fmt.Println("songfetch - find a song online, download it and tag it")
	fmt.Println()
	fmt.Println("Usage: songfetch [options] <song query>")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -v, --verbose              Show detailed output")
	fmt.Println("  -o, --output <dir>         Output directory (default: ~/Music)")
	fmt.Println("  -l, --lyrics-file <path>   Embed lyrics from a text file")
	fmt.Println("  -s, --site <host>          Restrict search results to one site")
	fmt.Println("  -c, --config <path>        Path to config file")
	fmt.Println("  -h, --help                 Show this help message")
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println("  --init-config              Create a default config file")
	fmt.Println()
	fmt.Println("Config file locations (checked in order):")
	fmt.Println("  ./songfetch.yaml")
	fmt.Println("  ~/.config/songfetch/config.yaml")
	fmt.Println("  ~/.songfetch.yaml")
	fmt.Println()
	fmt.Println("Spotify metadata lookups need credentials, either in the config")
	fmt.Println("file or via SPOTIFY_CLIENT_ID / SPOTIFY_CLIENT_SECRET (a .env")
	fmt.Println("file in the working directory is read too).")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  # Find, download and tag a song")
	fmt.Println("  songfetch dreams fleetwood mac")
	fmt.Println()
	fmt.Println("  # Same, with lyrics from a file and a custom output dir")
	fmt.Println("  songfetch -l dreams.txt -o ~/songs dreams fleetwood mac")
	fmt.Println()
	fmt.Println("  # Restrict the search to one source site")
	fmt.Println("  songfetch -s example-music.com dreams fleetwood mac")
}
