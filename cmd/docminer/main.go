package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/cognicore/docminer/pkg/docminer"
	"github.com/cognicore/docminer/pkg/docminer/config"
)

type cliOptions struct {
	configPath string
	input      string
	out        string
	backend    string
	blobs      bool
	workers    int
	lang       string
	skipHidden bool
	exts       []string
	prune      bool
	debug      bool

	// set records which flags were given explicitly
	set map[string]bool
}

func parseFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("docminer", flag.ContinueOnError)
	var (
		opts cliOptions
		exts string
	)
	fs.StringVar(&opts.configPath, "config", "", "YAML config file (optional)")
	fs.StringVar(&opts.input, "input", "", "Corpus directory (required)")
	fs.StringVar(&opts.out, "out", "", "Output directory or database file (overrides store.path)")
	fs.StringVar(&opts.backend, "store", "", "Store backend: fs, sqlite or memory (overrides store.backend)")
	fs.BoolVar(&opts.blobs, "blobs", false, "Persist lemma blobs")
	fs.IntVar(&opts.workers, "workers", 0, "Documents mined concurrently (overrides workers)")
	fs.StringVar(&opts.lang, "lang", "", "Default language (overrides default_language)")
	fs.BoolVar(&opts.skipHidden, "skip-hidden", true, "Skip hidden files and directories")
	fs.StringVar(&exts, "ext", "", "Comma-separated extensions to include (default: every supported format)")
	fs.BoolVar(&opts.prune, "prune", false, "Delete stored artifacts of documents no longer in the input")
	fs.BoolVar(&opts.debug, "debug", false, "Development logging")
	if err := fs.Parse(args); err != nil {
		return cliOptions{}, err
	}
	if opts.input == "" {
		return cliOptions{}, errors.New("-input required")
	}

	opts.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })

	for _, e := range strings.Split(exts, ",") {
		if e = strings.TrimSpace(e); e != "" {
			opts.exts = append(opts.exts, e)
		}
	}
	return opts, nil
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(opts cliOptions) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if opts.out != "" {
		cfg.Store.Path = opts.out
	}
	if opts.backend != "" {
		cfg.Store.Backend = opts.backend
	}
	if opts.set["blobs"] {
		cfg.PersistLemmaBlobs = opts.blobs
	}
	if opts.workers > 0 {
		cfg.Workers = opts.workers
	}
	if opts.lang != "" {
		cfg.DefaultLanguage = opts.lang
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// buildMiner wires the corpus miner from the config. The cleanup closes the store.
func buildMiner(ctx context.Context, opts cliOptions, logger *zap.Logger) (*docminer.CorpusMiner, []string, func(), error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	loader := &config.Loader{Config: cfg, Logger: logger}
	if opts.configPath != "" {
		loader.BaseDir = filepath.Dir(opts.configPath)
	}
	components, err := loader.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load components: %w", err)
	}

	st, err := loader.OpenStore(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open store: %w", err)
	}
	cleanup := func() {
		if err := st.Close(); err != nil {
			logger.Warn("close store", zap.Error(err))
		}
	}

	cm, err := docminer.New(loader.CorpusOptions(components, st))
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}

	exts := opts.exts
	if len(exts) == 0 {
		exts = components.Decoder.Supported()
	}
	return cm, exts, cleanup, nil
}

func run(ctx context.Context, opts cliOptions, logger *zap.Logger, stdout io.Writer) error {
	cm, exts, cleanup, err := buildMiner(ctx, opts, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	src, err := docminer.NewDirSource(opts.input, docminer.DirOptions{
		SkipHidden: opts.skipHidden,
		Extensions: exts,
	})
	if err != nil {
		return fmt.Errorf("scan input: %w", err)
	}
	logger.Info("corpus scanned", zap.String("input", opts.input), zap.Int("documents", src.Len()))

	report, runErr := cm.Run(ctx, src)
	if opts.prune && runErr == nil {
		removed, err := cm.Prune(ctx, src.Refs())
		if err != nil {
			runErr = fmt.Errorf("prune: %w", err)
		}
		logger.Info("prune finished", zap.Int("removed", len(removed)))
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return runErr
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatal(err)
	}

	logger, err := newLogger(opts.debug)
	if err != nil {
		log.Fatal("Failed to create logger:", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, logger, os.Stdout); err != nil {
		logger.Error("docminer failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}
