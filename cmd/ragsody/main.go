package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"ragsody/internal/answer"
	"ragsody/internal/config"
	"ragsody/internal/console"
	"ragsody/internal/corpus"
	"ragsody/internal/domain"
	"ragsody/internal/embedding"
	"ragsody/internal/embedding/openai"
	"ragsody/internal/embedding/tfidf"
	"ragsody/internal/generate"
	"ragsody/internal/index"
	"ragsody/internal/llm"
	llmopenai "ragsody/internal/llm/openai"
	"ragsody/internal/placement"
	"ragsody/internal/retrieval"
	"ragsody/internal/scraper"
	"ragsody/internal/service"
	"ragsody/internal/summarizer"
	"ragsody/internal/tui"
	"ragsody/internal/vectorstore"
	"ragsody/internal/vectorstore/memory"
	"ragsody/internal/vectorstore/qdrant"
)

// tokenizerLoadTimeout bounds the one-time download of the token encoding.
const tokenizerLoadTimeout = 15 * time.Second

type options struct {
	configPath string
	vaultPath  string
	logFile    string
	verbose    bool
	plain      bool
}

func main() {
	_ = godotenv.Load()

	var opts options
	root := &cobra.Command{
		Use:   "ragsody",
		Short: "Ask questions about your notes vault and draft new notes from the web",
		Long: `RAGsody indexes the markdown notes in a vault and answers questions from them.

Include one or more URLs in a request to draft a new note from those pages.
The draft is revised with your feedback until you approve it, then saved
next to the most similar existing note.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}
	root.Flags().StringVar(&opts.configPath, "config", "", "Path to YAML config file (defaults to ./config.yaml or ~/.config/ragsody/config.yaml)")
	root.Flags().StringVar(&opts.vaultPath, "vault", "", "Vault directory (overrides config and "+config.VaultPathEnv+")")
	root.Flags().StringVar(&opts.logFile, "log-file", "", "Write logs to this file")
	root.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	root.Flags().BoolVar(&opts.plain, "plain", false, "Use plain line mode instead of the terminal UI")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	interactive := !opts.plain && term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))

	logger, closeLog, err := newLogger(opts, interactive)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	// Assemble components
	emb, err := newEmbedder(cfg)
	if err != nil {
		return err
	}
	stores, closeStores, err := newStoreFactory(cfg)
	if err != nil {
		return err
	}
	defer closeStores()
	gen, model, err := newGenerator(cfg, logger)
	if err != nil {
		return err
	}

	loader := corpus.NewLoader(cfg.Vault.Path, cfg.Vault.Extensions, logger)
	builder := index.NewBuilder(loader, emb, stores, logger)
	fmt.Fprintln(os.Stderr, "Indexing vault...")
	documents, err := buildIndex(ctx, builder, logger)
	if err != nil {
		if errors.Is(err, domain.ErrCorpusUnavailable) {
			return fmt.Errorf("cannot read vault %s: %w", cfg.Vault.Path, err)
		}
		return err
	}
	if !builder.Built() {
		fmt.Fprintln(os.Stderr, "Index build failed; it will be retried with your next request.")
	}
	engine := retrieval.NewEngine(builder, logger)
	tokenCtx, cancelTokens := context.WithTimeout(ctx, tokenizerLoadTimeout)
	tokens := llm.LoadTokenCounter(tokenCtx, model)
	cancelTokens()

	session := service.New(service.Deps{
		Answerer: answer.New(engine, gen, answer.Options{
			Root:             loader.Root(),
			TopK:             cfg.Retrieval.AnswerTopK,
			MaxContextTokens: cfg.Retrieval.MaxContextTokens,
			Tokens:           tokens,
			Summarizer:       summarizer.NewFrequencySummarizer(),
			Logger:           logger,
		}),
		Drafter: generate.NewPipeline(
			scraper.NewFetcher(time.Duration(cfg.Scraper.TimeoutSecs)*time.Second, cfg.Scraper.MaxChars, cfg.Scraper.UserAgent),
			gen, logger),
		Placer:       placement.NewResolver(engine, loader.Root(), cfg.Vault.DefaultFolder, 0, logger),
		Writer:       placement.NewWriter(logger),
		Index:        builder,
		Documents:    documents,
		MaxRevisions: cfg.Revision.MaxRevisions,
		Logger:       logger,
	})

	if !interactive {
		return console.Run(ctx, os.Stdin, os.Stdout, session)
	}
	_, err = tea.NewProgram(tui.New(ctx, session), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// buildIndex builds the index once at startup and returns its size. A failed
// build is not fatal: nothing is cached and the first request that needs the
// index retries it. An unreadable vault is returned as an error.
func buildIndex(ctx context.Context, indexes retrieval.IndexProvider, logger *slog.Logger) (int, error) {
	idx, err := indexes.EnsureBuilt(ctx)
	switch {
	case err == nil:
		return idx.Len(), nil
	case errors.Is(err, domain.ErrIndexBuild):
		logger.Warn("index build failed, continuing without an index", "error", err)
		return 0, nil
	default:
		return 0, err
	}
}

func loadConfig(opts options) (*config.AppConfig, error) {
	var cfg *config.AppConfig
	var err error
	if opts.configPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(opts.configPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.ApplyEnv(os.Getenv)
	if opts.vaultPath != "" {
		cfg.Vault.Path = opts.vaultPath
	}
	if err := cfg.Validate(); err != nil {
		if cfg.Vault.Path == "" {
			return nil, fmt.Errorf("no vault configured: set vault.path, %s or --vault", config.VaultPathEnv)
		}
		return nil, err
	}
	return cfg, nil
}

func newLogger(opts options, interactive bool) (*slog.Logger, func(), error) {
	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	var w io.Writer = os.Stderr
	closer := func() {}
	switch {
	case opts.logFile != "":
		f, err := os.OpenFile(opts.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
		closer = func() { _ = f.Close() }
	case interactive:
		// the TUI owns the terminal
		w = io.Discard
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), closer, nil
}

func newEmbedder(cfg *config.AppConfig) (embedding.Embedder, error) {
	switch cfg.Embedder.Type {
	case "tfidf":
		return tfidf.NewEmbedder(), nil
	case "openai":
		e := cfg.Embedder.OpenAI
		client, err := openai.NewClient(openai.Config{
			BaseURL:    e.BaseURL,
			APIKey:     config.APIKey(e.APIKeyEnv, os.Getenv),
			APIKeyEnv:  e.APIKeyEnv,
			Model:      e.Model,
			Timeout:    time.Duration(e.TimeoutSecs) * time.Second,
			MaxRetries: e.MaxRetries,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}
}

func newStoreFactory(cfg *config.AppConfig) (index.StoreFactory, func(), error) {
	switch cfg.VectorStore.Type {
	case "memory":
		return func(context.Context) (vectorstore.Storage, error) { return memory.NewStorage(), nil }, func() {}, nil
	case "qdrant":
		q := cfg.VectorStore.Qdrant
		st, err := qdrant.NewStorage(qdrant.Config{
			Host:       q.Host,
			Port:       q.Port,
			APIKey:     q.APIKey,
			UseTLS:     q.UseTLS,
			Collection: q.Collection,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("qdrant init failed: %w", err)
		}
		// every build re-initialises the collection, so one client serves all builds
		factory := func(context.Context) (vectorstore.Storage, error) { return st, nil }
		return factory, func() { _ = st.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown vector store: %s", cfg.VectorStore.Type)
	}
}

func newGenerator(cfg *config.AppConfig, logger *slog.Logger) (domain.Generator, string, error) {
	switch cfg.Generator.Type {
	case "openai":
		g := cfg.Generator.OpenAI
		client, err := llmopenai.New(llmopenai.Config{
			BaseURL:     g.BaseURL,
			APIKey:      config.APIKey(g.APIKeyEnv, os.Getenv),
			APIKeyEnv:   g.APIKeyEnv,
			Model:       g.Model,
			Temperature: *g.Temperature,
		})
		if err != nil {
			return nil, "", fmt.Errorf("openai generator init failed: %w", err)
		}
		policy := llm.DefaultPolicy()
		policy.Timeout = time.Duration(g.TimeoutSecs) * time.Second
		policy.MaxRetries = g.MaxRetries
		return llm.NewResilient(client, policy, logger), client.Model(), nil
	default:
		return nil, "", fmt.Errorf("unknown generator: %s", cfg.Generator.Type)
	}
}
