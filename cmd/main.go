package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"github.com/xhad/scholar/pkg/chunker"
	cfgPkg "github.com/xhad/scholar/pkg/config"
	"github.com/xhad/scholar/pkg/llm"
	"github.com/xhad/scholar/pkg/memory"
	"github.com/xhad/scholar/pkg/pipeline"
	"github.com/xhad/scholar/pkg/scraper"
	"github.com/xhad/scholar/pkg/search"
	"github.com/xhad/scholar/pkg/store"
	"github.com/xhad/scholar/server"
)

type Flags struct {
	ConfigPath string
	IngestURL  string
	BatchFile  string
	Query      string
	Serve      bool
	Limit      int
}

func main() {
	flags := parseFlags()

	if err := run(flags); err != nil {
		log.Fatal(err)
	}
}

func parseFlags() Flags {
	var flags Flags

	flag.StringVar(&flags.ConfigPath, "config", "", "Path to config file")
	flag.StringVar(&flags.IngestURL, "ingest", "", "URL to ingest")
	flag.StringVar(&flags.BatchFile, "batch", "", "File with one URL per line to ingest")
	flag.StringVar(&flags.Query, "query", "", "Run a hybrid search for the given query")
	flag.BoolVar(&flags.Serve, "serve", false, "Start the HTTP API server")
	flag.IntVar(&flags.Limit, "limit", 5, "Maximum results per retrieval pass")
	flag.Parse()

	return flags
}

func run(flags Flags) error {
	// .env is optional; real environment variables win either way.
	_ = godotenv.Load()

	config, err := cfgPkg.LoadConfig(flags.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if errs := config.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config error: %s", e.Error())
		}
		return fmt.Errorf("invalid configuration (%d errors)", len(errs))
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	ctx := context.Background()

	embedder, err := llm.NewEmbedder(llm.EmbedderConfig{
		Model:     config.Embedding.Model,
		BaseURL:   config.Embedding.BaseURL,
		Dimension: config.Embedding.Dimension,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %w", err)
	}

	vectors, err := store.NewVectorStore(ctx, store.VectorStoreConfig{
		ConnString: config.VectorStore.URL,
		Collection: config.VectorStore.Collection,
		VectorDim:  config.Embedding.Dimension,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize vector store: %w", err)
	}
	defer vectors.Close()

	graph, err := store.NewGraphStore(store.GraphStoreConfig{
		URI:      config.GraphStore.URI,
		User:     config.GraphStore.User,
		Password: config.GraphStore.Password,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize graph store: %w", err)
	}
	defer graph.Close(ctx)

	switch {
	case flags.IngestURL != "" || flags.BatchFile != "":
		return runIngest(ctx, flags, config, embedder, vectors, graph)
	case flags.Query != "":
		searcher := search.New(embedder, vectors, graph)
		fmt.Println(searcher.Search(ctx, flags.Query, flags.Limit))
		return nil
	case flags.Serve:
		return runServe(config, embedder, vectors, graph)
	default:
		flag.Usage()
		return fmt.Errorf("one of -ingest, -batch, -query or -serve is required")
	}
}

func buildPipeline(config *cfgPkg.Config, embedder *llm.Embedder, vectors *store.VectorStore, graph *store.GraphStore) (*pipeline.Pipeline, error) {
	extractor, err := llm.NewExtractor(llm.ExtractorConfig{
		Model:   config.LLM.Model,
		BaseURL: config.LLM.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize entity extractor: %w", err)
	}

	chunk := chunker.NewWithConfig(chunker.ChunkerConfig{
		ChunkSize:           config.Chunker.ChunkSize,
		SimilarityThreshold: config.Chunker.SimilarityThreshold,
	}, embedder)

	scrape := scraper.NewWithConfig(scraper.ScraperConfig{
		RateLimit: config.Scraper.RateLimit,
		Timeout:   time.Duration(config.Scraper.TimeoutSeconds) * time.Second,
	})

	return pipeline.New(scrape, chunk, extractor, vectors, graph), nil
}

func runIngest(ctx context.Context, flags Flags, config *cfgPkg.Config, embedder *llm.Embedder, vectors *store.VectorStore, graph *store.GraphStore) error {
	p, err := buildPipeline(config, embedder, vectors, graph)
	if err != nil {
		return err
	}

	urls := []string{flags.IngestURL}
	if flags.BatchFile != "" {
		urls, err = readURLFile(flags.BatchFile)
		if err != nil {
			return err
		}
		if len(urls) == 0 {
			return fmt.Errorf("no URLs found in %s", flags.BatchFile)
		}
	}

	bar := getProgressBar(len(urls), "Ingesting documents...")
	failed := 0

	for _, url := range urls {
		result, err := p.IngestURL(ctx, url)
		bar.Add(1)
		if err != nil {
			failed++
			color.Red("\n✗ %s: %v", url, err)
			continue
		}
		if result.Warning != "" {
			color.Yellow("\n⚠ %s: %s", url, result.Warning)
		}
	}

	color.Green("\n✓ Ingested %d of %d documents\n", len(urls)-failed, len(urls))
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(urls))
	}
	return nil
}

func runServe(config *cfgPkg.Config, embedder *llm.Embedder, vectors *store.VectorStore, graph *store.GraphStore) error {
	p, err := buildPipeline(config, embedder, vectors, graph)
	if err != nil {
		return err
	}

	chatEngine, err := llm.NewChatEngine(llm.ChatConfig{
		Model:       config.LLM.Model,
		MaxTokens:   config.LLM.MaxTokens,
		Temperature: config.LLM.Temperature,
		BaseURL:     config.LLM.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize chat engine: %w", err)
	}

	episodes, err := memory.Open(config.Memory.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open episode store: %w", err)
	}
	defer episodes.Close()

	searcher := search.New(embedder, vectors, graph)
	srv := server.New(p, searcher, chatEngine, episodes, graph)

	color.Cyan("Serving API on %s", config.Server.Addr)
	return srv.ListenAndServe(config.Server.Addr)
}

func readURLFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open URL file: %w", err)
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, scanner.Err()
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("docs"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}
