package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jmylchreest/crawlcore/internal/logger"
	"github.com/jmylchreest/crawlcore/internal/memstat"
	"github.com/jmylchreest/crawlcore/internal/output"
	"github.com/jmylchreest/crawlcore/pkg/browser"
	"github.com/jmylchreest/crawlcore/pkg/cache"
	"github.com/jmylchreest/crawlcore/pkg/crawlresult"
	"github.com/jmylchreest/crawlcore/pkg/deepcrawl"
	"github.com/jmylchreest/crawlcore/pkg/dispatcher"
	"github.com/jmylchreest/crawlcore/pkg/extract"
	"github.com/jmylchreest/crawlcore/pkg/llm"
	"github.com/jmylchreest/crawlcore/pkg/orchestrator"
	"github.com/jmylchreest/crawlcore/pkg/schema"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Fetch and optionally extract structured data from one or more URLs",
	Long: `Fetch URLs through the browser pool, producing markdown, media/link
inventories, and (optionally) structured records via a CSS, XPath, or
LLM-backed extraction strategy.

With one --url, a single page is fetched. With multiple --url flags the
Memory-Adaptive Dispatcher fans the batch out under a concurrency and
memory budget. With --deep-crawl, a single seed URL is expanded into a
frontier of links using the chosen discipline.`,
	RunE: runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)

	flags := crawlCmd.Flags()

	flags.StringSliceP("url", "u", nil, "URL(s) to crawl (can be repeated)")

	// Extraction strategy
	flags.String("strategy", "", "extraction strategy: css, xpath, llm (omit to skip extraction)")
	flags.String("schema", "", "path to a schema file (required): a field schema for css/xpath, an output-record schema for llm")
	flags.StringP("provider", "p", "", "LLM provider: anthropic, openai, openrouter, ollama (for --strategy llm)")
	flags.StringP("model", "m", "", "model name (provider-specific)")
	flags.StringP("api-key", "k", "", "API key (or use env var)")
	flags.Int("chunk-tokens", 0, "split extraction input into chunks of roughly this many tokens (0=no chunking)")
	flags.Float64("chunk-overlap", 0.1, "fraction of each chunk repeated into the next")

	// Output
	flags.StringP("output", "o", "", "output file (default: stdout)")
	flags.String("format", "json", "output format: json, jsonl, yaml")

	// Fetch settings
	flags.Duration("timeout", 30*time.Second, "page navigation timeout")
	flags.Bool("headless", true, "run the browser headless")
	flags.Bool("stealth", false, "enable anti-bot detection evasion")
	flags.Bool("googlebot", false, "spoof the Googlebot user agent")
	flags.String("extraction-input", "fit_markdown", "content fed to the extraction strategy: markdown, fit_markdown, html")

	// Crawl-plane settings
	flags.Bool("check-robots", false, "honor robots.txt before fetching")
	flags.StringSlice("proxy", nil, "proxy server(s) to round-robin across (host:port)")
	flags.IntP("concurrency", "c", 10, "max concurrent sessions for multi-URL runs")
	flags.Bool("stream", false, "emit results as they complete instead of all at once")

	// Cache
	flags.String("cache", "disabled", "cache mode: enabled, disabled, read_only, write_only, bypass")
	flags.Int("cache-size", 1000, "max cached entries")
	flags.Duration("cache-ttl", time.Hour, "cache entry time-to-live")

	// Deep crawl
	flags.String("deep-crawl", "", "deep-crawl discipline: bfs, dfs, best-first (requires exactly one --url)")
	flags.Int("max-depth", 1, "max link depth for deep crawl")
	flags.Int("max-pages", 0, "max pages to visit for deep crawl (0=unlimited)")

	_ = viper.BindPFlag("provider", flags.Lookup("provider"))
	_ = viper.BindPFlag("model", flags.Lookup("model"))
	_ = viper.BindPFlag("api_key", flags.Lookup("api-key"))
}

func runCrawl(cmd *cobra.Command, args []string) error {
	logger.Init(logger.Options{
		Debug: viper.GetBool("debug"),
		Quiet: viper.GetBool("quiet"),
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	flags := cmd.Flags()

	urls, _ := flags.GetStringSlice("url")
	if len(urls) == 0 {
		return cmd.Help()
	}

	cfg, err := buildRunConfig(flags)
	if err != nil {
		return err
	}

	browserCfg := browser.DefaultConfig()
	browserCfg.Headless, _ = flags.GetBool("headless")
	browserCfg.Stealth, _ = flags.GetBool("stealth")
	browserCfg.Googlebot, _ = flags.GetBool("googlebot")

	opts, err := buildOrchestratorOptions(flags)
	if err != nil {
		return err
	}

	orch, err := orchestrator.New(browserCfg, memstat.DefaultReader(), opts...)
	if err != nil {
		logger.Error("failed to initialize orchestrator", "error", err)
		return err
	}
	defer func() { _ = orch.Shutdown() }()

	writer, closeWriter, err := buildWriter(flags)
	if err != nil {
		return err
	}
	defer closeWriter()

	deepCrawlName, _ := flags.GetString("deep-crawl")
	stream, _ := flags.GetBool("stream")
	concurrency, _ := flags.GetInt("concurrency")

	switch {
	case deepCrawlName != "":
		if len(urls) != 1 {
			return fmt.Errorf("--deep-crawl requires exactly one --url as the seed")
		}
		strategy, err := buildDeepCrawlStrategy(deepCrawlName, flags)
		if err != nil {
			return err
		}
		disp := dispatcher.NewMemoryAdaptiveDispatcher(concurrency, memstat.DefaultReader())
		return runDeepCrawl(ctx, orch, urls[0], cfg, strategy, disp, writer, stream)

	case len(urls) == 1:
		result := orch.Run(ctx, urls[0], cfg)
		return writeResults(writer, []crawlresult.Result{result})

	default:
		disp := dispatcher.NewMemoryAdaptiveDispatcher(concurrency, memstat.DefaultReader())
		return runMany(ctx, orch, urls, cfg, disp, writer, stream)
	}
}

func runMany(ctx context.Context, orch *orchestrator.Orchestrator, urls []string, cfg crawlresult.RunConfig, disp dispatcher.Dispatcher, w output.Writer, stream bool) error {
	if !stream {
		results, err := orch.RunMany(ctx, urls, cfg, disp)
		if err != nil {
			return err
		}
		return writeResults(w, results)
	}

	results, err := orch.RunManyStream(ctx, urls, cfg, disp)
	if err != nil {
		return err
	}
	for result := range results {
		if err := w.Write(result); err != nil {
			return err
		}
	}
	return nil
}

func runDeepCrawl(ctx context.Context, orch *orchestrator.Orchestrator, startURL string, cfg crawlresult.RunConfig, strategy deepcrawl.Strategy, disp dispatcher.Dispatcher, w output.Writer, stream bool) error {
	if !stream {
		results, err := orch.RunDeepCrawl(ctx, startURL, cfg, strategy, disp)
		if err != nil {
			return err
		}
		return writeResults(w, results)
	}

	results, err := orch.RunDeepCrawlStream(ctx, startURL, cfg, strategy, disp)
	if err != nil {
		return err
	}
	for result := range results {
		if err := w.Write(result); err != nil {
			return err
		}
	}
	return nil
}

func writeResults(w output.Writer, results []crawlresult.Result) error {
	for _, result := range results {
		if err := w.Write(result); err != nil {
			return err
		}
	}
	return w.Flush()
}

func buildRunConfig(flags *pflag.FlagSet) (crawlresult.RunConfig, error) {
	cfg := crawlresult.RunConfig{}

	timeout, _ := flags.GetDuration("timeout")
	cfg.PageTimeout = timeout

	checkRobots, _ := flags.GetBool("check-robots")
	cfg.CheckRobotsTxt = checkRobots

	cacheModeStr, _ := flags.GetString("cache")
	cfg.CacheMode = crawlresult.CacheMode(cacheModeStr)

	extractionInput, _ := flags.GetString("extraction-input")
	switch extractionInput {
	case "markdown":
		cfg.ExtractionInputFormat = orchestrator.ExtractionInputMarkdown
	case "html":
		cfg.ExtractionInputFormat = orchestrator.ExtractionInputHTML
	default:
		cfg.ExtractionInputFormat = orchestrator.ExtractionInputFitMarkdown
	}

	chunkTokens, _ := flags.GetInt("chunk-tokens")
	if chunkTokens > 0 {
		cfg.ApplyChunking = true
		cfg.ChunkTokenThreshold = chunkTokens
		overlap, _ := flags.GetFloat64("chunk-overlap")
		cfg.ChunkOverlapRate = overlap
	}

	stream, _ := flags.GetBool("stream")
	cfg.Stream = stream

	return cfg, nil
}

func buildOrchestratorOptions(flags *pflag.FlagSet) ([]orchestrator.Option, error) {
	var opts []orchestrator.Option

	cacheModeStr, _ := flags.GetString("cache")
	if crawlresult.CacheMode(cacheModeStr) != crawlresult.CacheModeDisabled {
		size, _ := flags.GetInt("cache-size")
		ttl, _ := flags.GetDuration("cache-ttl")
		memCache, err := cache.NewMemoryCache(size, ttl)
		if err != nil {
			return nil, fmt.Errorf("failed to create cache: %w", err)
		}
		opts = append(opts, orchestrator.WithCache(memCache))
	}

	proxies, _ := flags.GetStringSlice("proxy")
	if len(proxies) > 0 {
		var proxyConfigs []browser.ProxyConfig
		for _, p := range proxies {
			proxyConfigs = append(proxyConfigs, browser.ProxyConfig{Server: p})
		}
		opts = append(opts, orchestrator.WithProxyRotator(orchestrator.NewRoundRobinProxies(proxyConfigs)))
	}

	strategyName, _ := flags.GetString("strategy")
	if strategyName != "" {
		strategy, err := buildExtractionStrategy(strategyName, flags)
		if err != nil {
			return nil, err
		}
		opts = append(opts, orchestrator.WithExtractionStrategy(strategy))
	}

	return opts, nil
}

func buildExtractionStrategy(name string, flags *pflag.FlagSet) (extract.Strategy, error) {
	switch name {
	case "css", "xpath":
		schemaPath, _ := flags.GetString("schema")
		if schemaPath == "" {
			return nil, fmt.Errorf("--schema is required for --strategy %s", name)
		}
		fieldSchema, err := extract.SchemaFromFile(schemaPath)
		if err != nil {
			return nil, err
		}
		if name == "css" {
			return extract.NewCSSStrategy(fieldSchema), nil
		}
		return extract.NewXPathStrategy(fieldSchema), nil

	case "llm":
		schemaPath, _ := flags.GetString("schema")
		if schemaPath == "" {
			return nil, fmt.Errorf("--schema is required for --strategy llm (a JSON-schema describing the output record)")
		}
		outputSchema, err := schema.FromFile(schemaPath)
		if err != nil {
			return nil, err
		}

		providerName := viper.GetString("provider")
		apiKey := viper.GetString("api_key")
		if providerName == "" || apiKey == "" {
			detectedProvider, detectedKey := llm.DetectProvider()
			if providerName == "" {
				providerName = detectedProvider
			}
			if apiKey == "" {
				apiKey = detectedKey
			}
		}
		providerCfg := llm.DefaultProviderConfig()
		providerCfg.APIKey = apiKey
		if model := viper.GetString("model"); model != "" {
			providerCfg.Model = model
		} else {
			providerCfg.Model = llm.GetDefaultModel(providerName)
		}

		provider, err := llm.NewProvider(providerName, providerCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create LLM provider %q: %w", providerName, err)
		}

		return extract.NewLLMStrategy(extract.DefaultLLMOptions(provider, outputSchema)), nil

	default:
		return nil, fmt.Errorf("unknown extraction strategy: %s (use css, xpath, or llm)", name)
	}
}

func buildDeepCrawlStrategy(name string, flags *pflag.FlagSet) (deepcrawl.Strategy, error) {
	cfg := deepcrawl.DefaultConfig()
	cfg.MaxDepth, _ = flags.GetInt("max-depth")
	cfg.MaxPages, _ = flags.GetInt("max-pages")

	switch name {
	case "bfs":
		return deepcrawl.NewBFS(cfg), nil
	case "dfs":
		return deepcrawl.NewDFS(cfg), nil
	case "best-first":
		return deepcrawl.NewBestFirst(cfg), nil
	default:
		return nil, fmt.Errorf("unknown deep-crawl discipline: %s (use bfs, dfs, or best-first)", name)
	}
}

func buildWriter(flags *pflag.FlagSet) (output.Writer, func(), error) {
	outFile := os.Stdout
	closeFile := func() {}
	if outPath, _ := flags.GetString("output"); outPath != "" {
		f, err := os.Create(outPath) //#nosec G304 -- CLI tool writes to user-specified output file
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create output file: %w", err)
		}
		outFile = f
		closeFile = func() { _ = f.Close() }
	}

	formatStr, _ := flags.GetString("format")
	writer, err := output.NewWriter(outFile, output.Format(formatStr))
	if err != nil {
		closeFile()
		return nil, nil, fmt.Errorf("failed to create output writer: %w", err)
	}

	return writer, func() {
		_ = writer.Close()
		closeFile()
	}, nil
}
