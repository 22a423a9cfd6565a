// resxkit — .NET resource (.resx) localization synchronizer with AI translation.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/resxkit/resxkit/config"
	"github.com/resxkit/resxkit/i18n"
	"github.com/resxkit/resxkit/resxfile"
	"github.com/resxkit/resxkit/settings"
	"github.com/resxkit/resxkit/syncer"
	"github.com/resxkit/resxkit/translate"
	"github.com/spf13/cobra"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
)

// Progress goes to stdout so a CI log captures it alongside the summary.
func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stdout, colorBlue+"[INFO]"+colorReset+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stdout, colorGreen+"[OK]"+colorReset+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(os.Stdout, colorYellow+"[WARN]"+colorReset+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stdout, colorRed+"[ERROR]"+colorReset+" "+format+"\n", args...)
}

// ---------------------------------------------------------------------------
// Global flag
// ---------------------------------------------------------------------------

var rootDir string

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "resxkit",
		Short: ".resx localization synchronizer with AI translation",
		Long: `resxkit — .NET resource (.resx) localization synchronizer.

Compares the base resource file (Strings.resx) against each localized
file (Strings.<lang>.resx), translates the missing entries through an
OpenAI-compatible endpoint, and rewrites the localized files with their
keys in base-file order. Existing translations are never overwritten.

Commands:
  sync        Synchronize localized files with the base file
  status      Show per-language missing-key statistics
  auth        Manage stored API keys
`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global persistent flag — inherited by all subcommands
	root.PersistentFlags().StringVar(&rootDir, "root", ".", "Project root directory")

	root.AddCommand(
		newSyncCmd(),
		newStatusCmd(),
		newAuthCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	i18n.Init("")
	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// version (display version information)
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display version, commit hash, and build date.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("resxkit version %s\n", version)
			fmt.Printf("  commit:    %s\n", commit)
			fmt.Printf("  built:     %s\n", date)
		},
	}

	return cmd
}

// ---------------------------------------------------------------------------
// sync
// ---------------------------------------------------------------------------

func newSyncCmd() *cobra.Command {
	var (
		baseURL    string
		apiKey     string
		model      string
		i18nPath   string
		langs      string
		appContext string
		batchSize  int
		maxRetries int
		timeout    time.Duration
		proxy      string
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize localized .resx files with the base file",
		Long: `Synchronize every Strings.<lang>.resx against Strings.resx.

Missing keys are translated in batches through an OpenAI-compatible
chat-completions endpoint. Keys matching a no-translate pattern are
copied from the base file verbatim. Localized files are rewritten with
keys in base-file order; a leading language-label comment is preserved.

Provider settings resolve from flags, then .resxkit.yaml, then the
OPENAI_API_BASE/BASE_URL, OPENAI_API_KEY and MODEL_ID environment
variables, then the stored key from 'resxkit auth'.

Examples:
  # Synchronize everything
  resxkit sync --base-url https://api.openai.com/v1 --model gpt-4o

  # Only Spanish and German
  resxkit sync --model gpt-4o --lang es,de

  # Show what would be translated without calling the API
  resxkit sync --dry-run`,
		Run: func(cmd *cobra.Command, args []string) {
			runSync(syncArgs{
				baseURL: baseURL, apiKey: apiKey, model: model,
				i18nPath: i18nPath, langs: langs, appContext: appContext,
				batchSize: batchSize, maxRetries: maxRetries,
				timeout: timeout, proxy: proxy, dryRun: dryRun,
			})
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "", "API base URL (or OPENAI_API_BASE env var)")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key (or OPENAI_API_KEY env var)")
	cmd.Flags().StringVar(&model, "model", "", "Model name (or MODEL_ID env var)")
	cmd.Flags().StringVar(&i18nPath, "i18n-path", "", "Directory with the .resx files (default: auto-detect)")
	cmd.Flags().StringVar(&langs, "lang", "", "Languages to synchronize (comma-separated, default: all)")
	cmd.Flags().StringVar(&appContext, "context", "", "Application description injected into the translation prompt")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Keys per API request (default 20)")
	cmd.Flags().IntVar(&maxRetries, "max-retries", 0, "Maximum retries per request (default 3)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Request timeout (default 2m)")
	cmd.Flags().StringVar(&proxy, "proxy", "", "HTTP/HTTPS proxy URL")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be translated without calling the API")

	return cmd
}

type syncArgs struct {
	baseURL, apiKey, model string
	i18nPath, langs        string
	appContext             string
	batchSize, maxRetries  int
	timeout                time.Duration
	proxy                  string
	dryRun                 bool
}

func runSync(a syncArgs) {
	cfg, err := config.Load(rootDir)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}

	proj := config.Detect(rootDir, cfg)
	if a.i18nPath != "" {
		proj.Dir = a.i18nPath
	}

	basePath := proj.BasePath()
	if _, err := os.Stat(basePath); err != nil {
		logError(i18n.T("Base resource file not found: %s"), basePath)
		os.Exit(1)
	}

	prov, err := resolveProvider(a, cfg)
	if err != nil && !a.dryRun {
		logError("%v", err)
		os.Exit(1)
	}

	patterns, err := cfg.CompileNoTranslate()
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}

	client := translate.NewClient(prov)
	client.AppContext = a.appContext
	if client.AppContext == "" && cfg != nil {
		client.AppContext = cfg.Context
	}

	batch := a.batchSize
	if batch == 0 && cfg != nil {
		batch = cfg.BatchSize
	}

	logInfo(i18n.T("Reading base resources from %s..."), basePath)

	s, err := syncer.New(basePath, client, syncer.Options{
		BatchSize:   batch,
		NoTranslate: patterns,
		DryRun:      a.dryRun,
		OnLog:       logInfo,
		OnWarn:      logWarning,
		OnError:     logError,
	})
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}
	logInfo(i18n.T("Found %d base resources"), s.BaseKeyCount())

	targets, err := syncer.Targets(proj.Dir, proj.BaseName)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}
	targets = filterTargets(targets, a.langs, cfg)

	if len(targets) == 0 {
		logInfo(i18n.T("No localized files found in %s"), proj.Dir)
		return
	}

	// Graceful cancellation: finish the current file, skip the rest.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		logWarning("Interrupted, finishing current file...")
		cancel()
	}()

	results, err := s.SyncAll(ctx, targets)
	if err != nil {
		logWarning("Synchronization interrupted")
		os.Exit(1)
	}

	printSummary(results)
	logSuccess(i18n.T("Synchronization complete"))

	// Non-fatal failures still surface in the exit status for CI.
	for _, r := range results {
		if r.Status != syncer.StatusOK {
			os.Exit(1)
		}
	}
}

// resolveProvider builds the endpoint configuration from flags, config file,
// environment, and the stored key, in that order.
func resolveProvider(a syncArgs, cfg *config.File) (translate.Provider, error) {
	baseURL := a.baseURL
	if baseURL == "" && cfg != nil {
		baseURL = cfg.BaseURL
	}
	if baseURL == "" {
		baseURL = os.Getenv("OPENAI_API_BASE")
	}
	if baseURL == "" {
		baseURL = os.Getenv("BASE_URL")
	}

	model := a.model
	if model == "" && cfg != nil {
		model = cfg.Model
	}
	if model == "" {
		model = os.Getenv("MODEL_ID")
	}

	key := a.apiKey
	if key == "" {
		key = os.Getenv("OPENAI_API_KEY")
	}
	if key == "" {
		key = settings.APIKeyFor(baseURL)
	}

	retries := a.maxRetries
	if retries == 0 && cfg != nil {
		retries = cfg.MaxRetries
	}

	prov := translate.Provider{
		BaseURL:    baseURL,
		APIKey:     key,
		Model:      model,
		Proxy:      a.proxy,
		Timeout:    a.timeout,
		MaxRetries: retries,
	}

	var missing []string
	if baseURL == "" {
		missing = append(missing, "--base-url (OPENAI_API_BASE)")
	}
	if model == "" {
		missing = append(missing, "--model (MODEL_ID)")
	}
	if key == "" {
		missing = append(missing, "--api-key (OPENAI_API_KEY)")
	}
	if len(missing) > 0 {
		return prov, fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}

	return prov, nil
}

// filterTargets keeps only the requested languages. The --lang flag wins
// over the config file; with neither, all discovered files are used.
func filterTargets(targets []syncer.Target, langs string, cfg *config.File) []syncer.Target {
	var want []string
	if langs != "" {
		want = strings.Split(langs, ",")
	} else if cfg != nil && len(cfg.Languages) > 0 {
		want = cfg.Languages
	}
	if len(want) == 0 {
		return targets
	}

	wanted := make(map[string]bool, len(want))
	for _, l := range want {
		wanted[strings.TrimSpace(l)] = true
	}

	filtered := targets[:0]
	for _, t := range targets {
		if wanted[t.Lang] {
			filtered = append(filtered, t)
		}
	}
	return filtered
}

func printSummary(results []syncer.Result) {
	fmt.Fprintln(os.Stdout)
	fmt.Fprintf(os.Stdout, "%sSynchronization Summary%s\n", colorBlue, colorReset)
	fmt.Fprintln(os.Stdout, strings.Repeat("─", 60))
	fmt.Fprintf(os.Stdout, "%-28s %-8s %-8s %-8s %-8s\n", "File", "Missing", "Copied", "Transl.", "Status")
	fmt.Fprintln(os.Stdout, strings.Repeat("─", 60))

	for _, r := range results {
		statusColor := colorGreen
		status := string(r.Status)
		switch r.Status {
		case syncer.StatusPartial:
			statusColor = colorYellow
			status = fmt.Sprintf("%s (%d left)", r.Status, r.Unresolved)
		case syncer.StatusFailed:
			statusColor = colorRed
		}
		fmt.Fprintf(os.Stdout, "%-28s %-8d %-8d %-8d %s%s%s\n",
			r.File, r.Missing, r.Copied, r.Translated, statusColor, status, colorReset)
	}

	fmt.Fprintln(os.Stdout, strings.Repeat("─", 60))
}

// ---------------------------------------------------------------------------
// status (read-only: per-language missing-key statistics)
// ---------------------------------------------------------------------------

func newStatusCmd() *cobra.Command {
	var i18nPath string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show per-language missing-key statistics",
		Long: `Show how many base keys each localized file is missing.

Reads the base file and every Strings.<lang>.resx in the resource
directory. Does not modify any files and never calls the API.`,
		Run: func(cmd *cobra.Command, args []string) {
			runStatus(i18nPath)
		},
	}

	cmd.Flags().StringVar(&i18nPath, "i18n-path", "", "Directory with the .resx files (default: auto-detect)")

	return cmd
}

func runStatus(i18nPath string) {
	cfg, err := config.Load(rootDir)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}

	proj := config.Detect(rootDir, cfg)
	if i18nPath != "" {
		proj.Dir = i18nPath
	}

	basePath := proj.BasePath()
	base, err := resxfile.ParseFile(basePath)
	if err != nil {
		logError(i18n.T("Base resource file not found: %s"), basePath)
		os.Exit(1)
	}
	baseKeys := base.Keys()

	targets, err := syncer.Targets(proj.Dir, proj.BaseName)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}

	absDir, _ := filepath.Abs(proj.Dir)
	fmt.Fprintf(os.Stdout, "\n%sProject%s\n", colorBlue, colorReset)
	fmt.Fprintln(os.Stdout, strings.Repeat("─", 60))
	fmt.Fprintf(os.Stdout, "  Resources:  %s\n", absDir)
	fmt.Fprintf(os.Stdout, "  Base file:  %s (%d keys)\n", proj.BaseName, len(baseKeys))
	fmt.Fprintln(os.Stdout)

	if len(targets) == 0 {
		logInfo(i18n.T("No localized files found in %s"), proj.Dir)
		return
	}

	fmt.Fprintf(os.Stdout, "%-10s %-24s %-10s %-10s %-8s\n", "Lang", "Label", "Present", "Missing", "Percent")
	fmt.Fprintln(os.Stdout, strings.Repeat("─", 64))

	for _, t := range targets {
		label := resxfile.Label(t.Path)
		if label == "" {
			label = "-"
		}

		loc, err := resxfile.ParseFile(t.Path)
		if err != nil {
			fmt.Fprintf(os.Stdout, "%-10s %-24s %-10s %-10s %-8s\n", t.Lang, label, "error", "-", "-")
			continue
		}

		present := 0
		for _, key := range baseKeys {
			if _, ok := loc.Get(key); ok {
				present++
			}
		}
		missing := len(baseKeys) - present
		percent := 0
		if len(baseKeys) > 0 {
			percent = present * 100 / len(baseKeys)
		}

		fmt.Fprintf(os.Stdout, "%-10s %-24s %-10d %-10d %d%%\n", t.Lang, label, present, missing, percent)
	}

	fmt.Fprintln(os.Stdout, strings.Repeat("─", 64))
	fmt.Fprintln(os.Stdout)
}

// ---------------------------------------------------------------------------
// auth (stored API keys, per endpoint host)
// ---------------------------------------------------------------------------

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage stored API keys",
		Long: `Manage API keys stored per endpoint host.

Stored keys are used when neither --api-key nor OPENAI_API_KEY is set.
Keys live in ` + settings.FilePath() + ` (mode 0600).`,
	}

	cmd.AddCommand(newAuthSetCmd(), newAuthRemoveCmd(), newAuthListCmd())

	return cmd
}

func newAuthSetCmd() *cobra.Command {
	var baseURL string

	cmd := &cobra.Command{
		Use:   "set <api-key>",
		Short: "Store an API key for an endpoint",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			url := authBaseURL(baseURL)
			if url == "" {
				logError("No endpoint given. Use --base-url or set OPENAI_API_BASE.")
				os.Exit(1)
			}
			if err := settings.SetAPIKey(url, args[0]); err != nil {
				logError("%v", err)
				os.Exit(1)
			}
			logSuccess("Stored API key for %s", settings.HostFor(url))
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "", "API base URL the key belongs to")

	return cmd
}

func newAuthRemoveCmd() *cobra.Command {
	var baseURL string

	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove a stored API key",
		Run: func(cmd *cobra.Command, args []string) {
			url := authBaseURL(baseURL)
			if url == "" {
				logError("No endpoint given. Use --base-url or set OPENAI_API_BASE.")
				os.Exit(1)
			}
			if err := settings.RemoveAPIKey(url); err != nil {
				logError("%v", err)
				os.Exit(1)
			}
			logSuccess("Removed API key for %s", settings.HostFor(url))
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "", "API base URL the key belongs to")

	return cmd
}

func newAuthListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List endpoints with stored API keys",
		Run: func(cmd *cobra.Command, args []string) {
			hosts := settings.Hosts()
			if len(hosts) == 0 {
				logInfo("No stored API keys.")
				return
			}
			for _, h := range hosts {
				fmt.Fprintf(os.Stdout, "  %s\n", h)
			}
		},
	}
}

func authBaseURL(flag string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv("OPENAI_API_BASE"); v != "" {
		return v
	}
	return os.Getenv("BASE_URL")
}
