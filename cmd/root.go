package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cryptoaudit/internal/catalog"
	"cryptoaudit/internal/config"
	"cryptoaudit/internal/corpus"
	"cryptoaudit/internal/logging"
	"cryptoaudit/internal/policy"
	"cryptoaudit/internal/report"
	"cryptoaudit/internal/resources"
	"cryptoaudit/internal/watcher"

	"github.com/fatih/color"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
)

var (
	inputFlag   string
	catalogFlag string
	policyFlag  string
	formatFlag  string
	outputFlag  string
	workersFlag int
	watchFlag   bool
	verboseFlag bool
	configFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "cryptoaudit",
	Short: "Audits compiled class artifacts for cryptographic API usage against a compliance policy",
	Long: `cryptoaudit scans a directory or archive of compiled classes for calls
to cryptographic entry-point APIs, recovers their algorithm and provider
arguments where possible, and evaluates each call site against a YAML
policy of allowed and denied algorithms/providers.

Examples:
  cryptoaudit --input ./build/classes
  cryptoaudit --input app.jar --policy fips-strict.yaml --format html --output report/
  cryptoaudit --input ./build/classes --watch`,
	RunE: runAudit,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVar(&inputFlag, "input", "", "path to a directory or archive of compiled classes (required)")
	rootCmd.Flags().StringVar(&catalogFlag, "catalog", "", "path to a catalog YAML (default: bundled "+resources.DefaultCatalogName+")")
	rootCmd.Flags().StringVar(&policyFlag, "policy", "", "path to a policy YAML (default: bundled "+resources.DefaultPolicyName+")")
	rootCmd.Flags().StringVar(&formatFlag, "format", "", "report format: text or html (default text)")
	rootCmd.Flags().StringVar(&outputFlag, "output", "", "output directory for html reports, or a file for text (default: stdout)")
	rootCmd.Flags().IntVar(&workersFlag, "workers", 0, "number of concurrent scan workers (default: number of CPUs)")
	rootCmd.Flags().BoolVar(&watchFlag, "watch", false, "re-scan when the input path changes")
	rootCmd.Flags().BoolVar(&verboseFlag, "verbose", false, "enable debug logging")
	rootCmd.Flags().StringVar(&configFlag, "config", "", "path to a .cryptoaudit.yml settings file")

	rootCmd.MarkFlagRequired("input")
}

func runAudit(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	applyFlagOverrides(cfg)

	log := logging.New(cfg.Verbose)

	cat, pol, err := loadCatalogAndPolicy(cfg, log)
	if err != nil {
		color.Red("%v\n", err)
		os.Exit(1)
	}

	runOnce := func() error {
		return runScan(context.Background(), inputFlag, cfg, cat, pol, log)
	}

	if err := runOnce(); err != nil {
		return err
	}

	if !cfg.Watch {
		return nil
	}

	color.Cyan("watching %s for changes (ctrl-c to stop)\n", inputFlag)
	fw, err := watcher.NewFileWatcher()
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer fw.Close()

	err = fw.Watch(inputFlag, func(changed []string) error {
		color.Cyan("re-scanning after %d changed file(s)\n", len(changed))
		if err := runOnce(); err != nil {
			color.Red("scan failed: %v\n", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("watching %s: %w", inputFlag, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	return nil
}

func applyFlagOverrides(cfg *config.Config) {
	if catalogFlag != "" {
		cfg.Catalog = catalogFlag
	}
	if policyFlag != "" {
		cfg.Policy = policyFlag
	}
	if formatFlag != "" {
		cfg.Format = formatFlag
	}
	if outputFlag != "" {
		cfg.Output = outputFlag
	}
	if workersFlag != 0 {
		cfg.Workers = workersFlag
	}
	if verboseFlag {
		cfg.Verbose = true
	}
	if watchFlag {
		cfg.Watch = true
	}
}

func loadCatalogAndPolicy(cfg *config.Config, log hclog.Logger) (*catalog.Catalog, *policy.CompiledPolicy, error) {
	var cat *catalog.Catalog
	if cfg.Catalog != "" {
		c, err := catalog.LoadFile(cfg.Catalog)
		if err != nil {
			return nil, nil, fmt.Errorf("loading catalog: %w", err)
		}
		cat = c
	} else {
		data, err := resources.DefaultCatalog()
		if err != nil {
			return nil, nil, fmt.Errorf("loading default catalog: %w", err)
		}
		c, err := catalog.LoadBytes(data, resources.DefaultCatalogName)
		if err != nil {
			return nil, nil, fmt.Errorf("loading default catalog: %w", err)
		}
		cat = c
	}
	log.Info("loaded catalog", "apis", cat.Size())

	var pol *policy.CompiledPolicy
	if cfg.Policy != "" {
		p, err := policy.LoadFile(cfg.Policy)
		if err != nil {
			return nil, nil, fmt.Errorf("loading policy: %w", err)
		}
		pol = p
	} else {
		data, err := resources.DefaultPolicy()
		if err != nil {
			return nil, nil, fmt.Errorf("loading default policy: %w", err)
		}
		p, err := policy.LoadBytes(data, resources.DefaultPolicyName)
		if err != nil {
			return nil, nil, fmt.Errorf("loading default policy: %w", err)
		}
		pol = p
	}
	log.Info("loaded policy", "id", pol.Policy.PolicyId, "rules", len(pol.Policy.Rules))

	return cat, pol, nil
}

func runScan(ctx context.Context, input string, cfg *config.Config, cat *catalog.Catalog, pol *policy.CompiledPolicy, log hclog.Logger) error {
	entries, err := corpus.Enumerate(input)
	if err != nil {
		return fmt.Errorf("enumerating corpus: %w", err)
	}
	log.Info("enumerated corpus", "classes", len(entries))

	results, skipped := corpus.Run(ctx, entries, cat, pol, cfg.Workers)
	for _, s := range skipped {
		log.Warn("skipped malformed class", "source", s.Source, "error", s.Err)
	}

	names := corpus.SortedClassNames(results)

	switch cfg.Format {
	case "html":
		outDir := cfg.Output
		if outDir == "" {
			outDir = "cryptoaudit-report"
		}
		if err := report.WriteHTML(outDir, pol.Policy.PolicyId, names, results); err != nil {
			return fmt.Errorf("writing html report: %w", err)
		}
		color.Green("report written to %s\n", outDir)
	default:
		if cfg.Output != "" {
			f, err := os.Create(cfg.Output)
			if err != nil {
				return fmt.Errorf("writing text report: %w", err)
			}
			defer f.Close()
			return report.WriteText(f, names, results)
		}
		return report.WriteText(os.Stdout, names, results)
	}
	return nil
}
