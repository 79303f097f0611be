package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/patchfinder/alias"
	"github.com/aquasecurity/patchfinder/config"
	"github.com/aquasecurity/patchfinder/crawler"
	"github.com/aquasecurity/patchfinder/debian"
	"github.com/aquasecurity/patchfinder/fetch"
	"github.com/aquasecurity/patchfinder/github"
	"github.com/aquasecurity/patchfinder/log"
	"github.com/aquasecurity/patchfinder/metrics"
	"github.com/aquasecurity/patchfinder/output"
	"github.com/aquasecurity/patchfinder/utils"
	"github.com/aquasecurity/patchfinder/vulnerability"
)

var errUnrecognized = xerrors.New("can't recognize that vulnerability")

func main() {
	cmd := newRootCmd()
	cmd.SetArgs(normalizeArgs(os.Args[1:]))
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, errUnrecognized) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// listFlags take one or more space-separated values, as in
// "-dd a.example b.example".
var listFlags = map[string]bool{
	"--dd":                true,
	"--deny-domains":      true,
	"--id":                true,
	"--important-domains": true,
}

// normalizeArgs accepts the single-dash spellings -dd, -id and -nl, which
// pflag would otherwise read as grouped shorthands, and joins the values
// following a list flag with commas. A value list ends at the next flag or
// at a vulnerability identifier.
func normalizeArgs(args []string) []string {
	rewritten := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "-dd", "-id", "-nl":
			arg = "-" + arg
		}
		rewritten = append(rewritten, arg)
		if !listFlags[arg] {
			continue
		}

		var values []string
		for i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			if len(values) > 0 && isVulnID(args[i+1]) {
				break
			}
			i++
			values = append(values, args[i])
		}
		if len(values) > 0 {
			rewritten = append(rewritten, strings.Join(values, ","))
		}
	}
	return rewritten
}

func isVulnID(arg string) bool {
	_, err := vulnerability.Classify(arg)
	return err == nil
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "patchfinder <vuln_id>",
		Short: "Find the patches fixing a vulnerability",
		Long: heredoc.Doc(`
			Crawl the pages describing a CVE or a vendor advisory (DSA, DLA, RHSA,
			GLSA, GHSA) and collect links to the patches that fix it.
		`),
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return xerrors.Errorf("failed to load config: %w", err)
			}
			return run(cmd.Context(), cfg, args[0])
		},
		Example: heredoc.Doc(`
			$ patchfinder CVE-2019-10192
			$ patchfinder DSA-4480-1 -d 2 -p 20 --id github.com --nl
			$ patchfinder CVE-2019-10192 -dd twitter.com facebook.com -nl
			$ patchfinder CVE-2019-10192 --github-repo antirez/redis -o patches.yaml --format yaml
		`),
	}

	cmd.Flags().StringVar(&cfgFile, "config", "", "YAML config file")
	config.AddFlags(cmd.Flags())
	return cmd
}

func run(ctx context.Context, cfg config.Config, vulnID string) error {
	logger, err := log.New(cfg.Log)
	if err != nil {
		return xerrors.Errorf("failed to create a logger: %w", err)
	}
	defer logger.Sync()

	v, err := vulnerability.Classify(vulnID)
	if errors.Is(err, vulnerability.ErrUnrecognized) {
		logger.Errorf("Can't recognize that vulnerability: %s", vulnID)
		return errUnrecognized
	} else if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		shutdown := serveMetrics(cfg.MetricsAddr, m, logger)
		defer shutdown()
	}

	fetcher := fetch.NewClient(
		fetch.WithUserAgent(cfg.Fetch.UserAgent),
		fetch.WithTimeout(cfg.Fetch.Timeout),
		fetch.WithRetry(cfg.Fetch.Retry),
		fetch.WithFollowRedirects(cfg.Fetch.FollowRedirects),
		fetch.WithLogger(logger),
	)

	var sink output.Sink = output.NewExporter(afero.NewOsFs(), cfg.Output, cfg.Format)
	if cfg.Progress {
		sink = output.Tee(sink, output.NewProgress(os.Stderr, cfg.PatchLimit))
	}

	engine, err := newEngine(cfg, fetcher, sink, m, logger)
	if err != nil {
		return err
	}

	res, runErr := engine.Run(ctx, v)
	if err = sink.Close(); err != nil {
		return xerrors.Errorf("failed to write patches: %w", err)
	}
	if runErr != nil {
		return xerrors.Errorf("crawl error: %w", runErr)
	}

	if len(res.Aliases) > 0 {
		logger.Infof("%s resolved to %v", v.ID, res.Aliases)
	}
	logger.Infof("Crawling completed: %d patches found", len(res.Patches))
	return nil
}

func newEngine(cfg config.Config, fetcher fetch.Client, sink output.Sink, m *metrics.Metrics, logger *zap.SugaredLogger) (*crawler.Engine, error) {
	engine, err := crawler.NewEngine(cfg.Policy(),
		crawler.WithFetcher(fetcher),
		crawler.WithSink(sink),
		crawler.WithMetrics(m),
		crawler.WithLogger(logger),
		crawler.WithResolver(alias.NewResolver(fetcher, alias.WithLogger(logger))),
		crawler.WithDebian(debian.NewParser(
			debian.WithFetcher(fetcher),
			debian.WithDownloader(utils.NewDownloader(cfg.Fetch.UserAgent)),
			debian.WithLogger(logger),
		)),
		crawler.WithGithub(github.NewParser(github.NewClient(cfg.GithubToken), github.WithLogger(logger))),
	)
	if err != nil {
		return nil, xerrors.Errorf("failed to create a crawler: %w", err)
	}
	return engine, nil
}

// serveMetrics exposes m on addr until the returned function is called.
func serveMetrics(addr string, m *metrics.Metrics, logger *zap.SugaredLogger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		logger.Infof("Serving metrics on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warnf("Metrics server error: %s", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
