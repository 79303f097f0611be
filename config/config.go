// Package config merges defaults, an optional YAML file, PATCHFINDER_*
// environment variables and command-line flags into one Config.
package config

import (
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/patchfinder/crawler"
	"github.com/aquasecurity/patchfinder/fetch"
	"github.com/aquasecurity/patchfinder/log"
	"github.com/aquasecurity/patchfinder/output"
)

const (
	envPrefix     = "PATCHFINDER"
	defaultOutput = "patches.json"
)

type Config struct {
	DepthLimit       int      `mapstructure:"depth"`
	PatchLimit       int      `mapstructure:"patch_limit"`
	DenyDomains      []string `mapstructure:"deny_domains"`
	ImportantDomains []string `mapstructure:"important_domains"`
	NoDebian         bool     `mapstructure:"no_debian"`
	Concurrency      int      `mapstructure:"concurrency"`

	GithubRepos []string `mapstructure:"github_repos"`
	GithubToken string   `mapstructure:"github_token"`

	Output   string        `mapstructure:"output"`
	Format   output.Format `mapstructure:"format"`
	Progress bool          `mapstructure:"progress"`

	MetricsAddr string `mapstructure:"metrics_addr"`

	Fetch FetchConfig `mapstructure:"fetch"`
	Log   log.Config  `mapstructure:"log"`
}

type FetchConfig struct {
	UserAgent       string        `mapstructure:"user_agent"`
	Timeout         time.Duration `mapstructure:"timeout"`
	Retry           int           `mapstructure:"retry"`
	FollowRedirects bool          `mapstructure:"follow_redirects"`
}

// Policy returns the crawl policy described by c.
func (c Config) Policy() crawler.Policy {
	p := crawler.DefaultPolicy()
	p.DepthLimit = c.DepthLimit
	p.PatchLimit = c.PatchLimit
	p.DenyDomains = c.DenyDomains
	p.ImportantDomains = c.ImportantDomains
	p.ParseDebian = !c.NoDebian
	p.Concurrency = c.Concurrency
	p.GithubRepos = c.GithubRepos
	return p
}

func setDefaults(v *viper.Viper) {
	p := crawler.DefaultPolicy()
	v.SetDefault("depth", p.DepthLimit)
	v.SetDefault("patch_limit", p.PatchLimit)
	v.SetDefault("deny_domains", p.DenyDomains)
	v.SetDefault("important_domains", []string{})
	v.SetDefault("no_debian", false)
	v.SetDefault("concurrency", p.Concurrency)
	v.SetDefault("github_repos", []string{})
	v.SetDefault("output", defaultOutput)
	v.SetDefault("format", string(output.FormatJSON))
	v.SetDefault("progress", false)
	v.SetDefault("metrics_addr", "")

	v.SetDefault("fetch", map[string]any{
		"user_agent":       fetch.DefaultUserAgent,
		"timeout":          "30s",
		"retry":            2,
		"follow_redirects": false,
	})
	v.SetDefault("log", map[string]any{
		"level":   "info",
		"disable": false,
		"json":    false,
	})
}

// Load reads the configuration. path may be empty; flags may be nil.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	return LoadFs(afero.NewOsFs(), path, flags)
}

func LoadFs(fs afero.Fs, path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetFs(fs)
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("github_token", envPrefix+"_GITHUB_TOKEN", "GITHUB_TOKEN"); err != nil {
		return Config{}, xerrors.Errorf("failed to bind github token: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, xerrors.Errorf("failed to read %s: %w", path, err)
		}
	}

	if flags != nil {
		for key, name := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return Config{}, xerrors.Errorf("failed to bind --%s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, xerrors.Errorf("failed to decode config: %w", err)
	}
	if v.GetBool("debug") {
		cfg.Log.Level = "debug"
	}

	format, err := output.ParseFormat(string(cfg.Format))
	if err != nil {
		return Config{}, err
	}
	cfg.Format = format
	return cfg, nil
}
