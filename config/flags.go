package config

import (
	"github.com/spf13/pflag"

	"github.com/aquasecurity/patchfinder/crawler"
	"github.com/aquasecurity/patchfinder/output"
)

// flagKeys maps config keys to the flags that override them.
var flagKeys = map[string]string{
	"depth":             "depth",
	"patch_limit":       "patch-limit",
	"deny_domains":      "deny-domains",
	"important_domains": "important-domains",
	"no_debian":         "no-debian",
	"concurrency":       "concurrency",
	"github_repos":      "github-repo",
	"output":            "output",
	"format":            "format",
	"progress":          "progress",
	"metrics_addr":      "metrics-addr",
	"log.disable":       "no-log",
	"debug":             "debug",
}

// shorthands are multi-letter flag spellings. pflag only allows
// single-letter shorthands, so they are normalized to the long names.
var shorthands = map[string]string{
	"dd": "deny-domains",
	"id": "important-domains",
	"nl": "no-log",
}

// AddFlags registers every flag Load understands on flags.
func AddFlags(flags *pflag.FlagSet) {
	p := crawler.DefaultPolicy()
	flags.IntP("depth", "d", p.DepthLimit, "maximum number of hops from a seed page")
	flags.IntP("patch-limit", "p", p.PatchLimit, "maximum number of patches to collect")
	flags.StringSlice("deny-domains", p.DenyDomains, "domains never crawled, comma-separated or space-separated after --dd")
	flags.StringSlice("important-domains", nil, "domains crawled first, comma-separated or space-separated after --id")
	flags.Bool("no-debian", false, "do not look for patches in Debian source packages")
	flags.Int("concurrency", p.Concurrency, "maximum number of concurrent fetches")
	flags.StringSlice("github-repo", nil, "owner/name of a GitHub repository to search for pull requests")
	flags.StringP("output", "o", defaultOutput, `file to write patches to, "-" for stdout`)
	flags.String("format", string(output.FormatJSON), "output format: json or yaml")
	flags.Bool("progress", false, "show a progress bar")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	flags.Bool("no-log", false, "disable logging (alias --nl)")
	flags.Bool("debug", false, "enable debug logging")
	flags.SetNormalizeFunc(NormalizeFlag)
}

func NormalizeFlag(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	if long, ok := shorthands[name]; ok {
		name = long
	}
	return pflag.NormalizedName(name)
}
