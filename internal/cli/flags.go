package cli

import (
	"github.com/spf13/cobra"

	"github.com/hupe1980/gooffline/internal/config"
	"github.com/hupe1980/gooffline/internal/project"
)

// The flags below carry no variables: config.Load binds them to viper keys
// of the same name and commands read the merged values from the Config.

// registerFilterFlags adds the include/exclude flags of the dependency
// filter chain to a cobra command.
func registerFilterFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringSlice("include-artifact-ids", nil, "artifactIds to include (comma-separated, literal)")
	f.StringSlice("exclude-artifact-ids", nil, "artifactIds to exclude")
	f.StringSlice("include-group-ids", nil, "groupIds to include")
	f.StringSlice("exclude-group-ids", nil, "groupIds to exclude")
	f.StringSlice("include-scope", nil, "scopes to include (compile, provided, runtime, test, system, import)")
	f.StringSlice("exclude-scope", nil, "scopes to exclude")
	f.StringSlice("include-classifiers", nil, "classifiers to include")
	f.StringSlice("exclude-classifiers", nil, "classifiers to exclude")
	f.StringSlice("include-types", nil, "types to include")
	f.StringSlice("exclude-types", nil, "types to exclude")
	f.Bool("exclude-reactor", true, "exclude artifacts produced by modules of the same build")

	for _, name := range []string{"include-scope", "exclude-scope"} {
		_ = cmd.RegisterFlagCompletionFunc(name, completeScopes)
	}
}

// completeScopes offers the scope vocabulary for the scope filter flags.
func completeScopes(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return project.Scopes(), cobra.ShellCompDirectiveNoFileComp
}

// completeProjectDir restricts positional completion to directories.
func completeProjectDir(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	return nil, cobra.ShellCompDirectiveFilterDirs
}

// registerRepositoryFlags adds local repository, transport, and resolution
// flags to a cobra command.
func registerRepositoryFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("local-repository", config.DefaultLocalRepository(), "local repository directory")
	f.Bool("transitive", true, "follow compile and runtime dependencies declared in POMs")
	f.Bool("include-parents", false, "also resolve the parent POM chain of every artifact")
	f.Int("workers", config.DefaultWorkers, "coordinates resolved concurrently per batch")
	f.Duration("http-timeout", config.DefaultHTTPTimeout, "timeout of a single repository request")
	f.Duration("negative-cache-ttl", config.DefaultNegativeTTL, "how long a missing remote file is remembered")
	f.String("ca-file", "", "TLS CA certificate file")
	f.String("cert-file", "", "TLS client certificate file")
	f.String("key-file", "", "TLS client key file")
	f.String("s3-endpoint", "", "S3 endpoint for s3:// repositories (default: s3.amazonaws.com)")
	f.String("s3-region", "", "S3 region for s3:// repositories (default: us-east-1)")
	f.Bool("s3-insecure", false, "use plain HTTP for the S3 endpoint")
}

// registerOutputFlags adds reporting and manifest flags to a cobra command.
func registerOutputFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Bool("silent", false, "do not report every resolved artifact")
	f.String("manifest", "", "write a manifest of resolved artifacts to this file (- for stdout)")
	f.Bool("diff", false, "print a diff against the previous manifest")
	f.Bool("strict", false, "exit with code 3 when any coordinate failed to resolve")
	f.String("trace-file", "", "write OpenTelemetry spans as JSON lines to this file")
}

// registerResolveFlags registers every flag shared by resolve and watch.
func registerResolveFlags(cmd *cobra.Command) {
	registerFilterFlags(cmd)
	registerRepositoryFlags(cmd)
	registerOutputFlags(cmd)
}
