package main

import (
	"fmt"
	"os"

	"github.com/FranksOps/serprank/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	version = "0.1.0"
)

// app carries the state shared by every subcommand.
type app struct {
	v          *viper.Viper
	configPath string
}

func (a *app) load() (*config.Config, error) {
	cfg, err := config.Load(a.v, a.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}
	d := config.DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "serprank",
		Short: "serprank - track where domains rank in search results",
		Long: `serprank pages through search results for a list of queries and records
where each target domain first appears.

Without a domain every result page is stored as-is.`,
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "path to a YAML config file")
	pf.String("output", d.Output.Backend, "storage backend: json, csv, sqlite or postgres")
	pf.String("output-path", d.Output.Path, "file path for the json, csv and sqlite backends")
	pf.String("dsn", "", "postgres connection string")
	pf.String("log-level", d.Log.Level, "log level: debug, info, warn or error")
	pf.String("log-format", d.Log.Format, "log format: text or json")
	bindFlags(a.v, pf, map[string]string{
		"output.backend": "output",
		"output.path":    "output-path",
		"output.dsn":     "dsn",
		"log.level":      "log-level",
		"log.format":     "log-format",
	})

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "serprank v%s\n", version)
		},
	}

	rootCmd.AddCommand(newRunCmd(a))
	rootCmd.AddCommand(newReportCmd(a))
	rootCmd.AddCommand(versionCmd)
	return rootCmd
}

// bindFlags maps config keys to flag names. A flag only overrides the file
// and environment when it was set explicitly.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if f := fs.Lookup(name); f != nil {
			_ = v.BindPFlag(key, f)
		}
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
