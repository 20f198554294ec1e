package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/adtools/gaqlgate/serv"
	"github.com/adtools/gaqlgate/internal/util"
)

var (
	log   *zap.SugaredLogger
	conf  *serv.Config
	cpath string
)

func main() {
	Cmd()
}

// Cmd builds and runs the root command
func Cmd() {
	log = util.NewLogger(false, zap.InfoLevel).Sugar()

	rootCmd := &cobra.Command{
		Use:   "gaqlgate",
		Short: "Caching gateway for Google Ads queries",
		Long: `gaqlgate validates, optimizes, executes and caches Google Ads
queries, and exposes the whole surface as MCP tools for AI assistants.`,
	}

	rootCmd.PersistentFlags().StringVar(&cpath, "path", "./config",
		"path to the config directory")

	rootCmd.AddCommand(mcpCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads the configuration file. The file name comes from GG_ENV
// (dev, prod, ...) and defaults to dev.yml.
func setup(cpath string) {
	name := os.Getenv("GG_ENV")
	if name == "" {
		name = "dev"
	}

	c, err := serv.ReadInConfig(filepath.Join(cpath, name+".yml"))
	if err != nil {
		log.Fatalf("failed to read config: %s", err)
	}
	conf = c
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(serv.Version())
		},
	}
}
