// Command automeet transcribes and analyses meeting recordings, either as a
// one-shot CLI or as an HTTP service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kbukum/automeet/config"
	"github.com/kbukum/automeet/version"
)

const serviceName = "automeet"

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configFile string
	envFile    string
}

func (g *globalFlags) load() (*config.AppConfig, error) {
	var opts []config.LoaderOption
	if g.configFile != "" {
		opts = append(opts, config.WithConfigFile(g.configFile))
	}
	if g.envFile != "" {
		opts = append(opts, config.WithEnvFile(g.envFile))
	}
	return config.Load(serviceName, opts...)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           serviceName,
		Short:         "Meeting transcription and analysis",
		Version:       version.Get().String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&g.configFile, "config", "c", "", "path to config.yml")
	root.PersistentFlags().StringVar(&g.envFile, "env-file", "", "path to a .env file")

	root.AddCommand(
		newServeCmd(g),
		newTranscribeCmd(g),
		newStreamCmd(g),
		newCacheCmd(g),
		newVersionCmd(),
	)
	return root
}
