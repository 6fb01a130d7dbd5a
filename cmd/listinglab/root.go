package main

import (
	"github.com/spf13/cobra"
)

// version se fija en build vía -ldflags.
var version = "dev"

const defaultConfigPath = "config/config.yaml"

// globalOptions contiene los flags persistentes comunes a todos los comandos.
type globalOptions struct {
	configPath string
	verbose    bool
	logFormat  string
}

const longHelp = `listinglab provisions content experiments (title, main image, bullet points,
A+ content) on a marketplace listing, collects their metrics and applies the
winning variant once a two-proportion z-test confirms it.`

// newRootCmd construye el árbol de comandos completo. Los valores de los flags
// viven en el árbol, así que cada llamada parte de los defaults.
func newRootCmd() *cobra.Command {
	g := &globalOptions{}

	root := &cobra.Command{
		Use:           "listinglab",
		Short:         "A/B experiments for marketplace listings",
		Long:          longHelp,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", defaultConfigPath, "path to config file")
	pf.BoolVar(&g.verbose, "verbose", false, "set log level to debug")
	pf.StringVar(&g.logFormat, "format", "", "log format: text|json (overrides config)")

	root.AddCommand(
		newCreateCmd(g),
		newProvisionCmd(g),
		newStartCmd(g),
		newStopCmd(g),
		newCollectCmd(g),
		newAnalyzeCmd(g),
		newApplyCmd(g),
		newListCmd(g),
		newShowCmd(g),
		newMonitorCmd(g),
	)
	return root
}
