package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "gateway",
		Short: "Admission-control gateway for the forum write endpoints",
		Long: `gateway fica na frente do fórum e aplica os limites de admissão
(token bucket / janela fixa) nas rotas configuradas antes de repassar ao upstream.`,
		SilenceUsage: true,
	}

	var configPath string
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML config file (default: ./configs/gateway.yaml if present)")

	rootCmd.AddCommand(
		newServeCommand(&configPath),
		newRulesCommand(&configPath),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
