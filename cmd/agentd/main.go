package main

import (
	"fmt"
	"os"

	"agentd/internal/config"
	"agentd/internal/provider"
	"agentd/internal/server"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "agentd",
		Short:         "Request/response bridge and automation agent for an interactive coding assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var (
		configPath string
		addr       string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP bridge and automation endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			llm := provider.New(provider.Config{
				BaseURL:    cfg.Provider.BaseURL,
				APIKey:     cfg.Provider.APIKey,
				Model:      cfg.Provider.Model,
				TimeoutMS:  cfg.Provider.TimeoutMS,
				MaxRetries: cfg.Provider.MaxRetries,
			})

			// The concrete engine adapter is linked by the deployment; a
			// build without one can still run the repository automation
			// endpoints up to the conversation step.
			srv := server.New(cfg,
				server.WithChatClient(llm),
				server.WithLogWriter(os.Stderr),
			)
			return srv.ListenAndServe()
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "Path to YAML config file")
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address override")
	return cmd
}
