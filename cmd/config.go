// config.go implements the "walback config" command for configuration
// management.
//
// Design: config follows a cascade model similar to git: local config
// (.walback/config.yaml) takes precedence over global (~/.walback/config.yaml).
// The --local flag forces use of local config even if it doesn't exist yet,
// enabling config setup during init workflows.

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dlarsson-se/walback/internal/config"
)

func newConfigCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "config [key] [value]",
		Short: "View or set config values",
		Long: `View or set config values.

  walback config                # show config
  walback config retention      # show retention value
  walback config retention 30d  # set retention

Configuration locations:
  Global: ~/.walback/config.yaml
  Local:  .walback/config.yaml (created by init)

Uses local config if it exists, otherwise global.
Writes go to the same place reads come from.
Use --local to use local config instead.`,
		Args: cobra.MaximumNArgs(2),
		RunE: runConfig,
	}
	c.Flags().Bool("local", false, "Use local config (.walback/config.yaml)")
	return c
}

func runConfig(c *cobra.Command, args []string) error {
	forceLocal, _ := c.Flags().GetBool("local")

	// Load config: explicit path beats everything, then local if it
	// exists, otherwise global. --local forces local even if absent.
	var cfg *config.Config
	var err error
	if forceLocal {
		cfg, err = config.LoadScope(config.ScopeLocal)
	} else {
		cfg, err = config.Load(ConfigPath())
	}
	if err != nil {
		return PrintJSONError(fmt.Errorf("config load: %w", err))
	}

	scopeName := "global"
	switch cfg.Scope() {
	case config.ScopeLocal:
		scopeName = "local"
	case config.ScopeExplicit:
		scopeName = "explicit"
	}

	switch len(args) {
	case 0:
		if JSON() {
			return PrintJSON(cfg.All())
		}
		for _, k := range config.ValidKeys() {
			v, _ := cfg.Get(k)
			fmt.Fprintf(Out(), "%s: %s\n", k, v)
		}

	case 1:
		v, err := cfg.Get(args[0])
		if err != nil {
			return PrintJSONError(fmt.Errorf("config get %q: %w", args[0], err))
		}
		if JSON() {
			return PrintJSON(map[string]string{args[0]: v})
		}
		fmt.Fprintln(Out(), v)

	case 2:
		if err := cfg.Set(args[0], args[1]); err != nil {
			return PrintJSONError(fmt.Errorf("config set %q: %w", args[0], err))
		}
		if err := cfg.Save(); err != nil {
			return PrintJSONError(fmt.Errorf("config save: %w", err))
		}
		if JSON() {
			return PrintJSON(map[string]string{args[0]: args[1], "scope": scopeName})
		}
		fmt.Fprintf(Out(), "%s = %s (%s)\n", args[0], args[1], scopeName)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(newConfigCmd())
}
