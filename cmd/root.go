package cmd

import (
	"fmt"
	"os"

	"github.com/example/seat-scheduler/internal/config"
	"github.com/example/seat-scheduler/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

type rootOptions struct {
	configPath string
	debug      bool
}

// viper reads config.yml (or --config) with SEATSCHED_ env overrides.
func (o *rootOptions) viper() (*viper.Viper, error) {
	v := viper.New()
	if err := config.Read(v, o.configPath); err != nil {
		return nil, err
	}
	return v, nil
}

func (o *rootOptions) logger() (*zap.Logger, error) {
	log, err := logging.New(o.debug)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return log, nil
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "seatsched",
		Short:         "Claims a library seat the moment the reservation window opens",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config.yml (default: ./config.yml or next to the binary)")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "human readable debug logging")

	root.AddCommand(newRunCmd(opts))
	root.AddCommand(newHistoryCmd(opts))
	root.AddCommand(newDecryptCmd(opts))
	root.AddCommand(newVersionCmd())

	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
