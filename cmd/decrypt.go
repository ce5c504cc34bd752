package cmd

import (
	"fmt"

	"github.com/example/seat-scheduler/internal/crypto"
	"github.com/spf13/cobra"
)

func newDecryptCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "decrypt <aesjson>",
		Short: "Decode an aesjson claim payload with the configured key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := opts.viper()
			if err != nil {
				return err
			}
			codec, err := crypto.New([]byte(v.GetString("aes_key")), []byte(v.GetString("aes_iv")))
			if err != nil {
				return fmt.Errorf("codec: %w", err)
			}
			plain, err := codec.Decrypt(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), plain)
			return nil
		},
	}
}
