// AngelaMos | 2026
// keygen.go

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wealthsupernova/supernova/internal/auth"
)

var (
	privateKeyPath string
	publicKeyPath  string
	overwriteKeys  bool
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate the ES256 key pair used to sign access tokens",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !overwriteKeys {
			for _, p := range []string{privateKeyPath, publicKeyPath} {
				if _, err := os.Stat(p); err == nil {
					return fmt.Errorf("%s already exists, pass --force to replace it", p)
				}
			}
		}

		for _, p := range []string{privateKeyPath, publicKeyPath} {
			if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
				return fmt.Errorf("create key dir: %w", err)
			}
		}

		if err := auth.GenerateKeyPair(privateKeyPath, publicKeyPath); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s and %s\n", privateKeyPath, publicKeyPath)
		return nil
	},
}

func init() {
	keygenCmd.Flags().StringVar(&privateKeyPath, "private", "keys/private.pem", "private key output path")
	keygenCmd.Flags().StringVar(&publicKeyPath, "public", "keys/public.pem", "public key output path")
	keygenCmd.Flags().BoolVar(&overwriteKeys, "force", false, "replace existing keys")
}
