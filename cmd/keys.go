package cmd

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tdopierre/book-better-activities/internal/config"
	"github.com/tdopierre/book-better-activities/internal/crypto"
)

func newKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage the config encryption key",
	}
	cmd.AddCommand(newKeysGenerateCmd())
	cmd.AddCommand(newKeysEncryptCmd())
	return cmd
}

func newKeysGenerateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: fmt.Sprintf("Generate a %s value (base64)", config.EncKeyEnv),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := crypto.NewKey()
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "export %s=%s\n", config.EncKeyEnv, base64.StdEncoding.EncodeToString(key))
			return nil
		},
	}
}

func newKeysEncryptCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "encrypt <value>",
		Short: fmt.Sprintf("Encrypt a secret for use in config files (requires %s)", config.EncKeyEnv),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := strings.TrimSpace(os.Getenv(config.EncKeyEnv))
			if raw == "" {
				return fmt.Errorf("%s is not set", config.EncKeyEnv)
			}
			key, err := base64.StdEncoding.DecodeString(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", config.EncKeyEnv, err)
			}
			aead, err := crypto.New(key)
			if err != nil {
				return err
			}
			ct, err := aead.EncryptToString(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "enc:%s\n", ct)
			return nil
		},
	}
	return c
}
