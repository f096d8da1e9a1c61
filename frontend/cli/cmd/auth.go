package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wthorbecke/gather/shared/keyring"
)

func NewAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "auth",
		Short:   "Manage provider API keys",
		GroupID: "system",
	}

	cmd.AddCommand(NewAuthSetKeyCmd())
	cmd.AddCommand(NewAuthClearCmd())
	return cmd
}

func NewAuthSetKeyCmd() *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "set-key <anthropic|openai>",
		Short: "Store a provider API key in the system keyring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secretName, err := secretNameFor(args[0])
			if err != nil {
				return err
			}

			value := key
			if value == "" {
				fmt.Fprint(cmd.OutOrStdout(), "API key: ")
				reader := bufio.NewReader(cmd.InOrStdin())
				line, err := reader.ReadString('\n')
				if err != nil {
					return fmt.Errorf("failed to read key: %w", err)
				}
				value = strings.TrimSpace(line)
			}
			if value == "" {
				return fmt.Errorf("key must not be empty")
			}

			if err := keyring.NewKeyringProvider().Set(secretName, value); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %s key.\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "the API key (omit to be prompted)")
	return cmd
}

func NewAuthClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <anthropic|openai>",
		Short: "Remove a stored provider API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secretName, err := secretNameFor(args[0])
			if err != nil {
				return err
			}

			if err := keyring.NewKeyringProvider().Delete(secretName); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s key.\n", args[0])
			return nil
		},
	}
}

func secretNameFor(provider string) (string, error) {
	switch provider {
	case "anthropic":
		return secretAnthropicKey, nil
	case "openai":
		return secretOpenAIKey, nil
	default:
		return "", fmt.Errorf("unknown provider %q (anthropic or openai)", provider)
	}
}
