package cmd

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/mezonai/syncgate/transaction"
	"github.com/spf13/cobra"
)

var keygenOut string

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a secp256k1 key pair for signing transactions",
	RunE: func(cmd *cobra.Command, args []string) error {
		priv, err := secp256k1.GeneratePrivateKey()
		if err != nil {
			return fmt.Errorf("generate key: %w", err)
		}
		privHex := hex.EncodeToString(priv.Serialize())
		address := transaction.CompressedPubKeyHex(priv.PubKey())

		if keygenOut != "" {
			if err := os.MkdirAll(filepath.Dir(keygenOut), 0700); err != nil {
				return err
			}
			if err := os.WriteFile(keygenOut, []byte(privHex), 0600); err != nil {
				return fmt.Errorf("write private key: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "private key written to", keygenOut)
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "private key:", privHex)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "address:", address)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
	keygenCmd.Flags().StringVarP(&keygenOut, "out", "o", "", "Write the private key hex to this file instead of stdout")
}

// loadSigningKey accepts either a hex private key or a path to a file holding one.
func loadSigningKey(keyOrPath string) (*secp256k1.PrivateKey, error) {
	keyHex := strings.TrimSpace(keyOrPath)
	if data, err := os.ReadFile(keyOrPath); err == nil {
		keyHex = strings.TrimSpace(string(data))
	}
	raw, err := hex.DecodeString(keyHex)
	if err != nil || len(raw) != secp256k1.PrivKeyBytesLen {
		return nil, fmt.Errorf("private key must be %d bytes of hex", secp256k1.PrivKeyBytesLen)
	}
	return secp256k1.PrivKeyFromBytes(raw), nil
}
