package cmd

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/holiman/uint256"
	"github.com/mezonai/syncgate/jsonx"
	"github.com/mezonai/syncgate/transaction"
	"github.com/spf13/cobra"
)

var (
	signKey    string
	signTo     string
	signTicker string
	signAmount string
	signNonce  uint64
	signData   string
	signPost   string
)

var signTxCmd = &cobra.Command{
	Use:   "signtx",
	Short: "Build and sign a transaction, optionally submitting it to a node",
	RunE: func(cmd *cobra.Command, args []string) error {
		priv, err := loadSigningKey(signKey)
		if err != nil {
			return err
		}
		amount, err := uint256.FromDecimal(signAmount)
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", signAmount, err)
		}

		tx := &transaction.Transaction{
			From:   transaction.CompressedPubKeyHex(priv.PubKey()),
			To:     signTo,
			Ticker: signTicker,
			Amount: amount,
			Data:   signData,
			Nonce:  signNonce,
		}
		tx.Normalize()
		tx.SignWith(priv)
		tx.Hash = tx.ComputeHash()

		if signPost == "" {
			fmt.Fprintln(cmd.OutOrStdout(), string(tx.Bytes()))
			return nil
		}

		// submit the wire form; the node derives the hash itself
		body, err := jsonx.Marshal(tx.Raw())
		if err != nil {
			return err
		}

		client := &http.Client{Timeout: 10 * time.Second}
		url := strings.TrimRight(signPost, "/") + "/api/v1/tx"
		resp, err := client.Post(url, "application/json", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("submit transaction: %w", err)
		}
		defer resp.Body.Close()
		out, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		var result map[string]any
		if err := jsonx.Unmarshal(out, &result); err != nil {
			return fmt.Errorf("node returned %s: %s", resp.Status, out)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(signTxCmd)
	signTxCmd.Flags().StringVar(&signKey, "key", "", "Private key hex or path to a key file")
	signTxCmd.Flags().StringVar(&signTo, "to", "", "Recipient address")
	signTxCmd.Flags().StringVar(&signTicker, "ticker", "", "Token ticker (64 hex chars)")
	signTxCmd.Flags().StringVar(&signAmount, "amount", "0", "Amount in base units")
	signTxCmd.Flags().Uint64Var(&signNonce, "nonce", 0, "Sender nonce")
	signTxCmd.Flags().StringVar(&signData, "data", "", "Memo or contract call")
	signTxCmd.Flags().StringVar(&signPost, "post", "", "Node base URL to submit to, e.g. http://127.0.0.1:8080")
	_ = signTxCmd.MarkFlagRequired("key")
	_ = signTxCmd.MarkFlagRequired("to")
	_ = signTxCmd.MarkFlagRequired("ticker")
}
