package transaction

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/holiman/uint256"
	"github.com/mezonai/syncgate/jsonx"
)

// StatusPending marks a transaction that was admitted and not yet confirmed.
const StatusPending = 0

// Limits to prevent DoS via oversized inputs
const (
	MaxDataLen     = 512
	MaxSignHexLen  = 2 * 80
	MaxSafeInteger = 1<<53 - 1
)

// RawTx is a transaction exactly as a submitter sent it. Every field stays
// undecoded so the validator can tell a missing field from a mistyped one.
type RawTx struct {
	Amount jsonx.RawMessage `json:"amount,omitempty"`
	Data   jsonx.RawMessage `json:"data,omitempty"`
	From   jsonx.RawMessage `json:"from,omitempty"`
	Nonce  jsonx.RawMessage `json:"nonce,omitempty"`
	Sign   jsonx.RawMessage `json:"sign,omitempty"`
	Ticker jsonx.RawMessage `json:"ticker,omitempty"`
	To     jsonx.RawMessage `json:"to,omitempty"`
	Hash   jsonx.RawMessage `json:"hash,omitempty"`
}

// ParseRawTx decodes one JSON object into a RawTx.
func ParseRawTx(data []byte) (*RawTx, error) {
	var raw RawTx
	if err := jsonx.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode tx: %w", err)
	}
	return &raw, nil
}

// Transaction is the canonical form of an admitted transaction.
type Transaction struct {
	From   string
	To     string
	Ticker string
	Amount *uint256.Int
	Data   string
	Nonce  uint64
	Sign   string
	Hash   string
}

type txJSON struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Ticker string `json:"ticker"`
	Amount string `json:"amount"`
	Data   string `json:"data"`
	Nonce  uint64 `json:"nonce"`
	Sign   string `json:"sign"`
	Hash   string `json:"hash,omitempty"`
}

func (tx *Transaction) MarshalJSON() ([]byte, error) {
	return jsonx.Marshal(txJSON{
		From:   tx.From,
		To:     tx.To,
		Ticker: tx.Ticker,
		Amount: tx.AmountString(),
		Data:   tx.Data,
		Nonce:  tx.Nonce,
		Sign:   tx.Sign,
		Hash:   tx.Hash,
	})
}

func (tx *Transaction) UnmarshalJSON(data []byte) error {
	var v txJSON
	if err := jsonx.Unmarshal(data, &v); err != nil {
		return err
	}
	amount, err := uint256.FromDecimal(v.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", v.Amount, err)
	}
	*tx = Transaction{
		From:   v.From,
		To:     v.To,
		Ticker: v.Ticker,
		Amount: amount,
		Data:   v.Data,
		Nonce:  v.Nonce,
		Sign:   v.Sign,
		Hash:   v.Hash,
	}
	return nil
}

// AmountString renders the amount in base units, "0" if unset.
func (tx *Transaction) AmountString() string {
	if tx.Amount == nil {
		return "0"
	}
	return tx.Amount.Dec()
}

// Normalize lowercases the hex addresses so equal keys hash equally.
func (tx *Transaction) Normalize() {
	tx.From = strings.ToLower(tx.From)
	tx.To = strings.ToLower(tx.To)
}

// canonicalFields lists field values in their canonical order: amount,
// data, from, nonce, [sign,] ticker, to.
func (tx *Transaction) canonicalFields(withSign bool) []string {
	fields := []string{tx.AmountString(), tx.Data, tx.From, strconv.FormatUint(tx.Nonce, 10)}
	if withSign {
		fields = append(fields, tx.Sign)
	}
	return append(fields, tx.Ticker, tx.To)
}

// SigningHash is the 32-byte digest the sender signs.
func (tx *Transaction) SigningHash() []byte {
	return fieldsDigest(tx.canonicalFields(false))
}

// ComputeHash returns the transaction id: the digest over every canonical
// field including the signature.
func (tx *Transaction) ComputeHash() string {
	return hex.EncodeToString(fieldsDigest(tx.canonicalFields(true)))
}

// fieldsDigest hashes each field, concatenates the hex digests and hashes
// the result.
func fieldsDigest(fields []string) []byte {
	h := sha256.New()
	for _, f := range fields {
		sum := sha256.Sum256([]byte(f))
		h.Write([]byte(hex.EncodeToString(sum[:])))
	}
	return h.Sum(nil)
}

// VerifySignature checks Sign as a DER-encoded ECDSA signature by From over
// SigningHash.
func (tx *Transaction) VerifySignature() error {
	pubBytes, err := hex.DecodeString(tx.From)
	if err != nil {
		return fmt.Errorf("decode sender key: %w", err)
	}
	pub, err := secp256k1.ParsePubKey(pubBytes)
	if err != nil {
		return fmt.Errorf("parse sender key: %w", err)
	}
	sigBytes, err := hex.DecodeString(tx.Sign)
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	sig, err := ecdsa.ParseDERSignature(sigBytes)
	if err != nil {
		return fmt.Errorf("parse signature: %w", err)
	}
	if !sig.Verify(tx.SigningHash(), pub) {
		return fmt.Errorf("signature does not match sender")
	}
	return nil
}

// SignWith signs the transaction with priv and stores the hex DER signature.
func (tx *Transaction) SignWith(priv *secp256k1.PrivateKey) {
	sig := ecdsa.Sign(priv, tx.SigningHash())
	tx.Sign = hex.EncodeToString(sig.Serialize())
}

// Raw converts the canonical form back into a wire RawTx, e.g. for a
// transaction relayed by a peer.
func (tx *Transaction) Raw() *RawTx {
	str := func(s string) jsonx.RawMessage {
		b, _ := jsonx.Marshal(s)
		return b
	}
	return &RawTx{
		Amount: str(tx.AmountString()),
		Data:   str(tx.Data),
		From:   str(tx.From),
		Nonce:  jsonx.RawMessage(strconv.FormatUint(tx.Nonce, 10)),
		Sign:   str(tx.Sign),
		Ticker: str(tx.Ticker),
		To:     str(tx.To),
	}
}

// Bytes returns the JSON encoding of the transaction.
func (tx *Transaction) Bytes() []byte {
	b, _ := jsonx.Marshal(tx)
	return b
}

// CompressedPubKeyHex renders a key the way addresses are written.
func CompressedPubKeyHex(pub *secp256k1.PublicKey) string {
	return hex.EncodeToString(pub.SerializeCompressed())
}
