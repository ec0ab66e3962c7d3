package validation

import (
	"bytes"
	"context"
	"math/big"
	"regexp"

	"github.com/holiman/uint256"
	"github.com/mezonai/syncgate/contract"
	"github.com/mezonai/syncgate/errors"
	"github.com/mezonai/syncgate/jsonx"
	"github.com/mezonai/syncgate/logx"
	"github.com/mezonai/syncgate/transaction"
)

var (
	addressRegexp = regexp.MustCompile(`^0[23][0-9a-fA-F]{64}$`)
	tickerRegexp  = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)
	amountRegexp  = regexp.MustCompile(`^(0|[1-9][0-9]*)$`)
	integerRegexp = regexp.MustCompile(`^-?[0-9]+$`)
	dataRegexp    = regexp.MustCompile(`^[0-9a-zA-Z _\-/.]{0,512}$`)
	hexRegexp     = regexp.MustCompile(`^([0-9a-fA-F]{2})+$`)

	maxSafeInteger = big.NewInt(transaction.MaxSafeInteger)
)

// Validator runs the admission checks in a fixed order and stops at the
// first failure.
type Validator struct {
	maxSupply *big.Int
	gate      contract.Gate
	log       *logx.Logger
}

// NewValidator builds a Validator. A nil gate rejects every contract call.
func NewValidator(maxSupply *big.Int, gate contract.Gate, log *logx.Logger) *Validator {
	if gate == nil {
		gate = contract.NewGate(nil, log)
	}
	return &Validator{maxSupply: maxSupply, gate: gate, log: log}
}

func reject(kind errors.ErrorKind, msg string) *errors.AdmissionError {
	return errors.NewAdmissionError(kind, msg)
}

// ValidatePayload validates a request body that must hold exactly one
// transaction object.
func (v *Validator) ValidatePayload(ctx context.Context, body []byte) (*transaction.Transaction, *errors.AdmissionError) {
	if jsonx.IsArray(body) {
		return nil, reject(errors.KindOnlyOneAllowed, errors.ErrMsgOnlyOneAllowed)
	}
	raw, err := transaction.ParseRawTx(body)
	if err != nil {
		return nil, reject(errors.KindInvalidRequest, errors.ErrMsgInvalidRequest)
	}
	return v.Validate(ctx, raw)
}

// Validate checks raw and returns its canonical form.
func (v *Validator) Validate(ctx context.Context, raw *transaction.RawTx) (*transaction.Transaction, *errors.AdmissionError) {
	if raw == nil {
		return nil, reject(errors.KindMissingFields, errors.ErrMsgMissingFields)
	}
	for _, field := range []jsonx.RawMessage{raw.Amount, raw.Data, raw.From, raw.Nonce, raw.Sign, raw.Ticker, raw.To} {
		if jsonx.IsAbsent(field) {
			return nil, reject(errors.KindMissingFields, errors.ErrMsgMissingFields)
		}
	}

	from, okFrom := decodeString(raw.From)
	to, okTo := decodeString(raw.To)
	if !okFrom || !okTo || !addressRegexp.MatchString(from) || !addressRegexp.MatchString(to) {
		return nil, reject(errors.KindInvalidAddress, errors.ErrMsgInvalidAddress)
	}

	ticker, ok := decodeString(raw.Ticker)
	if !ok || !tickerRegexp.MatchString(ticker) {
		return nil, reject(errors.KindInvalidTicker, errors.ErrMsgInvalidTicker)
	}

	amount, verdict := v.parseAmount(raw.Amount)
	if verdict != nil {
		return nil, verdict
	}

	nonce, verdict := parseNonce(raw.Nonce)
	if verdict != nil {
		return nil, verdict
	}

	data, ok := decodeString(raw.Data)
	if !ok || !dataRegexp.MatchString(data) {
		return nil, reject(errors.KindInvalidData, errors.ErrMsgInvalidData)
	}

	sign, ok := decodeString(raw.Sign)
	if !ok || len(sign) > transaction.MaxSignHexLen || !hexRegexp.MatchString(sign) {
		return nil, reject(errors.KindInvalidSignFormat, errors.ErrMsgInvalidSignFormat)
	}

	tx := &transaction.Transaction{
		From:   from,
		To:     to,
		Ticker: ticker,
		Amount: amount,
		Data:   data,
		Nonce:  nonce,
		Sign:   sign,
	}
	tx.Normalize()

	if err := tx.VerifySignature(); err != nil {
		v.log.Debug("VALIDATOR", "signature check failed for ", tx.From, ": ", err)
		return nil, reject(errors.KindSignatureInvalid, errors.ErrMsgSignatureInvalid)
	}

	if v.gate.IsContract(tx.Data) {
		if !v.gate.Validate(ctx, tx.Data) {
			return nil, reject(errors.KindContractInvalid, errors.ErrMsgContractInvalid)
		}
	}
	return tx, nil
}

func (v *Validator) parseAmount(raw jsonx.RawMessage) (*uint256.Int, *errors.AdmissionError) {
	raw = bytes.TrimSpace(raw)
	var literal string
	switch first := raw[0]; {
	case first == '"':
		s, _ := decodeString(raw)
		if len(s) == 0 || (len(s) > 1 && s[0] == '0') {
			return nil, reject(errors.KindInvalidAmountFormat, errors.ErrMsgInvalidAmountFormat)
		}
		literal = s
	case first == '-' || (first >= '0' && first <= '9'):
		literal = string(raw)
	default:
		return nil, reject(errors.KindInvalidAmountType, errors.ErrMsgInvalidAmountType)
	}

	if !amountRegexp.MatchString(literal) {
		return nil, reject(errors.KindInvalidAmountFormat, errors.ErrMsgInvalidAmountFormat)
	}
	n, ok := new(big.Int).SetString(literal, 10)
	if !ok {
		return nil, reject(errors.KindInvalidAmountFormat, errors.ErrMsgInvalidAmountFormat)
	}
	if n.Sign() < 0 || n.Cmp(v.maxSupply) > 0 {
		return nil, reject(errors.KindAmountOutOfRange, errors.ErrMsgAmountOutOfRange)
	}
	amount, overflow := uint256.FromBig(n)
	if overflow {
		return nil, reject(errors.KindAmountOutOfRange, errors.ErrMsgAmountOutOfRange)
	}
	return amount, nil
}

func parseNonce(raw jsonx.RawMessage) (uint64, *errors.AdmissionError) {
	raw = bytes.TrimSpace(raw)
	first := raw[0]
	if first != '-' && (first < '0' || first > '9') {
		return 0, reject(errors.KindInvalidNonceType, errors.ErrMsgInvalidNonceType)
	}
	literal := string(raw)

	var n *big.Int
	if integerRegexp.MatchString(literal) {
		n, _ = new(big.Int).SetString(literal, 10)
	} else {
		// fractions and exponents are fine as long as the value is integral
		f, ok := new(big.Float).SetPrec(256).SetString(literal)
		if !ok || !f.IsInt() {
			return 0, reject(errors.KindInvalidNonceType, errors.ErrMsgInvalidNonceType)
		}
		n, _ = f.Int(nil)
	}
	if n == nil {
		return 0, reject(errors.KindInvalidNonceType, errors.ErrMsgInvalidNonceType)
	}
	if n.Sign() < 0 || n.Cmp(maxSafeInteger) > 0 {
		return 0, reject(errors.KindNonceOutOfRange, errors.ErrMsgNonceOutOfRange)
	}
	return n.Uint64(), nil
}

func decodeString(raw jsonx.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if err := jsonx.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
