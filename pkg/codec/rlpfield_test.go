package codec

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
)

func TestDecodeHeaderField(t *testing.T) {
	h := &types.Header{
		ParentHash: common.HexToHash("0x01"),
		Number:     big.NewInt(12345),
		GasLimit:   30000000,
		GasUsed:    21000,
		Time:       1700000000,
	}
	raw, err := rlp.EncodeToBytes(h)
	if err != nil {
		t.Fatalf("encode header: %v", err)
	}

	got, err := DecodeHeaderField(FieldHeaderNumber, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Uint64() != 12345 {
		t.Errorf("number: got %d, want 12345", got.Uint64())
	}

	got, err = DecodeHeaderField(FieldHeaderGasLimit, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Uint64() != 30000000 {
		t.Errorf("gas limit: got %d, want 30000000", got.Uint64())
	}
}

func TestDecodeHeaderFieldUnknownField(t *testing.T) {
	h := &types.Header{Number: big.NewInt(1)}
	raw, _ := rlp.EncodeToBytes(h)
	if _, err := DecodeHeaderField(DatalakeField(999), raw); err == nil {
		t.Error("expected error for unknown field")
	}
}

func TestDecodeAccountField(t *testing.T) {
	acc := rlpAccount{
		Nonce:    7,
		Balance:  big.NewInt(1_000_000),
		Root:     common.HexToHash("0x02"),
		CodeHash: common.HexToHash("0x03").Bytes(),
	}
	raw, err := rlp.EncodeToBytes(&acc)
	if err != nil {
		t.Fatalf("encode account: %v", err)
	}

	got, err := DecodeAccountField(FieldAccountNonce, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Uint64() != 7 {
		t.Errorf("nonce: got %d, want 7", got.Uint64())
	}

	got, err = DecodeAccountField(FieldAccountBalance, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Uint64() != 1_000_000 {
		t.Errorf("balance: got %d, want 1000000", got.Uint64())
	}
}

func TestDecodeTransactionField(t *testing.T) {
	to := common.HexToAddress("0xabc")
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    3,
		To:       &to,
		Value:    big.NewInt(42),
		Gas:      21000,
		GasPrice: big.NewInt(1),
	})

	got, err := DecodeTransactionField(FieldTxNonce, tx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Uint64() != 3 {
		t.Errorf("nonce: got %d, want 3", got.Uint64())
	}

	got, err = DecodeTransactionField(FieldTxValue, tx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Uint64() != 42 {
		t.Errorf("value: got %d, want 42", got.Uint64())
	}

	got, err = DecodeTransactionField(FieldTxType, tx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Uint64() != uint64(types.LegacyTxType) {
		t.Errorf("type: got %d, want %d", got.Uint64(), types.LegacyTxType)
	}
}

func TestDecodeReceiptField(t *testing.T) {
	r := &types.Receipt{
		Status:            types.ReceiptStatusSuccessful,
		CumulativeGasUsed: 50000,
		Type:              types.DynamicFeeTxType,
	}

	got, err := DecodeReceiptField(FieldReceiptSuccess, r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Uint64() != 1 {
		t.Errorf("success: got %d, want 1", got.Uint64())
	}

	got, err = DecodeReceiptField(FieldReceiptCumulativeGasUsed, r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Uint64() != 50000 {
		t.Errorf("cumulative gas used: got %d, want 50000", got.Uint64())
	}
}
