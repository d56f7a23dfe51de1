package models

import "testing"

func TestTradeIDDeterministic(t *testing.T) {
	a := TradeID("token-1", "BUY", 0.55, 120.5, 1700000000, "0xabc", "0xwallet")
	b := TradeID("token-1", "BUY", 0.55, 120.5, 1700000000, "0xabc", "0xwallet")
	if a != b {
		t.Fatalf("same trade produced different ids: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected 64-char hex id, got %d chars", len(a))
	}
}

func TestTradeIDDistinguishesFields(t *testing.T) {
	base := TradeID("token-1", "BUY", 0.55, 120.5, 1700000000, "0xabc", "0xwallet")

	variants := []string{
		TradeID("token-2", "BUY", 0.55, 120.5, 1700000000, "0xabc", "0xwallet"),
		TradeID("token-1", "SELL", 0.55, 120.5, 1700000000, "0xabc", "0xwallet"),
		TradeID("token-1", "BUY", 0.56, 120.5, 1700000000, "0xabc", "0xwallet"),
		TradeID("token-1", "BUY", 0.55, 120.6, 1700000000, "0xabc", "0xwallet"),
		TradeID("token-1", "BUY", 0.55, 120.5, 1700000001, "0xabc", "0xwallet"),
		TradeID("token-1", "BUY", 0.55, 120.5, 1700000000, "0xdef", "0xwallet"),
		TradeID("token-1", "BUY", 0.55, 120.5, 1700000000, "0xabc", "0xother"),
	}
	for i, v := range variants {
		if v == base {
			t.Fatalf("variant %d collided with base id", i)
		}
	}
}

func TestTradeIDFloatFormatting(t *testing.T) {
	// 0.1 and 0.10 are the same price; formatting must not distinguish them
	a := TradeID("token-1", "BUY", 0.1, 1, 1700000000, "0xabc", "0xwallet")
	b := TradeID("token-1", "BUY", 0.10, 1.0, 1700000000, "0xabc", "0xwallet")
	if a != b {
		t.Fatalf("equivalent floats produced different ids")
	}
}
