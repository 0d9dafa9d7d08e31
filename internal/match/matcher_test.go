package match

import (
	"testing"

	"gtt-sync/internal/record"
)

func makeInstruction(ticker, rawType string, units int, price float64) record.Instruction {
	return record.Instruction{
		Ticker:       ticker,
		RawType:      rawType,
		Units:        units,
		TriggerPrice: price,
	}
}

func TestFind_StrictRequiresAllFourFields(t *testing.T) {
	orders := []record.ExistingOrder{
		{Ticker: "abc", RawType: "RTP_BUY", Units: 10, TriggerPrice: 100.00, TriggerID: "1"},
		{Ticker: "ABC", RawType: "RTP_BUY", Units: 10, TriggerPrice: 105.00, TriggerID: "2"},
		{Ticker: "ABC", RawType: "RTP_SELL", Units: 10, TriggerPrice: 100.00, TriggerID: "3"},
		{Ticker: "XYZ", RawType: "RTP_BUY", Units: 10, TriggerPrice: 100.00, TriggerID: "4"},
	}

	instr := makeInstruction("ABC", "LIMIT BUY", 10, 100.005)
	got := Find(instr, orders, Strict)
	if len(got) != 1 || got[0].TriggerID != "1" {
		t.Fatalf("expected single strict match (id 1), got %+v", got)
	}

	instr.Units = 11
	if got := Find(instr, orders, Strict); len(got) != 0 {
		t.Errorf("units mismatch should not match, got %+v", got)
	}
}

func TestFind_StrictPriceTolerance(t *testing.T) {
	orders := []record.ExistingOrder{
		{Ticker: "ABC", RawType: "RTP_BUY", Units: 10, TriggerPrice: 100.00},
	}

	within := makeInstruction("ABC", "RTP_BUY", 10, 100.009)
	if got := Find(within, orders, Strict); len(got) != 1 {
		t.Errorf("price within tolerance should match, got %+v", got)
	}

	outside := makeInstruction("ABC", "RTP_BUY", 10, 100.02)
	if got := Find(outside, orders, Strict); len(got) != 0 {
		t.Errorf("price outside tolerance should not match, got %+v", got)
	}
}

func TestFind_LooseIgnoresUnitsAndPrice(t *testing.T) {
	orders := []record.ExistingOrder{
		{Ticker: "ABC", RawType: "RTP_BUY", Units: 5, TriggerPrice: 90.00, TriggerID: "1"},
		{Ticker: "ABC", RawType: "RTP_BUY", Units: 99, TriggerPrice: 200.00, TriggerID: "2"},
		{Ticker: "ABC", RawType: "RTP_SELL", Units: 5, TriggerPrice: 90.00, TriggerID: "3"},
	}

	instr := makeInstruction("abc", "LIMIT BUY", 10, 123.45)
	got := Find(instr, orders, Loose)
	if len(got) != 2 {
		t.Fatalf("expected 2 loose matches, got %+v", got)
	}
}

func TestFind_UnrecognizedTypePassesThrough(t *testing.T) {
	orders := []record.ExistingOrder{
		{Ticker: "ABC", RawType: "WEIRD", Units: 10, TriggerPrice: 100},
		{Ticker: "ABC", RawType: "RTP_BUY", Units: 10, TriggerPrice: 100},
	}

	instr := makeInstruction("ABC", "WEIRD", 10, 100)
	got := Find(instr, orders, Loose)
	if len(got) != 1 || got[0].RawType != "WEIRD" {
		t.Errorf("unrecognized type should only match itself, got %+v", got)
	}
}
