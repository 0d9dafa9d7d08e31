package record

import (
	"errors"
	"testing"
)

func TestParseInstruction(t *testing.T) {
	row := map[string]string{
		ColTicker:    "NSE:ABC",
		ColType:      "RTP_BUY",
		ColUnits:     "10",
		ColPrice:     "100",
		ColAction:    "PLACE",
		ColMethod:    "KWK",
		ColLivePrice: "98.5",
		ColTickSize:  "0.05",
	}

	instr, err := ParseInstruction(7, row, "NSE")
	if err != nil {
		t.Fatalf("ParseInstruction returned error: %v", err)
	}

	if instr.RowNumber != 7 {
		t.Errorf("row number = %d", instr.RowNumber)
	}
	if instr.Exchange != "NSE" || instr.Symbol != "ABC" {
		t.Errorf("ticker split = %q %q", instr.Exchange, instr.Symbol)
	}
	if instr.Side != SideBuy {
		t.Errorf("side = %q", instr.Side)
	}
	if instr.Action != ActionPlace {
		t.Errorf("action = %q", instr.Action)
	}
	if instr.Units != 10 || instr.TriggerPrice != 100 || instr.TickSize != 0.05 || instr.LivePrice != 98.5 {
		t.Errorf("numeric fields = %+v", instr)
	}
}

func TestParseInstruction_MissingFields(t *testing.T) {
	base := map[string]string{
		ColTicker: "ABC",
		ColType:   "BUY X",
		ColAction: "PLACE",
	}

	for _, col := range []string{ColTicker, ColType, ColAction} {
		row := map[string]string{}
		for k, v := range base {
			row[k] = v
		}
		row[col] = "  "

		if _, err := ParseInstruction(2, row, "NSE"); !errors.Is(err, ErrMissingField) {
			t.Errorf("blank %s: expected ErrMissingField, got %v", col, err)
		}
	}
}

func TestParseExistingOrder(t *testing.T) {
	order := ParseExistingOrder(map[string]string{
		ColTicker:    "abc",
		ColType:      "RTP_SELL",
		ColUnits:     "5.0",
		ColPrice:     "99.95",
		ColTriggerID: "1234.0",
	})

	if order.Ticker != "abc" || order.Units != 5 || order.TriggerPrice != 99.95 {
		t.Errorf("unexpected order: %+v", order)
	}
	if id, ok := NormalizeTriggerID(order.TriggerID); !ok || id != 1234 {
		t.Errorf("trigger id normalization failed: %d %v", id, ok)
	}
}

func TestRowIsEmpty(t *testing.T) {
	if !RowIsEmpty(map[string]string{"A": " ", "B": ""}) {
		t.Errorf("expected empty")
	}
	if RowIsEmpty(map[string]string{"A": "", "B": "x"}) {
		t.Errorf("expected non-empty")
	}
}
