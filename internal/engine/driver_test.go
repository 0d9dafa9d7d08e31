package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"gtt-sync/internal/config"
)

// fakeInstructions 模拟指令表：data 为第 2 行起的数据行。
type fakeInstructions struct {
	preflight    string
	preflightErr error
	header       []string
	data         []map[string]string
	cleared      []string
	readCalls    int
}

func (f *fakeInstructions) Header(ctx context.Context) ([]string, error) {
	return f.header, nil
}

func (f *fakeInstructions) ReadCell(ctx context.Context, cell string) (string, error) {
	return f.preflight, f.preflightErr
}

func (f *fakeInstructions) ReadRows(ctx context.Context, startRow, numRows int) ([]map[string]string, error) {
	f.readCalls++
	return sliceRows(f.data, startRow, numRows), nil
}

func (f *fakeInstructions) BatchClear(ctx context.Context, ranges []string) error {
	f.cleared = append(f.cleared, ranges...)
	return nil
}

func (f *fakeInstructions) RowCount(ctx context.Context) (int, error) {
	return len(f.data) + 1, nil
}

type fakeTracking struct {
	data []map[string]string
}

func (f *fakeTracking) ReadRows(ctx context.Context, startRow, numRows int) ([]map[string]string, error) {
	return sliceRows(f.data, startRow, numRows), nil
}

func sliceRows(data []map[string]string, startRow, numRows int) []map[string]string {
	idx := startRow - 2
	if idx < 0 || idx >= len(data) {
		return nil
	}
	end := idx + numRows
	if end > len(data) {
		end = len(data)
	}
	return data[idx:end]
}

type fakeReporter struct {
	statuses map[int]string
	flushes  int
}

func newFakeReporter() *fakeReporter {
	return &fakeReporter{statuses: make(map[int]string)}
}

func (f *fakeReporter) Queue(rowNumber int, status string) {
	f.statuses[rowNumber] = status
}

func (f *fakeReporter) Flush(ctx context.Context) {
	f.flushes++
}

func testEngineConfig(batchSize int) config.EngineConfig {
	return config.EngineConfig{
		BatchSize:      batchSize,
		PriceBufferPct: 0.5,
		PriceTolerance: 0.01,
		PreflightCell:  "K1",
		EmptyBatchLim:  3,
	}
}

func newTestDriver(instr *fakeInstructions, track *fakeTracking, b brokerAPI, reporter statusReporter, batchSize int) *Driver {
	d := NewDriver(instr, track, newTestDispatcher(b), reporter, nil, testEngineConfig(batchSize), "NSE", nil)
	d.sleep = func(ctx context.Context, dur time.Duration) error { return nil }
	return d
}

func instructionRow(ticker, typ, units, price, tick, action string) map[string]string {
	return map[string]string{
		"TICKER":    ticker,
		"TYPE":      typ,
		"UNITS":     units,
		"GTT PRICE": price,
		"TICK SIZE": tick,
		"ACTION":    action,
	}
}

func emptyRow() map[string]string {
	return map[string]string{"TICKER": "", "TYPE": "", "ACTION": ""}
}

func TestDriverPreflightSkipsPass(t *testing.T) {
	for _, value := range []string{"0", "", "-1", "abc"} {
		instr := &fakeInstructions{preflight: value, header: []string{"TICKER", "STATUS"}}
		d := newTestDriver(instr, &fakeTracking{}, &mockBroker{}, newFakeReporter(), 5)

		summary, err := d.Run(context.Background())
		if err != nil {
			t.Fatalf("preflight %q: unexpected error: %v", value, err)
		}
		if !summary.Skipped {
			t.Errorf("preflight %q: expected pass skipped", value)
		}
		if instr.readCalls != 0 {
			t.Errorf("preflight %q: expected no row reads, got %d", value, instr.readCalls)
		}
	}
}

func TestDriverPreflightReadErrorSkipsPass(t *testing.T) {
	instr := &fakeInstructions{preflightErr: errors.New("read failed")}
	d := newTestDriver(instr, &fakeTracking{}, &mockBroker{}, newFakeReporter(), 5)

	summary, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !summary.Skipped {
		t.Error("expected pass skipped when preflight cell is unreadable")
	}
}

func TestDriverFullPass(t *testing.T) {
	instr := &fakeInstructions{
		preflight: "1",
		header:    []string{"TICKER", "TYPE", "UNITS", "GTT PRICE", "GTT DATE", "ACTION", "METHOD", "STATUS"},
		data: []map[string]string{
			instructionRow("NSE:ABC", "RTP_BUY", "10", "100", "0.05", "PLACE"), // row 2
			emptyRow(), // row 3
			{"TICKER": "NSE:DEF", "TYPE": "", "ACTION": "PLACE"}, // row 4: missing TYPE
		},
	}
	track := &fakeTracking{}
	b := &mockBroker{}
	reporter := newFakeReporter()
	d := newTestDriver(instr, track, b, reporter, 5)

	summary, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Skipped {
		t.Fatal("expected pass to run")
	}
	if summary.RowsProcessed != 2 {
		t.Errorf("expected 2 rows processed, got %d", summary.RowsProcessed)
	}
	if len(summary.Failed) != 1 || summary.Failed[0].RowNumber != 4 {
		t.Errorf("unexpected failed rows: %+v", summary.Failed)
	}
	if got := reporter.statuses[2]; got != "✅ placed" {
		t.Errorf("row 2 status = %q", got)
	}
	if got := reporter.statuses[4]; got != "❌ MISSING FIELD" {
		t.Errorf("row 4 status = %q", got)
	}
	if _, ok := reporter.statuses[3]; ok {
		t.Error("empty row 3 should not get a status")
	}
	if len(b.placeCalls) != 1 {
		t.Errorf("expected one place call, got %d", len(b.placeCalls))
	}
	if reporter.flushes == 0 {
		t.Error("expected statuses flushed at least once")
	}
	// STATUS 在第 8 列 → H2:H4
	if len(instr.cleared) != 1 || instr.cleared[0] != "H2:H4" {
		t.Errorf("unexpected cleared ranges: %v", instr.cleared)
	}
}

func TestDriverStopsOnShortEmptyBatch(t *testing.T) {
	instr := &fakeInstructions{
		preflight: "1",
		header:    []string{"TICKER", "STATUS"},
		data:      []map[string]string{emptyRow(), emptyRow(), emptyRow()},
	}
	d := newTestDriver(instr, &fakeTracking{}, &mockBroker{}, newFakeReporter(), 5)

	summary, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.RowsProcessed != 0 {
		t.Errorf("expected 0 rows processed, got %d", summary.RowsProcessed)
	}
	// 不足一个批次且全空 → 单次读取后停止
	if instr.readCalls != 1 {
		t.Errorf("expected a single batch read, got %d", instr.readCalls)
	}
}

func TestDriverStopsAfterConsecutiveEmptyBatches(t *testing.T) {
	data := make([]map[string]string, 0, 10)
	for i := 0; i < 10; i++ {
		data = append(data, emptyRow())
	}
	instr := &fakeInstructions{
		preflight: "1",
		header:    []string{"TICKER", "STATUS"},
		data:      data,
	}
	d := newTestDriver(instr, &fakeTracking{}, &mockBroker{}, newFakeReporter(), 2)

	if _, err := d.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 连续 3 个满批次全空后触发安全阀
	if instr.readCalls != 3 {
		t.Errorf("expected 3 batch reads, got %d", instr.readCalls)
	}
}

func TestDriverPaginatesAcrossBatches(t *testing.T) {
	instr := &fakeInstructions{
		preflight: "1",
		header:    []string{"TICKER", "TYPE", "UNITS", "GTT PRICE", "ACTION", "STATUS"},
		data: []map[string]string{
			instructionRow("NSE:AAA", "RTP_BUY", "5", "50", "0.05", "PLACE"),  // row 2
			instructionRow("NSE:BBB", "RTP_BUY", "5", "60", "0.05", "PLACE"),  // row 3
			instructionRow("NSE:CCC", "RTP_SELL", "5", "70", "0.05", "PLACE"), // row 4
		},
	}
	b := &mockBroker{}
	reporter := newFakeReporter()
	d := newTestDriver(instr, &fakeTracking{}, b, reporter, 2)

	summary, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.RowsProcessed != 3 {
		t.Errorf("expected 3 rows processed, got %d", summary.RowsProcessed)
	}
	if len(b.placeCalls) != 3 {
		t.Errorf("expected 3 place calls, got %d", len(b.placeCalls))
	}
	// 批次 1 读 2 行，批次 2 读 1 行，批次 3 读空
	if instr.readCalls != 3 {
		t.Errorf("expected 3 batch reads, got %d", instr.readCalls)
	}
}

func TestDriverSecondPassIsIdempotent(t *testing.T) {
	instr := &fakeInstructions{
		preflight: "1",
		header:    []string{"TICKER", "TYPE", "UNITS", "GTT PRICE", "ACTION", "STATUS"},
		data: []map[string]string{
			instructionRow("NSE:ABC", "RTP_BUY", "10", "100", "0.05", "PLACE"),
		},
	}
	// 第二轮时跟踪表已包含第一轮下的单
	track := &fakeTracking{
		data: []map[string]string{{
			"TICKER":    "NSE:ABC",
			"TYPE":      "RTP_BUY",
			"UNITS":     "10",
			"GTT PRICE": "100",
			"GTT ID":    "1001",
		}},
	}
	b := &mockBroker{}
	reporter := newFakeReporter()
	d := newTestDriver(instr, track, b, reporter, 5)

	if _, err := d.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(b.placeCalls) != 0 {
		t.Errorf("expected no place calls on second pass, got %d", len(b.placeCalls))
	}
	if got := reporter.statuses[2]; got != "⚠️ duplicate found" {
		t.Errorf("row 2 status = %q", got)
	}
}
