package audit

import (
	"time"
)

// EventType 表示审计事件类型。
type EventType string

const (
	EventRowOutcome  EventType = "row_outcome"
	EventPassSummary EventType = "pass_summary"
	EventEngineError EventType = "engine_error"
)

// Event 封装通用审计事件。
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// RowOutcomePayload 记录单行指令的处理结果。
type RowOutcomePayload struct {
	RowNumber int    `json:"row_number"`
	Ticker    string `json:"ticker"`
	Action    string `json:"action"`
	Kind      string `json:"kind"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
}

// PassSummaryPayload 记录一轮对账的汇总。
type PassSummaryPayload struct {
	RowsProcessed int           `json:"rows_processed"`
	FailedRows    []RowIssue    `json:"failed_rows,omitempty"`
	ConflictRows  []RowIssue    `json:"conflict_rows,omitempty"`
	Skipped       bool          `json:"skipped,omitempty"`
	Duration      time.Duration `json:"duration_ms"`
}

// RowIssue 标记一行失败或冲突。
type RowIssue struct {
	RowNumber int    `json:"row_number"`
	Reason    string `json:"reason,omitempty"`
}

// EngineErrorPayload 记录对账流程中的异常。
type EngineErrorPayload struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
	Error   string `json:"error"`
}
