// Package engine 实现指令表与券商在途触发单之间的对账流程。
package engine

// Kind 标识单行指令的处理结果类别。
type Kind string

const (
	KindPlaced          Kind = "PLACED"
	KindUpdated         Kind = "UPDATED"
	KindDeleted         Kind = "DELETED"
	KindSkippedDup      Kind = "SKIPPED_DUPLICATE"
	KindSkippedNoChange Kind = "SKIPPED_NO_UPDATE_NEEDED"
	KindFailed          Kind = "FAILED"
	KindConflict        Kind = "CONFLICT"
)

// Outcome 是一行指令的处理结果。
// Status 是回写到表格 STATUS 列的文本，属于对外约定，不能随意改写。
type Outcome struct {
	Kind       Kind
	Status     string
	Reason     string
	Candidates int // 冲突时的候选数量
}

// RowIssue 记录一行失败或冲突，汇总在整轮结束时输出。
type RowIssue struct {
	RowNumber int
	Reason    string
}

func failed(status, reason string) Outcome {
	return Outcome{Kind: KindFailed, Status: status, Reason: reason}
}
