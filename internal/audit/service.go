// Package audit 把每轮对账的关键事件持久化到本地 SQLite，
// 便于事后排查某一行的操作历史。
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"gtt-sync/internal/store"
)

// Service 负责持久化审计事件。零值指针可安全调用，所有记录方法退化为空操作。
type Service struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewService 初始化审计服务，创建所需表结构。
func NewService(store *store.Store, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("audit: store 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		db:     store.DB(),
		logger: logger,
	}

	if err := s.initSchema(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Service) initSchema() error {
	stmt := `
CREATE TABLE IF NOT EXISTS audit_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_type TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_events_type ON audit_events(event_type);
`
	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("audit: 初始化表失败: %w", err)
	}
	return nil
}

// Record 写入单个事件。
func (s *Service) Record(ctx context.Context, event Event) error {
	if s == nil || s.db == nil {
		return nil
	}

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("audit: 序列化事件失败: %w", err)
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_events (event_type, payload, created_at) VALUES (?, ?, ?)`,
		string(event.Type), string(payload), event.Timestamp.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("audit: 写入事件失败: %w", err)
	}

	return nil
}

// RecordRowOutcome 记录单行处理结果。
func (s *Service) RecordRowOutcome(ctx context.Context, payload RowOutcomePayload) {
	if s == nil || s.db == nil {
		return
	}
	if err := s.Record(ctx, Event{
		Type:      EventRowOutcome,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}); err != nil {
		s.logger.Warn("记录行结果事件失败", zap.Error(err))
	}
}

// RecordPassSummary 记录整轮汇总。
func (s *Service) RecordPassSummary(ctx context.Context, payload PassSummaryPayload) {
	if s == nil || s.db == nil {
		return
	}
	if err := s.Record(ctx, Event{
		Type:      EventPassSummary,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}); err != nil {
		s.logger.Warn("记录汇总事件失败", zap.Error(err))
	}
}

// RecordEngineError 记录对账流程异常。
func (s *Service) RecordEngineError(ctx context.Context, stage, msg string, err error) {
	if s == nil || s.db == nil {
		return
	}
	payload := EngineErrorPayload{
		Stage:   stage,
		Message: msg,
	}
	if err != nil {
		payload.Error = err.Error()
	}
	if recErr := s.Record(ctx, Event{
		Type:      EventEngineError,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}); recErr != nil {
		s.logger.Warn("记录异常事件失败", zap.Error(recErr))
	}
}

// ListEvents 按类型检索最近事件。
func (s *Service) ListEvents(ctx context.Context, eventType EventType, limit int) ([]Event, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT event_type, payload, created_at FROM audit_events`
	args := make([]interface{}, 0, 2)
	if eventType != "" {
		query += ` WHERE event_type = ?`
		args = append(args, string(eventType))
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: 查询事件失败: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0, limit)
	for rows.Next() {
		var (
			typ     string
			payload string
			created string
		)
		if scanErr := rows.Scan(&typ, &payload, &created); scanErr != nil {
			return nil, fmt.Errorf("audit: 解析事件失败: %w", scanErr)
		}

		ts, parseErr := time.Parse(time.RFC3339, created)
		if parseErr != nil {
			ts = time.Now().UTC()
		}

		events = append(events, Event{
			Type:      EventType(typ),
			Timestamp: ts,
			Payload:   json.RawMessage(payload),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: 读取事件失败: %w", err)
	}

	return events, nil
}
