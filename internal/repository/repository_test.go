package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"backtestgpt/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace"
)

func testTracer() trace.Tracer {
	return trace.NewNoopTracerProvider().Tracer("test")
}

func TestConversationAppendMessageExecsInsert(t *testing.T) {
	pool := &stubPool{}
	repo := NewConversationRepository(pool, testTracer())

	if err := repo.AppendMessage(context.Background(), "session-a", "user", "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pool.execCount != 1 {
		t.Fatalf("expected 1 exec call, got %d", pool.execCount)
	}
}

func TestConversationRecentMessagesReturnsChronological(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	t2 := time.Date(2025, 1, 1, 10, 1, 0, 0, time.UTC)
	// Rows come back newest-first from the query
	pool := &stubPool{rowsData: [][]any{
		{"assistant", "hi there", t2},
		{"user", "hello", t1},
	}}
	repo := NewConversationRepository(pool, testTracer())

	messages, err := repo.RecentMessages(context.Background(), "session-a", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].Role != "user" || messages[0].Content != "hello" {
		t.Fatalf("expected first message to be user/hello, got %+v", messages[0])
	}
	if messages[1].Role != "assistant" {
		t.Fatalf("expected second message to be assistant, got %+v", messages[1])
	}
}

func TestConversationRecentMessagesEmptyResult(t *testing.T) {
	repo := NewConversationRepository(&stubPool{}, testTracer())

	messages, err := repo.RecentMessages(context.Background(), "missing", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(messages) != 0 {
		t.Fatalf("expected 0 messages, got %d", len(messages))
	}
}

func TestInsertRunReturnsID(t *testing.T) {
	pool := &stubPool{rowData: []any{int64(42)}}
	repo := NewRunRepository(pool, testTracer())

	id, err := repo.InsertRun(context.Background(), domain.BacktestRun{
		SessionKey: "session-a",
		Ticker:     "AAPL",
		Spec:       domain.StrategySpec{Ticker: "AAPL"},
		Metrics:    &domain.Metrics{TotalTrades: 2},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 42 {
		t.Fatalf("id = %d, want 42", id)
	}
}

func TestListRecentDecodesJSON(t *testing.T) {
	created := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	pool := &stubPool{rowsData: [][]any{
		{int64(7), "session-a", "AAPL", []byte(`{"ticker":"AAPL"}`), []byte(`{"total_trades":4}`), created},
	}}
	repo := NewRunRepository(pool, testTracer())

	runs, err := repo.ListRecent(context.Background(), 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	if runs[0].Spec.Ticker != "AAPL" {
		t.Fatalf("spec ticker = %q", runs[0].Spec.Ticker)
	}
	if runs[0].Metrics == nil || runs[0].Metrics.TotalTrades != 4 {
		t.Fatalf("metrics = %+v", runs[0].Metrics)
	}
}

func TestFindByFingerprintMiss(t *testing.T) {
	pool := &stubPool{rowErr: pgx.ErrNoRows}
	repo := NewSSHUserRepository(pool, testTracer())

	user, err := repo.FindByFingerprint(context.Background(), "SHA256:deadbeef")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user != nil {
		t.Fatalf("expected nil user, got %+v", user)
	}
}

// --- stubs ---

type stubPool struct {
	execCount int
	rowsData  [][]any
	rowData   []any
	rowErr    error
}

func (s *stubPool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	s.execCount++
	return pgconn.CommandTag{}, nil
}

func (s *stubPool) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	return &stubBatchResults{}
}

func (s *stubPool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if s.rowsData == nil {
		return &stubRows{}, nil
	}
	dataCopy := make([][]any, len(s.rowsData))
	for i := range s.rowsData {
		row := make([]any, len(s.rowsData[i]))
		copy(row, s.rowsData[i])
		dataCopy[i] = row
	}
	return &stubRows{data: dataCopy}, nil
}

func (s *stubPool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return &stubRow{data: s.rowData, err: s.rowErr}
}

type stubBatchResults struct{}

func (stubBatchResults) Exec() (pgconn.CommandTag, error) { return pgconn.CommandTag{}, nil }
func (stubBatchResults) Query() (pgx.Rows, error)         { return &stubRows{}, nil }
func (stubBatchResults) QueryRow() pgx.Row                { return &stubRow{} }
func (stubBatchResults) Close() error                     { return nil }

type stubRows struct {
	data [][]any
	idx  int
}

func (r *stubRows) Close()                                       {}
func (r *stubRows) Err() error                                   { return nil }
func (r *stubRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *stubRows) FieldDescriptions() []pgconn.FieldDescription { return nil }

func (r *stubRows) Next() bool {
	if len(r.data) == 0 || r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *stubRows) Scan(dest ...any) error {
	if r.idx == 0 || r.idx > len(r.data) {
		return fmt.Errorf("invalid scan index")
	}
	return scanInto(r.data[r.idx-1], dest)
}

func (r *stubRows) Values() ([]any, error) { return nil, nil }
func (r *stubRows) RawValues() [][]byte    { return nil }
func (r *stubRows) Conn() *pgx.Conn        { return nil }

type stubRow struct {
	data []any
	err  error
}

func (r *stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if r.data == nil {
		return nil
	}
	return scanInto(r.data, dest)
}

func scanInto(row []any, dest []any) error {
	for i, d := range dest {
		switch ptr := d.(type) {
		case *string:
			*ptr = row[i].(string)
		case *int64:
			*ptr = row[i].(int64)
		case *[]byte:
			*ptr = row[i].([]byte)
		case *time.Time:
			*ptr = row[i].(time.Time)
		default:
			return fmt.Errorf("unsupported dest type %T", d)
		}
	}
	return nil
}
