// Package testutil provides pgx and redis stand-ins for tests that exercise
// the SQL and cache paths without a running server.
package testutil

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Call is one statement seen by a Querier.
type Call struct {
	SQL  string
	Args []any
}

// Result answers one statement. Rows feed Query/QueryRow, Tag feeds Exec.
type Result struct {
	Rows [][]any
	Tag  string
	Err  error
}

// Querier records statements and answers them through Respond. A nil Respond
// returns empty results.
type Querier struct {
	mu      sync.Mutex
	Calls   []Call
	Respond func(sql string, args []any) Result
}

func (q *Querier) answer(sql string, args []any) Result {
	q.mu.Lock()
	q.Calls = append(q.Calls, Call{SQL: sql, Args: args})
	respond := q.Respond
	q.mu.Unlock()
	if respond == nil {
		return Result{}
	}
	return respond(sql, args)
}

func (q *Querier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	res := q.answer(sql, args)
	if res.Err != nil {
		return pgconn.CommandTag{}, res.Err
	}
	return pgconn.NewCommandTag(res.Tag), nil
}

func (q *Querier) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	res := q.answer(sql, args)
	if res.Err != nil {
		return nil, res.Err
	}
	return &Rows{values: res.Rows}, nil
}

func (q *Querier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	res := q.answer(sql, args)
	return &Row{values: res.Rows, err: res.Err}
}

// LastCall returns the most recent statement.
func (q *Querier) LastCall() Call {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.Calls) == 0 {
		return Call{}
	}
	return q.Calls[len(q.Calls)-1]
}

// Row implements pgx.Row over the first stub row.
type Row struct {
	values [][]any
	err    error
}

func (r *Row) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(r.values) == 0 {
		return pgx.ErrNoRows
	}
	return assign(r.values[0], dest)
}

// Rows implements pgx.Rows over stub rows.
type Rows struct {
	values [][]any
	pos    int
	closed bool
}

func (r *Rows) Close()                                       { r.closed = true }
func (r *Rows) Err() error                                   { return nil }
func (r *Rows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *Rows) RawValues() [][]byte                          { return nil }
func (r *Rows) Conn() *pgx.Conn                              { return nil }

func (r *Rows) CommandTag() pgconn.CommandTag {
	return pgconn.NewCommandTag(fmt.Sprintf("SELECT %d", len(r.values)))
}

func (r *Rows) Next() bool {
	if r.closed || r.pos >= len(r.values) {
		return false
	}
	r.pos++
	return true
}

func (r *Rows) Scan(dest ...any) error {
	if r.pos == 0 || r.pos > len(r.values) {
		return fmt.Errorf("stub rows: scan without a current row")
	}
	return assign(r.values[r.pos-1], dest)
}

func (r *Rows) Values() ([]any, error) {
	if r.pos == 0 || r.pos > len(r.values) {
		return nil, fmt.Errorf("stub rows: no current row")
	}
	return r.values[r.pos-1], nil
}

// assign copies stub values into scan destinations. nil clears the
// destination, a T fills a *T destination, and same-kind values convert
// (string into models.BagStatus and the like).
func assign(row []any, dest []any) error {
	if len(row) != len(dest) {
		return fmt.Errorf("stub: %d values for %d destinations", len(row), len(dest))
	}
	for i, d := range dest {
		target := reflect.ValueOf(d)
		if target.Kind() != reflect.Pointer || target.IsNil() {
			return fmt.Errorf("stub: destination %d is not a pointer", i)
		}
		elem := target.Elem()
		if row[i] == nil {
			elem.Set(reflect.Zero(elem.Type()))
			continue
		}
		v := reflect.ValueOf(row[i])
		switch {
		case v.Type().AssignableTo(elem.Type()):
			elem.Set(v)
		case elem.Kind() == reflect.Pointer && v.Type().AssignableTo(elem.Type().Elem()):
			p := reflect.New(elem.Type().Elem())
			p.Elem().Set(v)
			elem.Set(p)
		case v.Kind() == elem.Kind() && v.Type().ConvertibleTo(elem.Type()):
			elem.Set(v.Convert(elem.Type()))
		default:
			return fmt.Errorf("stub: cannot scan %T into %s (column %d)", row[i], elem.Type(), i)
		}
	}
	return nil
}

// Tx is a pgx.Tx whose statements go to a Querier. Methods outside the
// statement and commit path are left to the embedded nil interface.
type Tx struct {
	pgx.Tx
	Q          *Querier
	CommitErr  error
	Committed  bool
	RolledBack bool
}

func NewTx() *Tx {
	return &Tx{Q: &Querier{}}
}

func (t *Tx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.Q.Exec(ctx, sql, args...)
}

func (t *Tx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return t.Q.Query(ctx, sql, args...)
}

func (t *Tx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return t.Q.QueryRow(ctx, sql, args...)
}

func (t *Tx) Commit(context.Context) error {
	if t.CommitErr != nil {
		return t.CommitErr
	}
	t.Committed = true
	return nil
}

func (t *Tx) Rollback(context.Context) error {
	if t.Committed {
		return pgx.ErrTxClosed
	}
	t.RolledBack = true
	return nil
}
