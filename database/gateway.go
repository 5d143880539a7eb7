package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned by FindOne when no row matches.
var ErrNotFound = errors.New("database: record not found")

// Record is one row keyed by column name.
type Record = map[string]any

// Filter selects rows by column equality. A slice value matches any of its
// elements and a nil value matches NULL. Conditions are ANDed.
type Filter map[string]any

// FindOptions shape a query.
type FindOptions struct {
	// Fields limits the selected columns. Empty selects all.
	Fields []string
	// Order lists columns to sort by; a leading "-" sorts descending.
	Order  []string
	Limit  int
	Offset int
}

// Gateway runs table-oriented queries over a gorm connection. Writes go
// through Write and are retried when the database is busy.
type Gateway struct {
	db     *gorm.DB
	logger *slog.Logger
	retry  RetryPolicy

	// KeyColumn identifies a row for UpdateOne and DeleteOne. Default: "id".
	KeyColumn string
}

// NewGateway wraps db.
func NewGateway(db *gorm.DB, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{db: db, logger: logger, retry: DefaultRetryPolicy(), KeyColumn: "id"}
}

// SetRetryPolicy replaces the write retry policy.
func (g *Gateway) SetRetryPolicy(p RetryPolicy) { g.retry = p }

// DB returns the underlying connection for queries the gateway can't express.
func (g *Gateway) DB() *gorm.DB { return g.db }

// Count returns the number of rows matching filter.
func (g *Gateway) Count(ctx context.Context, table string, filter Filter) (int64, error) {
	var n int64
	err := where(g.db.WithContext(ctx).Table(table), filter).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("database: count %s: %w", table, err)
	}
	return n, nil
}

// InsertOne inserts rec.
func (g *Gateway) InsertOne(ctx context.Context, table string, rec Record) error {
	if len(rec) == 0 {
		return fmt.Errorf("database: insert into %s: empty record", table)
	}
	err := g.write(ctx, func(tx *gorm.DB) error {
		return tx.Table(table).Create(rec).Error
	})
	if err != nil {
		return fmt.Errorf("database: insert into %s: %w", table, err)
	}
	return nil
}

// InsertMany inserts recs in one transaction and returns the rows inserted.
func (g *Gateway) InsertMany(ctx context.Context, table string, recs []Record) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	var n int64
	err := g.write(ctx, func(tx *gorm.DB) error {
		res := tx.Table(table).Create(recs)
		n = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, fmt.Errorf("database: insert into %s: %w", table, err)
	}
	return n, nil
}

// FindOne returns the first row matching filter, or ErrNotFound.
func (g *Gateway) FindOne(ctx context.Context, table string, filter Filter, opts *FindOptions) (Record, error) {
	o := FindOptions{}
	if opts != nil {
		o = *opts
	}
	o.Limit = 1

	recs, err := g.FindMany(ctx, table, filter, &o)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNotFound, table)
	}
	return recs[0], nil
}

// FindMany returns the rows matching filter.
func (g *Gateway) FindMany(ctx context.Context, table string, filter Filter, opts *FindOptions) ([]Record, error) {
	q := where(g.db.WithContext(ctx).Table(table), filter)
	if opts != nil {
		q = shape(q, opts)
	}

	var recs []Record
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("database: find in %s: %w", table, err)
	}
	return recs, nil
}

// UpdateOne applies values to the first row matching filter and reports
// whether a row changed.
func (g *Gateway) UpdateOne(ctx context.Context, table string, filter Filter, values Record) (bool, error) {
	n, err := g.update(ctx, table, values, func(tx *gorm.DB) *gorm.DB {
		return g.first(tx, table, filter)
	})
	return n > 0, err
}

// UpdateMany applies values to every row matching filter. An empty filter
// is refused.
func (g *Gateway) UpdateMany(ctx context.Context, table string, filter Filter, values Record) (int64, error) {
	return g.update(ctx, table, values, func(tx *gorm.DB) *gorm.DB {
		return where(tx, filter)
	})
}

// DeleteOne deletes the first row matching filter and reports whether a row
// was deleted.
func (g *Gateway) DeleteOne(ctx context.Context, table string, filter Filter) (bool, error) {
	n, err := g.delete(ctx, table, func(tx *gorm.DB) *gorm.DB {
		return g.first(tx, table, filter)
	})
	return n > 0, err
}

// DeleteMany deletes every row matching filter. An empty filter is refused.
func (g *Gateway) DeleteMany(ctx context.Context, table string, filter Filter) (int64, error) {
	return g.delete(ctx, table, func(tx *gorm.DB) *gorm.DB {
		return where(tx, filter)
	})
}

func (g *Gateway) update(ctx context.Context, table string, values Record, scope func(*gorm.DB) *gorm.DB) (int64, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("database: update %s: no values", table)
	}
	var n int64
	err := g.write(ctx, func(tx *gorm.DB) error {
		res := scope(tx.Table(table)).Updates(values)
		n = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, fmt.Errorf("database: update %s: %w", table, err)
	}
	return n, nil
}

func (g *Gateway) delete(ctx context.Context, table string, scope func(*gorm.DB) *gorm.DB) (int64, error) {
	var n int64
	err := g.write(ctx, func(tx *gorm.DB) error {
		res := scope(tx.Table(table)).Delete(Record{})
		n = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, fmt.Errorf("database: delete from %s: %w", table, err)
	}
	return n, nil
}

func (g *Gateway) write(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return Write(ctx, g.logger, g.db, g.retry, fn)
}

// first scopes tx to the key of the first row matching filter.
func (g *Gateway) first(tx *gorm.DB, table string, filter Filter) *gorm.DB {
	key := clause.Column{Name: g.KeyColumn}
	sub := where(tx.Session(&gorm.Session{NewDB: true}).Table(table), filter).
		Select(g.KeyColumn).Limit(1)
	return tx.Where("? IN (?)", key, sub)
}

// where applies filter in column order so the generated SQL is stable.
func where(q *gorm.DB, filter Filter) *gorm.DB {
	cols := make([]string, 0, len(filter))
	for col := range filter {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	for _, col := range cols {
		v := filter[col]
		column := clause.Column{Name: col}
		if rv := reflect.ValueOf(v); v != nil && rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8 {
			values := make([]any, rv.Len())
			for i := range values {
				values[i] = rv.Index(i).Interface()
			}
			q = q.Where(clause.IN{Column: column, Values: values})
			continue
		}
		q = q.Where(clause.Eq{Column: column, Value: v})
	}
	return q
}

func shape(q *gorm.DB, opts *FindOptions) *gorm.DB {
	if len(opts.Fields) > 0 {
		q = q.Select(opts.Fields)
	}
	for _, o := range opts.Order {
		desc := strings.HasPrefix(o, "-")
		q = q.Order(clause.OrderByColumn{
			Column: clause.Column{Name: strings.TrimPrefix(o, "-")},
			Desc:   desc,
		})
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	return q
}
