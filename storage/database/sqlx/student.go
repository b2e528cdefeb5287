package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/hocsinh/core"
	"github.com/trezcool/hocsinh/core/student"
	"github.com/trezcool/hocsinh/storage/database"
)

var (
	// every column a Record is read with, hidden and legacy columns excluded
	selectColumns = buildSelectColumns()

	timestampLayouts = []string{
		"2006-01-02 15:04:05.999999999",
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05.999999999-07:00",
		time.RFC3339Nano,
	}
)

func buildSelectColumns() string {
	cols := make([]string, 0, len(student.Fields)+3)
	cols = append(cols, student.ColID)
	for _, f := range student.Fields {
		cols = append(cols, f.Column)
	}
	cols = append(cols, student.ColCreatedAt, student.ColUpdatedAt)
	return strings.Join(cols, ", ")
}

type studentRepository struct {
	db      *sqlx.DB
	dialect database.Dialect
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *sqlx.DB, dialect database.Dialect) *studentRepository {
	return &studentRepository{db: db, dialect: dialect}
}

func (repo studentRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.db
}

// trapNoRowsErr maps "no rows" err to student.ErrNotFound
func (repo studentRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return student.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo studentRepository) queryRecords(ctx context.Context, exec core.DBExecutor, query string, args ...interface{}) ([]student.Record, error) {
	rows, err := exec.QueryContext(ctx, repo.dialect.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var recs []student.Record
	for rows.Next() {
		m := make(map[string]interface{})
		if err = sqlx.MapScan(rows, m); err != nil {
			return nil, err
		}
		recs = append(recs, toRecord(m))
	}
	return recs, rows.Err()
}

func (repo studentRepository) getOne(ctx context.Context, exec core.DBExecutor, where string, arg interface{}) (student.Record, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ? LIMIT 1", selectColumns, student.Table, where)
	recs, err := repo.queryRecords(ctx, exec, q, arg)
	if err != nil {
		return nil, errors.Wrap(err, "selecting student")
	}
	if len(recs) == 0 {
		return nil, student.ErrNotFound
	}
	return recs[0], nil
}

func (repo studentRepository) GetByID(ctx context.Context, id int64, exec ...core.DBExecutor) (student.Record, error) {
	return repo.getOne(ctx, repo.getExec(exec), student.ColID, id)
}

func (repo studentRepository) GetByEmail(ctx context.Context, email string, exec ...core.DBExecutor) (student.Record, error) {
	return repo.getOne(ctx, repo.getExec(exec), student.ColEmail, email)
}

// withNorms adds the folded copy of every facet column present in `rec`.
func withNorms(rec student.Record) ([]string, []interface{}) {
	cols := rec.Columns()
	vals := make([]interface{}, 0, len(cols)+len(student.NormColumns))
	for _, col := range cols {
		vals = append(vals, rec[col])
	}
	for _, col := range cols {
		norm, ok := student.NormColumns[col]
		if !ok {
			continue
		}
		cols = append(cols, norm)
		if s, ok := rec[col].(string); ok {
			vals = append(vals, core.FoldString(s))
		} else {
			vals = append(vals, nil)
		}
	}
	return cols, vals
}

func (repo studentRepository) Create(ctx context.Context, rec student.Record, now time.Time, exec ...core.DBExecutor) (int64, error) {
	cols, vals := withNorms(rec)
	synthetic, _ := rec[student.ColSynthetic].(bool)
	ts := repo.dialect.Timestamp(now)
	cols = append(cols, student.ColSynthetic, student.ColCreatedAt, student.ColUpdatedAt)
	vals = append(vals, synthetic, ts, ts)

	q := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		student.Table, strings.Join(cols, ", "), placeholders(len(cols)), student.ColID,
	)
	var id int64
	if err := repo.getExec(exec).QueryRowContext(ctx, repo.dialect.Rebind(q), vals...).Scan(&id); err != nil {
		return 0, errors.Wrap(err, "inserting student")
	}
	return id, nil
}

func (repo studentRepository) Update(ctx context.Context, id int64, rec student.Record, now time.Time, exec ...core.DBExecutor) error {
	cols, vals := withNorms(rec)
	cols = append(cols, student.ColUpdatedAt)
	vals = append(vals, repo.dialect.Timestamp(now), id)

	sets := make([]string, 0, len(cols))
	for _, col := range cols {
		sets = append(sets, col+" = ?")
	}
	q := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", student.Table, strings.Join(sets, ", "), student.ColID)
	res, err := repo.getExec(exec).ExecContext(ctx, repo.dialect.Rebind(q), vals...)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return checkAffected(res)
}

func (repo studentRepository) Query(ctx context.Context, filter student.FilterSpec, page student.PageQuery, exec ...core.DBExecutor) ([]student.Record, int, error) {
	e := repo.getExec(exec)
	where, params := student.Build(filter, repo.dialect)

	total, err := repo.count(ctx, e, where, params)
	if err != nil {
		return nil, 0, err
	}

	ordering := core.OrderBy(
		core.DBOrdering{Field: student.ColCreatedAt},
		core.DBOrdering{Field: student.ColID},
	)
	q := fmt.Sprintf("SELECT %s FROM %s%s%s LIMIT ? OFFSET ?", selectColumns, student.Table, where, ordering)
	recs, err := repo.queryRecords(ctx, e, q, append(params, page.Limit, page.Offset())...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying students")
	}
	return recs, total, nil
}

func (repo studentRepository) count(ctx context.Context, exec core.DBExecutor, where string, params []interface{}) (int, error) {
	var total int
	q := repo.dialect.Rebind(fmt.Sprintf("SELECT COUNT(*) FROM %s%s", student.Table, where))
	if err := exec.QueryRowContext(ctx, q, params...).Scan(&total); err != nil {
		return 0, errors.Wrap(err, "counting students")
	}
	return total, nil
}

func (repo studentRepository) Count(ctx context.Context, filter student.FilterSpec, exec ...core.DBExecutor) (int, error) {
	where, params := student.Build(filter, repo.dialect)
	return repo.count(ctx, repo.getExec(exec), where, params)
}

func (repo studentRepository) Select(ctx context.Context, filter student.FilterSpec, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]student.Record, error) {
	where, params := student.Build(filter, repo.dialect)
	q := fmt.Sprintf("SELECT %s FROM %s%s%s", selectColumns, student.Table, where, core.OrderBy(ordering...))
	recs, err := repo.queryRecords(ctx, repo.getExec(exec), q, params...)
	if err != nil {
		return nil, errors.Wrap(err, "selecting students")
	}
	return recs, nil
}

func (repo studentRepository) DeleteByID(ctx context.Context, id int64, exec ...core.DBExecutor) error {
	q := repo.dialect.Rebind(fmt.Sprintf("DELETE FROM %s WHERE %s = ?", student.Table, student.ColID))
	res, err := repo.getExec(exec).ExecContext(ctx, q, id)
	if err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return checkAffected(res)
}

func (repo studentRepository) deleteWhere(ctx context.Context, exec core.DBExecutor, where string) (int, error) {
	res, err := exec.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s%s", student.Table, where))
	if err != nil {
		return 0, errors.Wrap(err, "deleting students")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "deleting students")
	}
	return int(n), nil
}

func (repo studentRepository) DeleteAll(ctx context.Context, exec ...core.DBExecutor) (int, error) {
	return repo.deleteWhere(ctx, repo.getExec(exec), "")
}

func (repo studentRepository) DeleteSynthetic(ctx context.Context, exec ...core.DBExecutor) (int, error) {
	return repo.deleteWhere(ctx, repo.getExec(exec), " WHERE "+student.ColSynthetic+" = TRUE")
}

func (repo studentRepository) ResetSequence(ctx context.Context, exec ...core.DBExecutor) error {
	if _, err := repo.getExec(exec).ExecContext(ctx, repo.dialect.ResetSequence(student.Table)); err != nil {
		return errors.Wrap(err, "resetting id sequence")
	}
	return nil
}

func (repo studentRepository) CreateMany(ctx context.Context, recs []student.Record, now time.Time, exec ...core.DBExecutor) (int, error) {
	e := repo.getExec(exec)
	for i, rec := range recs {
		if _, err := repo.Create(ctx, rec, now, e); err != nil {
			return i, err
		}
	}
	return len(recs), nil
}

func (repo studentRepository) DistinctProvinces(ctx context.Context, exec ...core.DBExecutor) ([]student.ProvinceCount, error) {
	q := fmt.Sprintf(
		"SELECT %[1]s, COUNT(*) FROM %[2]s WHERE %[1]s IS NOT NULL AND %[1]s <> '' GROUP BY %[1]s ORDER BY %[1]s",
		student.ColPermanentProvince, student.Table,
	)
	rows, err := repo.getExec(exec).QueryContext(ctx, q)
	if err != nil {
		return nil, errors.Wrap(err, "querying provinces")
	}
	defer func() { _ = rows.Close() }()

	provinces := make([]student.ProvinceCount, 0)
	for rows.Next() {
		var pc student.ProvinceCount
		if err = rows.Scan(&pc.Province, &pc.Count); err != nil {
			return nil, errors.Wrap(err, "scanning provinces")
		}
		provinces = append(provinces, pc)
	}
	return provinces, errors.Wrap(rows.Err(), "querying provinces")
}

func (repo studentRepository) Columns(ctx context.Context, _ ...core.DBExecutor) ([]student.ColumnInfo, error) {
	return database.Columns(ctx, repo.db, repo.dialect, student.Table)
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "reading affected rows")
	}
	if n == 0 {
		return student.ErrNotFound
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// toRecord normalizes the driver specific values of a scanned row.
func toRecord(m map[string]interface{}) student.Record {
	rec := make(student.Record, len(m))
	for col, v := range m {
		switch t := v.(type) {
		case []byte:
			v = string(t)
		case int:
			v = int64(t)
		case int32:
			v = int64(t)
		case float64:
			if f, ok := student.FieldByColumn(col); ok && f.Kind == student.KindInt {
				v = int64(t)
			}
		case time.Time:
			v = t.UTC()
		}
		if col == student.ColCreatedAt || col == student.ColUpdatedAt {
			v = parseTimestamp(v)
		}
		rec[col] = v
	}
	return rec
}

func parseTimestamp(v interface{}) interface{} {
	s, ok := v.(string)
	if !ok {
		return v
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return s
}
