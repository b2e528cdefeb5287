package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/hocsinh/core"
	"github.com/trezcool/hocsinh/core/student"
)

var studentIndexes = []struct{ name, columns string }{
	{"idx_created_at", student.ColCreatedAt},
	{"idx_full_name", student.ColFullName},
	{"idx_class", student.ColClass},
	{"idx_id_email", student.ColID + ", " + student.ColEmail},
}

// Columns introspects the live columns of `table`.
func Columns(ctx context.Context, db sqlx.QueryerContext, d Dialect, table string) ([]student.ColumnInfo, error) {
	var cols []student.ColumnInfo
	if err := sqlx.SelectContext(ctx, db, &cols, d.ColumnsQuery(), table); err != nil {
		return nil, errors.Wrap(err, "introspecting columns")
	}
	return cols, nil
}

// EnsureSchema is additive: it adds the missing student columns and indexes, then backfills
// the canonical columns of legacy rows and the folded search columns. It never drops anything.
func EnsureSchema(ctx context.Context, db *sqlx.DB, d Dialect, logger core.Logger) error {
	live, err := Columns(ctx, db, d, student.Table)
	if err != nil {
		return err
	}
	have := make(map[string]bool, len(live))
	for _, c := range live {
		have[c.Name] = true
	}

	for _, col := range student.SchemaColumns() {
		if have[col.Name] {
			continue
		}
		if _, err = db.ExecContext(ctx, d.AddColumn(student.Table, col)); err != nil {
			return errors.Wrapf(err, "adding column %s", col.Name)
		}
		logger.Info(fmt.Sprintf("added column %s.%s", student.Table, col.Name))

		if col.Name == student.ColSynthetic {
			if err = flagLegacySynthetic(ctx, db, d); err != nil {
				return err
			}
		}
	}

	for _, idx := range studentIndexes {
		q := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", idx.name, student.Table, idx.columns)
		if _, err = db.ExecContext(ctx, q); err != nil {
			return errors.Wrapf(err, "creating index %s", idx.name)
		}
	}

	if err = backfillLegacy(ctx, db, have); err != nil {
		return err
	}
	if err = normalizeDates(ctx, db, d); err != nil {
		return err
	}
	return BackfillNormalized(ctx, db, d)
}

// flagLegacySynthetic marks the rows generated before the is_synthetic column existed,
// recognized by their e-mail pattern.
func flagLegacySynthetic(ctx context.Context, db *sqlx.DB, d Dialect) error {
	q := fmt.Sprintf(`UPDATE %s SET %s = TRUE WHERE %s LIKE ? ESCAPE '\' OR %s LIKE ? ESCAPE '\'`,
		student.Table, student.ColSynthetic, student.ColEmail, student.ColEmail)
	if _, err := db.ExecContext(ctx, d.Rebind(q), `%@test.sample.com`, `bot\_test\_%`); err != nil {
		return errors.Wrap(err, "flagging synthetic rows")
	}
	return nil
}

func backfillLegacy(ctx context.Context, db *sqlx.DB, have map[string]bool) error {
	for legacy, canonical := range student.LegacyColumns() {
		if !have[legacy] {
			continue
		}
		q := fmt.Sprintf(
			"UPDATE %s SET %s = CAST(%s AS TEXT) WHERE %s IS NULL AND %s IS NOT NULL",
			student.Table, canonical, legacy, canonical, legacy,
		)
		if _, err := db.ExecContext(ctx, q); err != nil {
			return errors.Wrapf(err, "backfilling %s from %s", canonical, legacy)
		}
	}
	return nil
}

// normalizeDates rewrites stored dd/mm/yyyy dates as yyyy-mm-dd.
func normalizeDates(ctx context.Context, db *sqlx.DB, d Dialect) error {
	for _, f := range student.Fields {
		if f.Kind != student.KindDate {
			continue
		}
		var rows []struct {
			ID   int64  `db:"id"`
			Date string `db:"value"`
		}
		q := fmt.Sprintf("SELECT id, %s AS value FROM %s WHERE %s LIKE '%%/%%'", f.Column, student.Table, f.Column)
		if err := sqlx.SelectContext(ctx, db, &rows, q); err != nil {
			return errors.Wrapf(err, "reading %s", f.Column)
		}
		update := d.Rebind(fmt.Sprintf("UPDATE %s SET %s = ? WHERE id = ?", student.Table, f.Column))
		for _, r := range rows {
			iso, ok := student.NormalizeDate(r.Date)
			if !ok {
				continue
			}
			if _, err := db.ExecContext(ctx, update, iso, r.ID); err != nil {
				return errors.Wrapf(err, "normalizing %s", f.Column)
			}
		}
	}
	return nil
}

// BackfillNormalized fills the folded search columns that are still missing.
func BackfillNormalized(ctx context.Context, db *sqlx.DB, d Dialect) error {
	for source, norm := range student.NormColumns {
		var rows []struct {
			ID    int64  `db:"id"`
			Value string `db:"value"`
		}
		q := fmt.Sprintf("SELECT id, %s AS value FROM %s WHERE %s IS NOT NULL AND %s IS NULL",
			source, student.Table, source, norm)
		if err := sqlx.SelectContext(ctx, db, &rows, q); err != nil {
			return errors.Wrapf(err, "reading %s", source)
		}
		if len(rows) == 0 {
			continue
		}

		update := d.Rebind(fmt.Sprintf("UPDATE %s SET %s = ? WHERE id = ?", student.Table, norm))
		for _, r := range rows {
			if _, err := db.ExecContext(ctx, update, core.FoldString(r.Value), r.ID); err != nil {
				return errors.Wrapf(err, "backfilling %s", norm)
			}
		}
	}
	return nil
}
