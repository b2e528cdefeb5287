package database_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/hocsinh/core/student"
	"github.com/trezcool/hocsinh/storage/database"
	"github.com/trezcool/hocsinh/tests"
)

func TestMigrate_LegacyTable(t *testing.T) {
	ctx := context.Background()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE students (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT NOT NULL UNIQUE,
		ho_ten TEXT,
		lop TEXT,
		ngay_sinh TEXT,
		tinh_thanh TEXT,
		full_name TEXT
	)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO students (email, ho_ten, lop, ngay_sinh, tinh_thanh, full_name) VALUES
		('an@test.vn', 'Nguyễn Văn An', '10A1', '15/03/2008', 'Tỉnh Đồng Nai', NULL),
		('binh@test.vn', 'Cũ', '11B1', '2007-01-02', NULL, 'Trần Bình'),
		('sample_an.van.100_sample@test.sample.com', 'Mẫu', '12C1', NULL, NULL, NULL)`)
	require.NoError(t, err)

	logger := testutil.NewLogger(testutil.NewConfig())
	require.NoError(t, database.Migrate(ctx, db, database.SQLite, logger))
	// running it again is a no-op
	require.NoError(t, database.Migrate(ctx, db, database.SQLite, logger))

	var rows []struct {
		Email     string  `db:"email"`
		FullName  *string `db:"full_name"`
		Class     *string `db:"class"`
		BirthDate *string `db:"birth_date"`
		Province  *string `db:"current_province"`
		Norm      *string `db:"current_province_norm"`
		Synthetic bool    `db:"is_synthetic"`
	}
	err = db.Select(&rows, `SELECT email, full_name, class, birth_date, current_province, current_province_norm, is_synthetic
		FROM students ORDER BY id`)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	an := rows[0]
	require.NotNil(t, an.FullName)
	assert.Equal(t, "Nguyễn Văn An", *an.FullName)
	assert.Equal(t, "10A1", *an.Class)
	assert.Equal(t, "2008-03-15", *an.BirthDate)
	assert.Equal(t, "Tỉnh Đồng Nai", *an.Province)
	require.NotNil(t, an.Norm)
	assert.Equal(t, "tinh dong nai", *an.Norm)
	assert.False(t, an.Synthetic)

	binh := rows[1]
	assert.Equal(t, "Trần Bình", *binh.FullName, "canonical values are never overwritten")
	assert.Nil(t, binh.Province)
	assert.Nil(t, binh.Norm)

	assert.True(t, rows[2].Synthetic)

	cols, err := database.Columns(ctx, db, database.SQLite, student.Table)
	require.NoError(t, err)
	names := make(map[string]bool, len(cols))
	for _, c := range cols {
		names[c.Name] = true
	}
	assert.True(t, names["ho_ten"], "legacy columns are kept")
	for _, c := range student.SchemaColumns() {
		assert.True(t, names[c.Name], c.Name)
	}
}

func TestDialect(t *testing.T) {
	assert.Equal(t, "SELECT * FROM students WHERE id = $1 AND email = $2",
		database.Postgres.Rebind("SELECT * FROM students WHERE id = ? AND email = ?"))
	assert.Equal(t, "SELECT * FROM students WHERE id = ?",
		database.SQLite.Rebind("SELECT * FROM students WHERE id = ?"))
	assert.Equal(t, "full_name ILIKE ?", database.Postgres.ILike("full_name"))
	assert.Equal(t, "full_name LIKE ?", database.SQLite.ILike("full_name"))
	assert.Equal(t, "LEFT(class, 2)", database.Postgres.Prefix("class", 2))
	assert.Equal(t, "SUBSTR(class, 1, 2)", database.SQLite.Prefix("class", 2))
	assert.Equal(t, "sqlite3", database.SQLite.GooseDialect())
	assert.Equal(t, "postgres", database.Postgres.GooseDialect())
}
