package student

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/hocsinh/core"
)

var (
	// errors
	ErrNotFound     = errors.New("Không tìm thấy học sinh")
	ErrInvalidCount = errors.New("Số lượng phải lớn hơn 0")

	// NowFunc is mocked in tests.
	NowFunc = time.Now
)

type (
	Repository interface {
		GetByID(ctx context.Context, id int64, exec ...core.DBExecutor) (Record, error)
		GetByEmail(ctx context.Context, email string, exec ...core.DBExecutor) (Record, error)
		Create(ctx context.Context, rec Record, now time.Time, exec ...core.DBExecutor) (int64, error)
		// Update writes only the columns present in `rec`.
		Update(ctx context.Context, id int64, rec Record, now time.Time, exec ...core.DBExecutor) error
		// Query returns one page ordered by most recent first, plus the filtered total.
		Query(ctx context.Context, filter FilterSpec, page PageQuery, exec ...core.DBExecutor) ([]Record, int, error)
		Count(ctx context.Context, filter FilterSpec, exec ...core.DBExecutor) (int, error)
		// Select returns every matching row with all of its columns.
		Select(ctx context.Context, filter FilterSpec, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Record, error)
		DeleteByID(ctx context.Context, id int64, exec ...core.DBExecutor) error
		DeleteAll(ctx context.Context, exec ...core.DBExecutor) (int, error)
		DeleteSynthetic(ctx context.Context, exec ...core.DBExecutor) (int, error)
		ResetSequence(ctx context.Context, exec ...core.DBExecutor) error
		CreateMany(ctx context.Context, recs []Record, now time.Time, exec ...core.DBExecutor) (int, error)
		DistinctProvinces(ctx context.Context, exec ...core.DBExecutor) ([]ProvinceCount, error)
		Columns(ctx context.Context, exec ...core.DBExecutor) ([]ColumnInfo, error)
	}

	Service interface {
		// Save creates the record of sub.Email or merges sub into it. Returns true when created.
		Save(ctx context.Context, sub *Submission, validate *validator.Validate) (bool, error)
		Query(ctx context.Context, page PageQuery) (Page, error)
		GetByID(ctx context.Context, id int64) (Record, error)
		GetByEmail(ctx context.Context, email string) (Record, error)
		Delete(ctx context.Context, id int64) error
		Count(ctx context.Context, filter FilterSpec) (int, error)
		ExportRows(ctx context.Context, eq ExportQuery) ([]Record, error)
		// ClearAll deletes every record and restarts the id sequence.
		ClearAll(ctx context.Context) (int, error)
		DeleteAll(ctx context.Context) (int, error)
		GenerateSamples(ctx context.Context, count int) (int, error)
		GenerateBots(ctx context.Context, count int) (int, error)
		DeleteSynthetic(ctx context.Context) (int, error)
		Provinces(ctx context.Context) ([]ProvinceCount, error)
		Schema(ctx context.Context) ([]ColumnInfo, error)
	}

	service struct {
		db     core.DB
		repo   Repository
		logger core.Logger
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(db core.DB, repo Repository, logger core.Logger) *service {
	return &service{db: db, repo: repo, logger: logger}
}

func (svc *service) Save(ctx context.Context, sub *Submission, validate *validator.Validate) (created bool, err error) {
	if err = sub.Validate(validate); err != nil {
		return false, err
	}
	rec := sub.Record()
	now := NowFunc().UTC()

	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return false, errors.Wrap(err, "starting transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	existing, err := svc.repo.GetByEmail(ctx, sub.Email, tx)
	switch {
	case err == nil:
		delete(rec, ColEmail)
		err = svc.repo.Update(ctx, existing.ID(), rec, now, tx)
	case errors.Cause(err) == ErrNotFound:
		created = true
		_, err = svc.repo.Create(ctx, rec, now, tx)
	}
	if err != nil {
		return false, err
	}

	if err = tx.Commit(); err != nil {
		return false, errors.Wrap(err, "committing transaction")
	}
	return created, nil
}

func (svc *service) Query(ctx context.Context, pq PageQuery) (Page, error) {
	pq.Clean()
	recs, total, err := svc.repo.Query(ctx, FilterSpec{Search: pq.Search}, pq)
	if err != nil {
		return Page{}, err
	}
	return Page{Records: recs, Total: total, PageQuery: pq}, nil
}

func (svc *service) GetByID(ctx context.Context, id int64) (Record, error) {
	return svc.repo.GetByID(ctx, id)
}

func (svc *service) GetByEmail(ctx context.Context, email string) (Record, error) {
	return svc.repo.GetByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *service) Delete(ctx context.Context, id int64) error {
	return svc.repo.DeleteByID(ctx, id)
}

func (svc *service) Count(ctx context.Context, filter FilterSpec) (int, error) {
	filter.Clean()
	return svc.repo.Count(ctx, filter)
}

func (svc *service) ExportRows(ctx context.Context, eq ExportQuery) ([]Record, error) {
	eq.Filter.Clean()
	return svc.repo.Select(ctx, eq.Filter, eq.Orderings())
}

// ClearAll is not atomic across engines: the sequence reset runs after the delete.
func (svc *service) ClearAll(ctx context.Context) (int, error) {
	n, err := svc.repo.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	if err = svc.repo.ResetSequence(ctx); err != nil {
		return n, err
	}
	return n, nil
}

func (svc *service) DeleteAll(ctx context.Context) (int, error) {
	return svc.repo.DeleteAll(ctx)
}

func (svc *service) GenerateSamples(ctx context.Context, count int) (int, error) {
	if count > MaxSampleCount {
		return 0, core.NewValidationError(nil, core.FieldError{Field: "count", Error: "Không thể tạo quá 200 bản ghi cùng lúc"})
	}
	return svc.generate(ctx, count, NewSample)
}

func (svc *service) GenerateBots(ctx context.Context, count int) (int, error) {
	if count > MaxBotCount {
		return 0, core.NewValidationError(nil, core.FieldError{Field: "count", Error: "Không thể tạo quá 100 bot cùng lúc"})
	}
	return svc.generate(ctx, count, NewBot)
}

func (svc *service) generate(ctx context.Context, count int, newRec func(i int) Record) (int, error) {
	if count <= 0 {
		return 0, core.NewValidationError(ErrInvalidCount, core.FieldError{Field: "count", Error: ErrInvalidCount.Error()})
	}
	recs := make([]Record, 0, count)
	for i := 0; i < count; i++ {
		recs = append(recs, newRec(i))
	}

	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "starting transaction")
	}
	n, err := svc.repo.CreateMany(ctx, recs, NowFunc().UTC(), tx)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "committing transaction")
	}
	svc.logger.Info(fmt.Sprintf("generated %d synthetic students", n))
	return n, nil
}

func (svc *service) DeleteSynthetic(ctx context.Context) (int, error) {
	return svc.repo.DeleteSynthetic(ctx)
}

func (svc *service) Provinces(ctx context.Context) ([]ProvinceCount, error) {
	return svc.repo.DistinctProvinces(ctx)
}

func (svc *service) Schema(ctx context.Context) ([]ColumnInfo, error) {
	return svc.repo.Columns(ctx)
}
