package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/padraicbc/lottosync/directory"
	"github.com/padraicbc/lottosync/models"
	"github.com/padraicbc/lottosync/winners"
)

const batchSize = 500

// ErrNotFound is returned by single-record lookups with no match.
var ErrNotFound = errors.New("not found")

// Store is the persistence layer used by the sync jobs.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// Stats summarizes the dataset for the status endpoint.
type Stats struct {
	LastDraw         int `json:"lastDraw"`
	DrawsWithDetail  int `json:"drawsWithDetail"`
	Retailers        int `json:"retailers"`
	EnabledRetailers int `json:"enabledRetailers"`
	WinRecords       int `json:"winRecords"`
}

func (s *Store) GetDraw(ctx context.Context, drawNo int) (*models.Draw, error) {
	d := &models.Draw{}
	err := s.db.NewSelect().Model(d).Where("draw_no = ?", drawNo).Scan(ctx)
	if err != nil {
		return nil, notFound(err, "draw %d", drawNo)
	}
	return d, nil
}

func (s *Store) GetLastDraw(ctx context.Context) (*models.Draw, error) {
	d := &models.Draw{}
	err := s.db.NewSelect().Model(d).OrderExpr("draw_no DESC").Limit(1).Scan(ctx)
	if err != nil {
		return nil, notFound(err, "last draw")
	}
	return d, nil
}

// UpsertDraw inserts a draw or refreshes its official result columns.
// The community detail block is left untouched on conflict.
func (s *Store) UpsertDraw(ctx context.Context, d *models.Draw) error {
	d.UpdatedAt = time.Now()
	_, err := s.db.NewInsert().Model(d).
		On("CONFLICT (draw_no) DO UPDATE").
		Set("draw_date = EXCLUDED.draw_date").
		Set("num1 = EXCLUDED.num1").
		Set("num2 = EXCLUDED.num2").
		Set("num3 = EXCLUDED.num3").
		Set("num4 = EXCLUDED.num4").
		Set("num5 = EXCLUDED.num5").
		Set("num6 = EXCLUDED.num6").
		Set("bonus = EXCLUDED.bonus").
		Set("prizes = EXCLUDED.prizes").
		Set("first_auto = EXCLUDED.first_auto").
		Set("first_semi_auto = EXCLUDED.first_semi_auto").
		Set("first_manual = EXCLUDED.first_manual").
		Set("total_sales = EXCLUDED.total_sales").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert draw %d: %w", d.DrawNo, err)
	}
	return nil
}

// UpdateDrawDetail writes the community detail block of an existing draw.
func (s *Store) UpdateDrawDetail(ctx context.Context, d *models.Draw) error {
	d.UpdatedAt = time.Now()
	res, err := s.db.NewUpdate().Model(d).
		Column("draw_order", "rehearsal", "ball_set", "orientation", "machine", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update draw %d detail: %w", d.DrawNo, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update draw %d detail: %w", d.DrawNo, ErrNotFound)
	}
	return nil
}

func (s *Store) ListRetailers(ctx context.Context) ([]models.Retailer, error) {
	var rows []models.Retailer
	if err := s.db.NewSelect().Model(&rows).Order("id").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list retailers: %w", err)
	}
	return rows, nil
}

func (s *Store) GetRetailer(ctx context.Context, id int64) (*models.Retailer, error) {
	r := &models.Retailer{}
	if err := s.db.NewSelect().Model(r).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, notFound(err, "retailer %d", id)
	}
	return r, nil
}

// BulkCreateRetailers inserts retailers, skipping ids that already exist.
func (s *Store) BulkCreateRetailers(ctx context.Context, rows []models.Retailer) error {
	return bulkInsert(ctx, s.db, rows)
}

// BulkUpdateRetailers writes the given columns of every row.
func (s *Store) BulkUpdateRetailers(ctx context.Context, rows []models.Retailer, fields []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := updateRetailers(ctx, tx, rows, fields); err != nil {
		return err
	}
	return tx.Commit()
}

// BulkCreateWinRecords inserts wins, ignoring ones already recorded.
func (s *Store) BulkCreateWinRecords(ctx context.Context, rows []models.WinRecord) error {
	return bulkInsert(ctx, s.db, rows)
}

func (s *Store) GetWinRecordsFor(ctx context.Context, drawNo int) ([]models.WinRecord, error) {
	var rows []models.WinRecord
	err := s.db.NewSelect().Model(&rows).Where("draw_no = ?", drawNo).Order("tier", "retailer_id").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("wins for draw %d: %w", drawNo, err)
	}
	return rows, nil
}

// ApplyDirectoryPlan commits the creates, updates and disables of a
// reconciliation in one transaction.
func (s *Store) ApplyDirectoryPlan(ctx context.Context, plan directory.Plan) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := bulkInsert(ctx, tx, plan.Create); err != nil {
		return fmt.Errorf("create retailers: %w", err)
	}

	now := time.Now()
	for _, ch := range plan.Update {
		r := ch.Retailer
		r.Enabled = true
		r.UpdatedAt = now
		cols := append(append([]string{}, ch.Fields...), models.ColEnabled, models.ColUpdatedAt)
		if err := updateRetailers(ctx, tx, []models.Retailer{r}, dedupe(cols)); err != nil {
			return fmt.Errorf("update retailer %d: %w", r.ID, err)
		}
	}

	for start := 0; start < len(plan.Disable); start += batchSize {
		end := min(start+batchSize, len(plan.Disable))
		_, err := tx.NewUpdate().Model((*models.Retailer)(nil)).
			Set("enabled = ?", false).
			Set("updated_at = ?", now).
			Where("id IN (?)", bun.In(plan.Disable[start:end])).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("disable retailers: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// ApplyWins writes stub retailers, new win records and counter increments
// in one transaction.
func (s *Store) ApplyWins(ctx context.Context, m winners.Mutations) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := bulkInsert(ctx, tx, m.Stubs); err != nil {
		return fmt.Errorf("create stub retailers: %w", err)
	}
	if err := bulkInsert(ctx, tx, m.Wins); err != nil {
		return fmt.Errorf("create win records: %w", err)
	}
	for _, d := range m.Deltas {
		_, err := tx.NewUpdate().Model((*models.Retailer)(nil)).
			Set("wins1 = wins1 + ?", d.Tier1).
			Set("wins2 = wins2 + ?", d.Tier2).
			Where("id = ?", d.RetailerID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("increment counters for %d: %w", d.RetailerID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// RecountWins recalculates every retailer's win counters from the win records.
func (s *Store) RecountWins(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
UPDATE retailers SET
	wins1 = (SELECT COUNT(*) FROM win_records WHERE win_records.retailer_id = retailers.id AND win_records.tier = 1),
	wins2 = (SELECT COUNT(*) FROM win_records WHERE win_records.retailer_id = retailers.id AND win_records.tier = 2)`)
	if err != nil {
		return 0, fmt.Errorf("recount wins: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	var err error

	if last, lerr := s.GetLastDraw(ctx); lerr == nil {
		st.LastDraw = last.DrawNo
	} else if !errors.Is(lerr, ErrNotFound) {
		return st, lerr
	}
	if st.DrawsWithDetail, err = s.db.NewSelect().Model((*models.Draw)(nil)).Where("machine > 0").Count(ctx); err != nil {
		return st, err
	}
	if st.Retailers, err = s.db.NewSelect().Model((*models.Retailer)(nil)).Count(ctx); err != nil {
		return st, err
	}
	if st.EnabledRetailers, err = s.db.NewSelect().Model((*models.Retailer)(nil)).Where("enabled = ?", true).Count(ctx); err != nil {
		return st, err
	}
	if st.WinRecords, err = s.db.NewSelect().Model((*models.WinRecord)(nil)).Count(ctx); err != nil {
		return st, err
	}
	return st, nil
}

func (s *Store) GetOperator(ctx context.Context, username string) (*models.Operator, error) {
	op := &models.Operator{}
	if err := s.db.NewSelect().Model(op).Where("username = ?", username).Scan(ctx); err != nil {
		return nil, notFound(err, "operator %q", username)
	}
	return op, nil
}

// SaveOperator creates an operator or replaces its password hash.
func (s *Store) SaveOperator(ctx context.Context, op *models.Operator) error {
	_, err := s.db.NewInsert().Model(op).
		On("CONFLICT (username) DO UPDATE").
		Set("password = EXCLUDED.password").
		Exec(ctx)
	return err
}

// bulkInsert inserts in batches, skipping rows that already exist (idempotent re-runs).
func bulkInsert[T any](ctx context.Context, db bun.IDB, rows []T) error {
	for start := 0; start < len(rows); start += batchSize {
		batch := rows[start:min(start+batchSize, len(rows))]
		if _, err := db.NewInsert().Model(&batch).On("CONFLICT DO NOTHING").Returning("NULL").Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

func updateRetailers(ctx context.Context, db bun.IDB, rows []models.Retailer, fields []string) error {
	for i := range rows {
		if _, err := db.NewUpdate().Model(&rows[i]).Column(fields...).WherePK().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func dedupe(cols []string) []string {
	seen := make(map[string]bool, len(cols))
	out := cols[:0]
	for _, c := range cols {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}
