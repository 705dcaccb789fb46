// Package store persists tuning runs in a SQLite database (pure-Go driver
// modernc.org/sqlite) so results can be listed and compared later.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/YuminosukeSato/apmkit/metrics"
	"github.com/YuminosukeSato/apmkit/pkg/errors"
	"github.com/YuminosukeSato/apmkit/pkg/log"
	"github.com/YuminosukeSato/apmkit/tune"
)

// ErrRunNotFound is returned when no run has the requested id.
var ErrRunNotFound = errors.New("run not found")

// RunRecord is one stored tuning run.
type RunRecord struct {
	ID         int64       `json:"id"`
	CreatedAt  time.Time   `json:"created_at"`
	Dataset    string      `json:"dataset"`
	Model      string      `json:"model"`
	Preprocess []string    `json:"preprocess,omitempty"`
	Selection  string      `json:"selection"`
	Folds      int         `json:"folds"`
	Repeats    int         `json:"repeats"`
	Seed       uint64      `json:"seed"`
	BestParams tune.Params `json:"best_params"`

	HasTest bool            `json:"has_test"`
	Test    metrics.Summary `json:"test"`

	DurationMs int64 `json:"duration_ms"`
	// Weights は線形モデルの model.ModelWeights JSON（無ければ空）
	Weights []byte `json:"weights,omitempty"`

	// CV は SaveRun でのみ使われ、ListRuns では読み込まない
	CV []CVRecord `json:"cv,omitempty"`
}

// CVRecord is the stored summary of one grid point.
type CVRecord struct {
	GridIndex int             `json:"grid_index"`
	Params    tune.Params     `json:"params"`
	Mean      metrics.Summary `json:"mean"`
	SD        metrics.Summary `json:"sd"`
	Error     string          `json:"error,omitempty"`
}

// FromResult はチューニング結果を保存用のレコードに変換する
func FromResult(dataset string, preprocess []string, res *tune.Result) RunRecord {
	rec := RunRecord{
		CreatedAt:  time.Now().UTC(),
		Dataset:    dataset,
		Model:      res.Model,
		Preprocess: preprocess,
		Selection:  string(res.Selection),
		Folds:      res.Resampling.Folds,
		Repeats:    res.Resampling.Repeats,
		Seed:       res.Resampling.Seed,
		BestParams: res.BestParams,
		HasTest:    res.HasTest,
		Test:       res.Test,
		DurationMs: res.Duration.Milliseconds(),
	}
	for _, row := range res.Rows {
		cv := CVRecord{GridIndex: row.Index, Params: row.Params, Mean: row.Mean, SD: row.SD}
		if row.Err != nil {
			cv.Error = row.Err.Error()
		}
		rec.CV = append(rec.CV, cv)
	}
	return rec
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at  TEXT NOT NULL,
	dataset     TEXT NOT NULL,
	model       TEXT NOT NULL,
	preprocess  TEXT NOT NULL,
	selection   TEXT NOT NULL,
	folds       INTEGER NOT NULL,
	repeats     INTEGER NOT NULL,
	seed        INTEGER NOT NULL,
	best_params TEXT NOT NULL,
	has_test    INTEGER NOT NULL,
	test_rmse   REAL,
	test_rsq    REAL,
	test_mae    REAL,
	duration_ms INTEGER NOT NULL,
	weights     BLOB
);
CREATE TABLE IF NOT EXISTS cv_results (
	run_id     INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	grid_index INTEGER NOT NULL,
	params     TEXT NOT NULL,
	rmse       REAL,
	rsq        REAL,
	mae        REAL,
	rmse_sd    REAL,
	rsq_sd     REAL,
	mae_sd     REAL,
	error      TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, grid_index)
);`

// Store is a handle on the results database. It is safe for concurrent use.
type Store struct {
	db     *sql.DB
	mu     sync.Mutex
	logger log.Logger
}

// Open はデータベースを開き、必要ならテーブルを作成する
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "init schema")
	}
	logger := log.GetLoggerWithName("store")
	if _, err := db.Exec(`PRAGMA journal_mode = WAL; PRAGMA synchronous = NORMAL;`); err != nil {
		logger.Warn("failed to set pragmas", "error", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close はデータベースを閉じる
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun stores rec and its CV rows in one transaction and returns the new
// run id.
func (s *Store) SaveRun(ctx context.Context, rec RunRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	preprocess, err := json.Marshal(orEmpty(rec.Preprocess))
	if err != nil {
		return 0, errors.Wrap(err, "encode preprocess")
	}
	best, err := json.Marshal(rec.BestParams)
	if err != nil {
		return 0, errors.Wrap(err, "encode params")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `INSERT INTO runs
		(created_at, dataset, model, preprocess, selection, folds, repeats, seed, best_params,
		 has_test, test_rmse, test_rsq, test_mae, duration_ms, weights)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.CreatedAt.Format(time.RFC3339Nano), rec.Dataset, rec.Model, string(preprocess), rec.Selection,
		rec.Folds, rec.Repeats, int64(rec.Seed), string(best),
		rec.HasTest, nullable(rec.Test.RMSE), nullable(rec.Test.Rsquared), nullable(rec.Test.MAE),
		rec.DurationMs, rec.Weights,
	)
	if err != nil {
		return 0, errors.Wrap(err, "insert run")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "run id")
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO cv_results
		(run_id, grid_index, params, rmse, rsq, mae, rmse_sd, rsq_sd, mae_sd, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, errors.Wrap(err, "prepare cv insert")
	}
	defer stmt.Close()
	for _, cv := range rec.CV {
		params, err := json.Marshal(cv.Params)
		if err != nil {
			return 0, errors.Wrap(err, "encode params")
		}
		if _, err := stmt.ExecContext(ctx, id, cv.GridIndex, string(params),
			nullable(cv.Mean.RMSE), nullable(cv.Mean.Rsquared), nullable(cv.Mean.MAE),
			nullable(cv.SD.RMSE), nullable(cv.SD.Rsquared), nullable(cv.SD.MAE), cv.Error,
		); err != nil {
			return 0, errors.Wrapf(err, "insert cv row %d", cv.GridIndex)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "commit")
	}

	s.logger.Debug("run saved", "run_id", id, log.ModelNameKey, rec.Model, log.DatasetKey, rec.Dataset,
		"cv_rows", len(rec.CV))
	return id, nil
}

const runColumns = `id, created_at, dataset, model, preprocess, selection, folds, repeats, seed,
	best_params, has_test, test_rmse, test_rsq, test_mae, duration_ms, weights`

// ListRuns returns every run, oldest first, without CV rows.
func (s *Store) ListRuns(ctx context.Context) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY id ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "list runs")
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, errors.Wrap(rows.Err(), "list runs")
}

// GetRun は 1 件の実行を CV 行つきで返す
func (s *Store) GetRun(ctx context.Context, id int64) (RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, errors.Wrapf(ErrRunNotFound, "run %d", id)
	}
	if err != nil {
		return RunRecord{}, err
	}
	if rec.CV, err = s.CVResults(ctx, id); err != nil {
		return RunRecord{}, err
	}
	return rec, nil
}

// CVResults returns the grid points of a run in grid order.
func (s *Store) CVResults(ctx context.Context, id int64) ([]CVRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT grid_index, params, rmse, rsq, mae, rmse_sd, rsq_sd, mae_sd, error
		FROM cv_results WHERE run_id = ? ORDER BY grid_index ASC`, id)
	if err != nil {
		return nil, errors.Wrap(err, "query cv results")
	}
	defer rows.Close()

	var out []CVRecord
	for rows.Next() {
		var (
			cv     CVRecord
			params string
			v      [6]sql.NullFloat64
		)
		if err := rows.Scan(&cv.GridIndex, &params, &v[0], &v[1], &v[2], &v[3], &v[4], &v[5], &cv.Error); err != nil {
			return nil, errors.Wrap(err, "scan cv row")
		}
		if err := json.Unmarshal([]byte(params), &cv.Params); err != nil {
			return nil, errors.Wrap(err, "decode params")
		}
		cv.Mean = metrics.Summary{RMSE: fromNull(v[0]), Rsquared: fromNull(v[1]), MAE: fromNull(v[2])}
		cv.SD = metrics.Summary{RMSE: fromNull(v[3]), Rsquared: fromNull(v[4]), MAE: fromNull(v[5])}
		out = append(out, cv)
	}
	return out, errors.Wrap(rows.Err(), "query cv results")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunRecord, error) {
	var (
		rec              RunRecord
		created          string
		preprocess, best string
		seed             int64
		rmse, rsq, mae   sql.NullFloat64
	)
	err := row.Scan(&rec.ID, &created, &rec.Dataset, &rec.Model, &preprocess, &rec.Selection,
		&rec.Folds, &rec.Repeats, &seed, &best, &rec.HasTest, &rmse, &rsq, &mae, &rec.DurationMs, &rec.Weights)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, errors.Wrap(err, "scan run")
	}
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return rec, errors.Wrap(err, "parse created_at")
	}
	if err := json.Unmarshal([]byte(preprocess), &rec.Preprocess); err != nil {
		return rec, errors.Wrap(err, "decode preprocess")
	}
	if err := json.Unmarshal([]byte(best), &rec.BestParams); err != nil {
		return rec, errors.Wrap(err, "decode params")
	}
	rec.Seed = uint64(seed)
	rec.Test = metrics.Summary{RMSE: fromNull(rmse), Rsquared: fromNull(rsq), MAE: fromNull(mae)}
	return rec, nil
}

// nullable は NaN / Inf を NULL として書き込む
func nullable(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func fromNull(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
