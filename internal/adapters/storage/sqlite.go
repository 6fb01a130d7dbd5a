package storage

// sqlite.go persiste experimentos, sus variantes y el historial de evaluaciones.
//
//   - `experiments`: una fila por experimento; `version` es el token de
//     concurrencia optimista (UPDATE ... WHERE version = ?).
//   - `variants`: una fila por variante, ordenadas por `position` (0 = control).
//     El content se guarda como el JSON tipado de domain.MarshalContent.
//   - `evaluations`: historial append-only, se poda al abrir tras 180 días.
//
// Los timestamps se guardan como texto RFC 3339 de ancho fijo en UTC.

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/listinglab/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS experiments (
    id                   TEXT PRIMARY KEY,
    user_id              TEXT    NOT NULL DEFAULT '',
    sku                  TEXT    NOT NULL,
    marketplace          TEXT    NOT NULL,
    product_ref          TEXT    NOT NULL DEFAULT '',
    name                 TEXT    NOT NULL,
    description          TEXT    NOT NULL DEFAULT '',
    type                 TEXT    NOT NULL,
    primary_metric       TEXT    NOT NULL,
    confidence_level     REAL    NOT NULL,
    duration_days        INTEGER NOT NULL,
    auto_apply_winner    INTEGER NOT NULL DEFAULT 0,
    status               TEXT    NOT NULL,
    start_date           TEXT,
    end_date             TEXT,
    remote_experiment_id TEXT    NOT NULL DEFAULT '',
    significance         REAL    NOT NULL DEFAULT 0,
    winner_variant_id    TEXT    NOT NULL DEFAULT '',
    version              INTEGER NOT NULL DEFAULT 1,
    created_at           TEXT    NOT NULL,
    updated_at           TEXT    NOT NULL,
    completed_at         TEXT
);

CREATE TABLE IF NOT EXISTS variants (
    id                 TEXT PRIMARY KEY,
    experiment_id      TEXT    NOT NULL REFERENCES experiments(id) ON DELETE CASCADE,
    position           INTEGER NOT NULL,
    name               TEXT    NOT NULL,
    content            TEXT    NOT NULL,
    traffic_percentage REAL    NOT NULL,
    impressions        INTEGER NOT NULL DEFAULT 0,
    clicks             INTEGER NOT NULL DEFAULT 0,
    conversions        INTEGER NOT NULL DEFAULT 0,
    revenue            REAL    NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS evaluations (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    experiment_id TEXT NOT NULL,
    evaluated_at  TEXT NOT NULL,
    reason        TEXT NOT NULL,
    significance  REAL NOT NULL DEFAULT 0,
    payload       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_exp_status   ON experiments(status);
CREATE INDEX IF NOT EXISTS idx_var_exp      ON variants(experiment_id, position);
CREATE INDEX IF NOT EXISTS idx_eval_exp_at  ON evaluations(experiment_id, evaluated_at DESC);
`

const retentionEvaluations = 180 * 24 * time.Hour

// timeLayout tiene ancho fijo para que los timestamps se comparen bien como texto.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const experimentColumns = `
	id, user_id, sku, marketplace, product_ref, name, description, type,
	primary_metric, confidence_level, duration_days, auto_apply_winner, status,
	start_date, end_date, remote_experiment_id, significance, winner_variant_id,
	version, created_at, updated_at, completed_at`

// SQLiteStorage implementa ports.ExperimentStorage usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage abre (o crea) la base de datos en path, aplica el schema
// y poda el historial de evaluaciones antiguo.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite admite un solo writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{db: db}
	s.pruneOld(context.Background())
	return s, nil
}

// CreateExperiment inserta exp y sus variantes con version 1.
func (s *SQLiteStorage) CreateExperiment(ctx context.Context, exp *domain.Experiment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.CreateExperiment: begin tx: %w", err)
	}
	defer tx.Rollback()

	args := experimentArgs(exp)
	args[18] = int64(1) // version
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO experiments (`+experimentColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		args...,
	); err != nil {
		return fmt.Errorf("storage.CreateExperiment: insert %s: %w", exp.ID, err)
	}

	if err := upsertVariants(ctx, tx, exp); err != nil {
		return fmt.Errorf("storage.CreateExperiment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.CreateExperiment: commit: %w", err)
	}
	exp.Version = 1
	return nil
}

// GetExperiment carga un experimento con sus variantes.
func (s *SQLiteStorage) GetExperiment(ctx context.Context, id string) (*domain.Experiment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+experimentColumns+` FROM experiments WHERE id = ?`, id)
	exp, err := scanExperiment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("storage.GetExperiment %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("storage.GetExperiment %s: %w", id, err)
	}

	if exp.Variants, err = s.loadVariants(ctx, exp.ID); err != nil {
		return nil, fmt.Errorf("storage.GetExperiment %s: %w", id, err)
	}
	return exp, nil
}

// ListExperiments devuelve los experimentos en status, o todos si status está
// vacío, los más recientes primero.
func (s *SQLiteStorage) ListExperiments(ctx context.Context, status domain.ExperimentStatus) ([]*domain.Experiment, error) {
	query := `SELECT ` + experimentColumns + ` FROM experiments`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage.ListExperiments: query: %w", err)
	}

	var exps []*domain.Experiment
	for rows.Next() {
		exp, err := scanExperiment(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("storage.ListExperiments: scan row: %w", err)
		}
		exps = append(exps, exp)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("storage.ListExperiments: %w", err)
	}
	// Hay que liberar la única conexión antes de cargar las variantes.
	rows.Close()

	for _, exp := range exps {
		if exp.Variants, err = s.loadVariants(ctx, exp.ID); err != nil {
			return nil, fmt.Errorf("storage.ListExperiments: %w", err)
		}
	}
	return exps, nil
}

// UpdateExperiment escribe exp si la versión guardada sigue siendo exp.Version
// y la incrementa. Las variantes se hacen upsert por id.
func (s *SQLiteStorage) UpdateExperiment(ctx context.Context, exp *domain.Experiment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.UpdateExperiment: begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE experiments SET
			user_id = ?, sku = ?, marketplace = ?, product_ref = ?, name = ?,
			description = ?, type = ?, primary_metric = ?, confidence_level = ?,
			duration_days = ?, auto_apply_winner = ?, status = ?, start_date = ?,
			end_date = ?, remote_experiment_id = ?, significance = ?,
			winner_variant_id = ?, version = version + 1, updated_at = ?,
			completed_at = ?
		WHERE id = ? AND version = ?`,
		exp.UserID, exp.SKU, exp.Marketplace, exp.ProductRef, exp.Name,
		exp.Description, string(exp.Type), string(exp.PrimaryMetric), exp.ConfidenceLevel,
		exp.DurationDays, boolInt(exp.AutoApplyWinner), string(exp.Status), formatTimePtr(exp.StartDate),
		formatTimePtr(exp.EndDate), exp.RemoteExperimentID, exp.StatisticalSignificance,
		exp.WinnerVariantID, formatTime(exp.UpdatedAt),
		formatTimePtr(exp.CompletedAt),
		exp.ID, exp.Version,
	)
	if err != nil {
		return fmt.Errorf("storage.UpdateExperiment %s: %w", exp.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("storage.UpdateExperiment %s: rows affected: %w", exp.ID, err)
	}
	if n == 0 {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM experiments WHERE id = ?`, exp.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("storage.UpdateExperiment %s: %w", exp.ID, domain.ErrNotFound)
		}
		return fmt.Errorf("storage.UpdateExperiment %s (version %d): %w", exp.ID, exp.Version, domain.ErrConcurrentModification)
	}

	if err := upsertVariants(ctx, tx, exp); err != nil {
		return fmt.Errorf("storage.UpdateExperiment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.UpdateExperiment: commit: %w", err)
	}
	exp.Version++
	return nil
}

// SaveEvaluation añade ev al historial de su experimento.
func (s *SQLiteStorage) SaveEvaluation(ctx context.Context, ev domain.Evaluation) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("storage.SaveEvaluation: marshal: %w", err)
	}
	evaluatedAt := ev.EvaluatedAt
	if evaluatedAt.IsZero() {
		evaluatedAt = time.Now().UTC()
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO evaluations (experiment_id, evaluated_at, reason, significance, payload)
		 VALUES (?, ?, ?, ?, ?)`,
		ev.ExperimentID, formatTime(evaluatedAt), string(ev.Decision.Reason),
		ev.Analysis.Significance, string(payload),
	); err != nil {
		return fmt.Errorf("storage.SaveEvaluation %s: %w", ev.ExperimentID, err)
	}
	return nil
}

// GetEvaluations devuelve el historial de un experimento desde since, lo más reciente primero.
func (s *SQLiteStorage) GetEvaluations(ctx context.Context, experimentID string, since time.Time) ([]domain.Evaluation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM evaluations
		WHERE experiment_id = ? AND evaluated_at >= ?
		ORDER BY evaluated_at DESC, id DESC`,
		experimentID, formatTime(since),
	)
	if err != nil {
		return nil, fmt.Errorf("storage.GetEvaluations: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Evaluation
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("storage.GetEvaluations: scan row: %w", err)
		}
		var ev domain.Evaluation
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return nil, fmt.Errorf("storage.GetEvaluations: decode: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

func (s *SQLiteStorage) loadVariants(ctx context.Context, experimentID string) ([]domain.Variant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, content, traffic_percentage, impressions, clicks, conversions, revenue
		FROM variants WHERE experiment_id = ? ORDER BY position`, experimentID)
	if err != nil {
		return nil, fmt.Errorf("load variants of %s: %w", experimentID, err)
	}
	defer rows.Close()

	var out []domain.Variant
	for rows.Next() {
		var v domain.Variant
		var content string
		if err := rows.Scan(&v.ID, &v.Name, &content, &v.TrafficPercentage,
			&v.Impressions, &v.Clicks, &v.Conversions, &v.Revenue); err != nil {
			return nil, fmt.Errorf("scan variant of %s: %w", experimentID, err)
		}
		if v.Content, err = domain.UnmarshalContent([]byte(content)); err != nil {
			return nil, fmt.Errorf("variant %s: %w", v.ID, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func upsertVariants(ctx context.Context, tx *sql.Tx, exp *domain.Experiment) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO variants
			(id, experiment_id, position, name, content, traffic_percentage,
			 impressions, clicks, conversions, revenue)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			position           = excluded.position,
			name               = excluded.name,
			content            = excluded.content,
			traffic_percentage = excluded.traffic_percentage,
			impressions        = excluded.impressions,
			clicks             = excluded.clicks,
			conversions        = excluded.conversions,
			revenue            = excluded.revenue
	`)
	if err != nil {
		return fmt.Errorf("prepare variants: %w", err)
	}
	defer stmt.Close()

	for i, v := range exp.Variants {
		content, err := domain.MarshalContent(v.Content)
		if err != nil {
			return fmt.Errorf("variant %s: %w", v.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			v.ID, exp.ID, i, v.Name, string(content), v.TrafficPercentage,
			v.Impressions, v.Clicks, v.Conversions, v.Revenue,
		); err != nil {
			return fmt.Errorf("upsert variant %s: %w", v.ID, err)
		}
	}
	return nil
}

// rowScanner lo cumplen *sql.Row y *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanExperiment(r rowScanner) (*domain.Experiment, error) {
	var (
		exp                   domain.Experiment
		typ, metric, status   string
		autoApply             int
		start, end, completed sql.NullString
		createdAt, updatedAt  string
	)
	if err := r.Scan(
		&exp.ID, &exp.UserID, &exp.SKU, &exp.Marketplace, &exp.ProductRef,
		&exp.Name, &exp.Description, &typ, &metric, &exp.ConfidenceLevel,
		&exp.DurationDays, &autoApply, &status, &start, &end,
		&exp.RemoteExperimentID, &exp.StatisticalSignificance, &exp.WinnerVariantID,
		&exp.Version, &createdAt, &updatedAt, &completed,
	); err != nil {
		return nil, err
	}

	exp.Type = domain.ExperimentType(typ)
	exp.PrimaryMetric = domain.Metric(metric)
	exp.Status = domain.ExperimentStatus(status)
	exp.AutoApplyWinner = autoApply == 1
	exp.CreatedAt = parseTime(createdAt)
	exp.UpdatedAt = parseTime(updatedAt)
	exp.StartDate = parseTimePtr(start)
	exp.EndDate = parseTimePtr(end)
	exp.CompletedAt = parseTimePtr(completed)
	return &exp, nil
}

// experimentArgs devuelve los valores de experimentColumns en orden.
func experimentArgs(exp *domain.Experiment) []any {
	return []any{
		exp.ID, exp.UserID, exp.SKU, exp.Marketplace, exp.ProductRef, exp.Name,
		exp.Description, string(exp.Type), string(exp.PrimaryMetric), exp.ConfidenceLevel,
		exp.DurationDays, boolInt(exp.AutoApplyWinner), string(exp.Status),
		formatTimePtr(exp.StartDate), formatTimePtr(exp.EndDate), exp.RemoteExperimentID,
		exp.StatisticalSignificance, exp.WinnerVariantID, exp.Version,
		formatTime(exp.CreatedAt), formatTime(exp.UpdatedAt), formatTimePtr(exp.CompletedAt),
	}
}

// pruneOld elimina el historial fuera de la ventana de retención para mantener la DB ligera.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-retentionEvaluations)
	res, err := s.db.ExecContext(ctx, `DELETE FROM evaluations WHERE evaluated_at < ?`, formatTime(cutoff))
	if err != nil {
		slog.Warn("failed to prune evaluation history", "err", err)
		return
	}
	if n, _ := res.RowsAffected(); n > 0 {
		slog.Debug("pruned evaluation history", "rows", n)
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}
