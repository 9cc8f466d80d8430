package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/quantora/mlserve/internal/models"
)

// DB is the subset of the pgx pool the store needs; satisfied by
// *pgxpool.Pool and by pgxmock in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PredictionStore persists served predictions to Postgres. It is an
// optional collaborator: insert failures are surfaced to the caller, who
// treats them as best-effort.
type PredictionStore struct {
	db     DB
	logger *logrus.Logger
}

// NewPredictionStore creates a prediction store over an open pool.
func NewPredictionStore(db DB, logger *logrus.Logger) *PredictionStore {
	return &PredictionStore{db: db, logger: logger}
}

const insertPredictionSQL = `
INSERT INTO predictions (model_name, symbol, predicted_price, confidence_score, confidence_level, health_status, predicted_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

// Insert writes one prediction row.
func (s *PredictionStore) Insert(ctx context.Context, res *models.PredictionResult) error {
	status := models.HealthOK
	if res.Health != nil {
		status = res.Health.Status
	}
	_, err := s.db.Exec(ctx, insertPredictionSQL,
		res.ModelName,
		res.Symbol,
		decimal.NewFromFloat(res.PredictedPrice),
		decimal.NewFromFloat(res.ConfidenceScore),
		string(res.Confidence),
		string(status),
		res.PredictionTime,
	)
	return err
}

const recentPredictionsSQL = `
SELECT model_name, symbol, predicted_price, confidence_score, confidence_level, predicted_at
FROM predictions
WHERE model_name = $1
ORDER BY predicted_at DESC
LIMIT $2`

// StoredPrediction is one persisted prediction row.
type StoredPrediction struct {
	ModelName       string
	Symbol          string
	PredictedPrice  decimal.Decimal
	ConfidenceScore decimal.Decimal
	ConfidenceLevel string
	PredictedAt     time.Time
}

// Recent returns the newest rows for a model, newest first.
func (s *PredictionStore) Recent(ctx context.Context, modelName string, limit int) ([]StoredPrediction, error) {
	rows, err := s.db.Query(ctx, recentPredictionsSQL, modelName, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredPrediction
	for rows.Next() {
		var p StoredPrediction
		if err := rows.Scan(&p.ModelName, &p.Symbol, &p.PredictedPrice, &p.ConfidenceScore, &p.ConfidenceLevel, &p.PredictedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
