package store

import (
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/grodin-io/freq/pkg/weights"
)

const (
	upsertWeightMetaSQL = `INSERT INTO weight_meta (
			id,
			bias,
			update_date
		)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			bias = ?,
			update_date = ?
	`

	insertWeightSQL = `INSERT INTO weight (
			feature,
			state,
			value
		)
		VALUES (?, ?, ?)
	`

	deleteWeightsSQL = `DELETE FROM weight`

	selectWeightMetaSQL = `SELECT bias FROM weight_meta WHERE id = 1`

	selectWeightsSQL = `SELECT
			feature,
			state,
			value
		FROM weight
		ORDER BY feature, state
	`
)

// SaveWeights replaces the persisted weight set in one transaction.
// Last writer wins, so racing duplicate builds are harmless.
func SaveWeights(db *sql.DB, s *weights.Set) error {
	if db == nil {
		return errDBNotInitialized
	}
	if s == nil {
		return errors.New("weight set required")
	}

	tx, err := db.Begin()
	if err != nil {
		return errors.Wrap(err, "failed to begin weights tx")
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.Exec(upsertWeightMetaSQL, s.Bias, now, s.Bias, now); err != nil {
		return errors.Wrap(err, "failed to upsert weight meta")
	}
	if _, err := tx.Exec(deleteWeightsSQL); err != nil {
		return errors.Wrap(err, "failed to clear weights")
	}
	for feature, states := range s.ByFeature {
		for state, value := range states {
			if _, err := tx.Exec(insertWeightSQL, feature, state, value); err != nil {
				return errors.Wrapf(err, "failed to insert weight %s=%s", feature, state)
			}
		}
	}

	return errors.Wrap(tx.Commit(), "failed to commit weights tx")
}

// LoadWeights returns the persisted weight set, or nil when none has been
// saved yet so the caller's cache policy can rebuild.
func LoadWeights(db *sql.DB) (*weights.Set, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	s := &weights.Set{ByFeature: make(map[string]map[string]float64)}
	err := db.QueryRow(selectWeightMetaSQL).Scan(&s.Bias)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to query weight meta")
	}

	rows, err := db.Query(selectWeightsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query weights")
	}
	defer rows.Close()

	for rows.Next() {
		var feature, state string
		var value float64
		if err := rows.Scan(&feature, &state, &value); err != nil {
			return nil, errors.Wrap(err, "failed to scan weight row")
		}
		if s.ByFeature[feature] == nil {
			s.ByFeature[feature] = make(map[string]float64)
		}
		s.ByFeature[feature][state] = value
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed reading weight rows")
	}

	return s, nil
}
