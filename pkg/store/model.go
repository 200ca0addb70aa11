package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/grodin-io/freq/pkg/model"
)

const (
	insertModelSQL = `INSERT INTO bn_model (
			id,
			created_date,
			spec
		)
		VALUES (?, ?, ?)
	`

	selectModelSQL = `SELECT spec FROM bn_model WHERE id = ?`

	selectLatestModelSQL = `SELECT
			id,
			spec
		FROM bn_model
		ORDER BY created_date DESC, rowid DESC
		LIMIT 1
	`
)

// networkRecord is the portable form of an assembled network. CPT rows keep
// the builder's enumeration order, so the flattened layout survives the
// round trip byte for byte.
type networkRecord struct {
	Target string      `json:"target"`
	CPTs   []cptRecord `json:"cpts"`
}

type cptRecord struct {
	Variable model.Variable   `json:"variable"`
	Parents  []model.Variable `json:"parents,omitempty"`
	Rows     [][]float64      `json:"rows"`
}

// SaveModel serializes the network and returns the token under which it can
// be retrieved.
func SaveModel(db *sql.DB, n *model.Network) (string, error) {
	if db == nil {
		return "", errDBNotInitialized
	}
	if n == nil {
		return "", errors.New("network required")
	}

	rec := networkRecord{Target: n.Target().Name}
	for _, v := range n.Variables() {
		c, ok := n.CPT(v.Name)
		if !ok {
			return "", errors.Wrapf(model.ErrModelInconsistent, "variable %s has no cpt", v.Name)
		}
		rec.CPTs = append(rec.CPTs, cptRecord{
			Variable: c.Variable,
			Parents:  c.Parents,
			Rows:     c.Rows,
		})
	}

	b, err := json.Marshal(rec)
	if err != nil {
		return "", errors.Wrap(err, "failed to serialize network")
	}

	token := uuid.NewString()
	created := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := db.Exec(insertModelSQL, token, created, b); err != nil {
		return "", errors.Wrap(err, "failed to insert model")
	}
	return token, nil
}

// LoadModel retrieves and reassembles the network saved under token.
// The reassembly re-runs full validation, so a corrupted blob cannot
// produce a servable model.
func LoadModel(db *sql.DB, token string) (*model.Network, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	var b []byte
	err := db.QueryRow(selectModelSQL, token).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(model.ErrNotFound, "model %s", token)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to query model")
	}
	return decodeNetwork(b)
}

// LoadLatestModel returns the most recently saved network and its token,
// or (nil, "") when the store is empty.
func LoadLatestModel(db *sql.DB) (*model.Network, string, error) {
	if db == nil {
		return nil, "", errDBNotInitialized
	}

	var token string
	var b []byte
	err := db.QueryRow(selectLatestModelSQL).Scan(&token, &b)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to query latest model")
	}

	n, err := decodeNetwork(b)
	if err != nil {
		return nil, "", err
	}
	return n, token, nil
}

func decodeNetwork(b []byte) (*model.Network, error) {
	var rec networkRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, errors.Wrap(err, "failed to parse network record")
	}

	var target *model.CPT
	others := make([]*model.CPT, 0, len(rec.CPTs))
	for i := range rec.CPTs {
		c := &model.CPT{
			Variable: rec.CPTs[i].Variable,
			Parents:  rec.CPTs[i].Parents,
			Rows:     rec.CPTs[i].Rows,
		}
		if c.Variable.Name == rec.Target {
			target = c
			continue
		}
		others = append(others, c)
	}
	if target == nil {
		return nil, errors.Wrapf(model.ErrModelInconsistent, "record lacks target %s", rec.Target)
	}
	return model.Assemble(others, target)
}
