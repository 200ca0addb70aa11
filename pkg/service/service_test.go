package service

import (
	"database/sql"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grodin-io/freq/pkg/config"
	"github.com/grodin-io/freq/pkg/model"
	"github.com/grodin-io/freq/pkg/store"
)

func setupScorer(t *testing.T) (*Scorer, *sql.DB) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, store.Init(dbPath))
	db, err := store.GetDB(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &config.Settings{
		AppName:       "freq",
		Env:           "test",
		Port:          8080,
		BaseFraudRate: 0.02,
		LogLevel:      "error",
	}
	return New(cfg, db), db
}

func TestScorer_AssemblesAndPersists(t *testing.T) {
	s, db := setupScorer(t)

	require.NoError(t, s.Ready())

	// Assembly must have persisted both weights and the model.
	ws, err := store.LoadWeights(db)
	require.NoError(t, err)
	require.NotNil(t, ws)
	assert.InDelta(t, -3.8918, ws.Bias, 1e-4)

	net, token, err := store.LoadLatestModel(db)
	require.NoError(t, err)
	require.NotNil(t, net)
	assert.NotEmpty(t, token)
}

func TestScorer_ReusesPersistedModel(t *testing.T) {
	s, db := setupScorer(t)
	require.NoError(t, s.Ready())

	_, token, err := store.LoadLatestModel(db)
	require.NoError(t, err)

	// A new scorer over the same store must load, not re-assemble.
	s2 := New(s.cfg, db)
	_, token2, err := s2.Network()
	require.NoError(t, err)
	assert.Equal(t, token, token2)
}

func TestScorer_Score(t *testing.T) {
	s, _ := setupScorer(t)

	benign, err := s.Score(map[string]string{
		"Porting":            "Old",
		"DarkWeb":            "None",
		"StateMatch":         "Yes",
		"ProxyFlag":          "No",
		"MAID_NightDistance": "Near",
	})
	require.NoError(t, err)

	risky, err := s.Score(map[string]string{
		"Porting":            "Recent",
		"DarkWeb":            "High",
		"StateMatch":         "No",
		"ProxyFlag":          "Yes",
		"MAID_NightDistance": "Distant",
	})
	require.NoError(t, err)

	assert.InDelta(t, 1.0, benign.Scores[model.StateFraud]+benign.Scores[model.StateLegit], 1e-6)
	assert.InDelta(t, 1.0, risky.Scores[model.StateFraud]+risky.Scores[model.StateLegit], 1e-6)
	assert.Greater(t, risky.Scores[model.StateFraud], benign.Scores[model.StateFraud])
	assert.NotEmpty(t, risky.Model)
}

func TestScorer_EmptyEvidence(t *testing.T) {
	s, _ := setupScorer(t)

	got, err := s.Score(map[string]string{})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, got.Scores[model.StateFraud]+got.Scores[model.StateLegit], 1e-6)
}

func TestScorer_InvalidEvidenceIsLocal(t *testing.T) {
	s, _ := setupScorer(t)

	_, err := s.Score(map[string]string{"Porting": "Yesterday"})
	assert.ErrorIs(t, err, model.ErrInvalidEvidence)

	// The shared network keeps serving.
	got, err := s.Score(map[string]string{"Porting": "Recent"})
	require.NoError(t, err)
	assert.Greater(t, got.Scores[model.StateFraud], 0.0)
}

func TestScorer_ConcurrentFirstCallers(t *testing.T) {
	s, db := setupScorer(t)

	var wg sync.WaitGroup
	results := make([]*Result, 8)
	errs := make([]error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.Score(map[string]string{"ProxyFlag": "Yes"})
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].Model, results[i].Model)
		assert.Equal(t, results[0].Scores, results[i].Scores)
	}

	// Exactly one assembly ran.
	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM bn_model").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestScorer_BadBaseRate(t *testing.T) {
	s, _ := setupScorer(t)
	s.cfg.BaseFraudRate = 1.0

	err := s.Ready()
	assert.ErrorIs(t, err, model.ErrProbabilityRange)
}

func TestScorer_BuildWeightsForcesReassembly(t *testing.T) {
	s, db := setupScorer(t)
	require.NoError(t, s.Ready())

	cfg := *s.cfg
	cfg.BuildWeights = true
	s2 := New(&cfg, db)
	require.NoError(t, s2.Ready())

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM bn_model").Scan(&count))
	assert.Equal(t, 2, count)
}
