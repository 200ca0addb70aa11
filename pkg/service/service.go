// Package service owns the scoring pipeline: load-or-assemble the network
// once, then answer any number of concurrent queries against the immutable
// result.
package service

import (
	"database/sql"
	"log/slog"
	"sync/atomic"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/grodin-io/freq/pkg/config"
	"github.com/grodin-io/freq/pkg/model"
	"github.com/grodin-io/freq/pkg/priors"
	"github.com/grodin-io/freq/pkg/store"
	"github.com/grodin-io/freq/pkg/weights"
)

// Result is a scored case.
type Result struct {
	Scores map[string]float64 `json:"scores" yaml:"scores"`
	Model  string             `json:"model" yaml:"model"`
}

type snapshot struct {
	net   *model.Network
	token string
}

// Scorer builds the network lazily and exactly once per process: concurrent
// first callers share a single assembly through singleflight, and the
// finished snapshot is published through an atomic pointer. Construction
// failure leaves the scorer unusable; queries keep failing until a later
// attempt succeeds.
type Scorer struct {
	cfg    *config.Settings
	db     *sql.DB
	schema model.Schema

	group singleflight.Group
	state atomic.Pointer[snapshot]
}

func New(cfg *config.Settings, db *sql.DB) *Scorer {
	return &Scorer{
		cfg:    cfg,
		db:     db,
		schema: model.DefaultSchema(),
	}
}

// Schema returns the static feature schema the scorer serves.
func (s *Scorer) Schema() model.Schema {
	return s.schema
}

// Ready forces assembly and reports whether the scorer can serve queries.
func (s *Scorer) Ready() error {
	_, err := s.ensure()
	return err
}

// Network returns the assembled network and its store token.
func (s *Scorer) Network() (*model.Network, string, error) {
	snap, err := s.ensure()
	if err != nil {
		return nil, "", err
	}
	return snap.net, snap.token, nil
}

// Score computes P(target | evidence) for one case. Evidence errors are
// local to the call and leave the shared network untouched.
func (s *Scorer) Score(evidence map[string]string) (*Result, error) {
	snap, err := s.ensure()
	if err != nil {
		return nil, err
	}
	scores, err := snap.net.Query(evidence)
	if err != nil {
		return nil, err
	}
	return &Result{Scores: scores, Model: snap.token}, nil
}

func (s *Scorer) ensure() (*snapshot, error) {
	if snap := s.state.Load(); snap != nil {
		return snap, nil
	}

	v, err, _ := s.group.Do("assemble", func() (interface{}, error) {
		if snap := s.state.Load(); snap != nil {
			return snap, nil
		}
		snap, err := s.bootstrap()
		if err != nil {
			return nil, err
		}
		s.state.Store(snap)
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*snapshot), nil
}

// bootstrap reuses the latest persisted model when one exists, otherwise
// runs the full assembly and persists the result.
func (s *Scorer) bootstrap() (*snapshot, error) {
	if !s.cfg.BuildWeights {
		net, token, err := store.LoadLatestModel(s.db)
		if err != nil {
			return nil, err
		}
		if net != nil {
			slog.Info("model loaded", "token", token)
			return &snapshot{net: net, token: token}, nil
		}
		slog.Info("no persisted model, assembling")
	}
	return s.Rebuild()
}

// Rebuild runs the full pipeline regardless of what the store holds:
// weights (per cache policy), target CPT, priors, assembly, validation,
// persistence.
func (s *Scorer) Rebuild() (*snapshot, error) {
	if err := s.schema.Validate(); err != nil {
		return nil, err
	}

	cached, err := store.LoadWeights(s.db)
	if err != nil {
		return nil, err
	}
	ws, err := weights.LoadOrBuild(s.cfg.BuildWeights, cached,
		func() (*weights.Set, error) {
			raw, err := priors.LoadRawProbs(s.cfg.RawProbsFile)
			if err != nil {
				return nil, err
			}
			return weights.Derive(raw, s.cfg.BaseFraudRate)
		},
		func(w *weights.Set) error {
			return store.SaveWeights(s.db, w)
		})
	if err != nil {
		return nil, err
	}
	if err := ws.Complete(s.schema); err != nil {
		return nil, err
	}

	targetCPT, err := model.BuildTargetCPT(s.schema.Target, s.schema.Features, ws.Bias, ws)
	if err != nil {
		return nil, err
	}

	doc, err := priors.Load(s.cfg.PriorsFile)
	if err != nil {
		return nil, err
	}
	priorCPTs, err := priors.BuildPriorCPTs(s.schema, doc)
	if err != nil {
		return nil, err
	}

	net, err := model.Assemble(priorCPTs, targetCPT)
	if err != nil {
		return nil, err
	}

	token, err := store.SaveModel(s.db, net)
	if err != nil {
		return nil, errors.Wrap(err, "persisting model")
	}
	slog.Info("model assembled", "token", token)

	snap := &snapshot{net: net, token: token}
	s.state.Store(snap)
	return snap, nil
}
