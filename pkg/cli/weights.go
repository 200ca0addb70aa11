package cli

import (
	urfave "github.com/urfave/cli/v2"

	"github.com/grodin-io/freq/pkg/priors"
	"github.com/grodin-io/freq/pkg/store"
	"github.com/grodin-io/freq/pkg/weights"
)

var (
	forceFlag = &urfave.BoolFlag{
		Name:  "force",
		Usage: "Rebuild even when persisted weights exist",
	}

	weightsCmd = &urfave.Command{
		Name:  "weights",
		Usage: "Manage the derived logistic weights",
		Subcommands: []*urfave.Command{
			{
				Name:   "build",
				Usage:  "Derive weights from the raw marginal probabilities and persist them",
				Action: cmdWeightsBuild,
				Flags:  []urfave.Flag{forceFlag},
			},
			{
				Name:   "show",
				Usage:  "Print the persisted weights",
				Action: cmdWeightsShow,
			},
		},
	}
)

func cmdWeightsBuild(c *urfave.Context) error {
	cfg := getConfig(c)

	cached, err := store.LoadWeights(cfg.DB)
	if err != nil {
		return err
	}

	s, err := weights.LoadOrBuild(c.Bool(forceFlag.Name), cached,
		func() (*weights.Set, error) {
			raw, err := priors.LoadRawProbs(cfg.Settings.RawProbsFile)
			if err != nil {
				return nil, err
			}
			return weights.Derive(raw, cfg.Settings.BaseFraudRate)
		},
		func(w *weights.Set) error {
			return store.SaveWeights(cfg.DB, w)
		})
	if err != nil {
		return err
	}
	return encode(s)
}

func cmdWeightsShow(c *urfave.Context) error {
	cfg := getConfig(c)
	s, err := store.LoadWeights(cfg.DB)
	if err != nil {
		return err
	}
	if s == nil {
		s = &weights.Set{}
	}
	return encode(s)
}
