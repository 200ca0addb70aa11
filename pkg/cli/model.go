package cli

import (
	urfave "github.com/urfave/cli/v2"

	"github.com/grodin-io/freq/pkg/model"
)

var modelCmd = &urfave.Command{
	Name:  "model",
	Usage: "Manage the assembled Bayesian network",
	Subcommands: []*urfave.Command{
		{
			Name:   "build",
			Usage:  "Assemble the network from weights and priors and persist it",
			Action: cmdModelBuild,
		},
		{
			Name:   "show",
			Usage:  "Print the network structure and its store token",
			Action: cmdModelShow,
		},
	},
}

type modelInfo struct {
	Token     string           `json:"token" yaml:"token"`
	Target    string           `json:"target" yaml:"target"`
	Variables []model.Variable `json:"variables" yaml:"variables"`
	Edges     [][2]string      `json:"edges" yaml:"edges"`
}

func cmdModelBuild(c *urfave.Context) error {
	cfg := getConfig(c)
	if _, err := cfg.Scorer.Rebuild(); err != nil {
		return err
	}
	return cmdModelShow(c)
}

func cmdModelShow(c *urfave.Context) error {
	cfg := getConfig(c)
	net, token, err := cfg.Scorer.Network()
	if err != nil {
		return err
	}
	return encode(modelInfo{
		Token:     token,
		Target:    net.Target().Name,
		Variables: net.Variables(),
		Edges:     net.Edges(),
	})
}
