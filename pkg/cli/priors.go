package cli

import (
	urfave "github.com/urfave/cli/v2"

	"github.com/grodin-io/freq/pkg/priors"
)

var priorsCmd = &urfave.Command{
	Name:  "priors",
	Usage: "Manage the evidence prior distributions",
	Subcommands: []*urfave.Command{
		{
			Name:   "show",
			Usage:  "Print the active priors document",
			Action: cmdPriorsShow,
		},
	},
}

func cmdPriorsShow(c *urfave.Context) error {
	cfg := getConfig(c)
	d, err := priors.Load(cfg.Settings.PriorsFile)
	if err != nil {
		return err
	}
	return encode(d)
}
