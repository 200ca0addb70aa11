package cli

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/pkg/errors"
	urfave "github.com/urfave/cli/v2"
)

var (
	evidenceFlag = &urfave.StringSliceFlag{
		Name:  "on",
		Usage: "Observed signal as Variable=State (repeatable)",
	}

	caseFlag = &urfave.StringFlag{
		Name:  "case",
		Usage: "Case evidence as inline JSON, or @path to a JSON file",
	}

	riskyFlag = &urfave.BoolFlag{
		Name:  "risky",
		Usage: "Score the built-in maximally suspicious demo case",
	}

	scoreCmd = &urfave.Command{
		Name:    "score",
		Aliases: []string{"s"},
		Usage:   "Score a case and print P(Fraud) and P(Legit)",
		Action:  cmdScore,
		Flags: []urfave.Flag{
			evidenceFlag,
			caseFlag,
			riskyFlag,
		},
	}
)

// riskyCase is the demo case with every signal in its most suspicious
// state.
func riskyCase() map[string]string {
	return map[string]string{
		"Porting":            "Recent",
		"DarkWeb":            "High",
		"StateMatch":         "No",
		"ProxyFlag":          "Yes",
		"MAID_NightDistance": "Distant",
	}
}

func cmdScore(c *urfave.Context) error {
	evidence, err := parseEvidence(c)
	if err != nil {
		return err
	}

	cfg := getConfig(c)
	result, err := cfg.Scorer.Score(evidence)
	if err != nil {
		return err
	}
	return encode(result)
}

func parseEvidence(c *urfave.Context) (map[string]string, error) {
	if c.Bool(riskyFlag.Name) {
		return riskyCase(), nil
	}

	if raw := c.String(caseFlag.Name); raw != "" {
		return parseCaseJSON(raw)
	}

	return parseEvidencePairs(c.StringSlice(evidenceFlag.Name))
}

func parseCaseJSON(raw string) (map[string]string, error) {
	b := []byte(raw)
	if strings.HasPrefix(raw, "@") {
		var err error
		b, err = os.ReadFile(strings.TrimPrefix(raw, "@"))
		if err != nil {
			return nil, errors.Wrap(err, "reading case file")
		}
	}
	var evidence map[string]string
	if err := json.Unmarshal(b, &evidence); err != nil {
		return nil, errors.Wrap(err, "parsing case")
	}
	return evidence, nil
}

func parseEvidencePairs(pairs []string) (map[string]string, error) {
	evidence := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, state, ok := strings.Cut(pair, "=")
		if !ok || name == "" || state == "" {
			return nil, errors.Errorf("invalid evidence %q, want Variable=State", pair)
		}
		evidence[name] = state
	}
	return evidence, nil
}
