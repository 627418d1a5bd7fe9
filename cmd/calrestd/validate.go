package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cyp0633/calrest/server/recurrence"
	"github.com/cyp0633/calrest/server/validation"
	"github.com/urfave/cli/v2"
)

type validateResult struct {
	RRule             string   `json:"rrule"`
	CalculatedEndTime string   `json:"calculatedEndTime"`
	Occurrences       []string `json:"occurrences,omitempty"`
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Validate a recurrence object read from a file or stdin.",
		ArgsUsage: "[file]",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "occurrences", Value: 0, Usage: "Also list the first N occurrences."},
		},
		Action: func(c *cli.Context) error {
			var in io.Reader = c.App.Reader
			if path := c.Args().First(); path != "" && path != "-" {
				f, err := os.Open(path)
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", path, err)
				}
				defer f.Close()
				in = f
			}

			dec := json.NewDecoder(in)
			dec.UseNumber()
			var raw any
			if err := dec.Decode(&raw); err != nil {
				return fmt.Errorf("invalid JSON: %w", err)
			}

			rule, errs, err := recurrence.Decode(raw)
			if errors.Is(err, recurrence.ErrNotObject) {
				return fmt.Errorf("recurrence must be a JSON object")
			}
			if err != nil {
				return err
			}

			out := json.NewEncoder(c.App.Writer)
			out.SetIndent("", "  ")
			if errs.HasErrors() {
				if err := out.Encode(validation.NewEnvelope(errs)); err != nil {
					return err
				}
				return fmt.Errorf("recurrence is invalid: %v", errs.Failed())
			}

			engine := recurrence.NewEngine()
			defer engine.Close()

			res := validateResult{}
			if res.RRule, err = engine.RRuleString(rule); err != nil {
				return err
			}
			end, err := engine.CalculatedEndTime(rule)
			if err != nil {
				return err
			}
			res.CalculatedEndTime = end.Format(recurrence.TimeLayout)

			if n := c.Int("occurrences"); n > 0 {
				opts := recurrence.ExpansionOptions{MaxOccurrences: n}
				times, err := engine.Occurrences(rule, rule.StartTime, end, opts)
				if err != nil {
					return err
				}
				for _, t := range times {
					res.Occurrences = append(res.Occurrences, t.Format(recurrence.TimeLayout))
				}
			}
			return out.Encode(res)
		},
	}
}
