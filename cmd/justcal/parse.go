package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/teambition/rrule-go"

	"github.com/tazhate/justcal/internal/recurrence"
)

// parseCmd exposes the date and recurrence interpreters without touching the
// server.
func (a *app) parseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Show how date and recurrence text is interpreted",
	}
	cmd.AddCommand(a.parseDateCmd(), a.parseRecurCmd())
	return cmd
}

func (a *app) parseDateCmd() *cobra.Command {
	var tz string

	cmd := &cobra.Command{
		Use:     "date TEXT...",
		Short:   "Resolve a date/time phrase",
		Example: `  justcal parse date "next friday at 2pm"
  justcal parse date "in 3 days" --tz Europe/Berlin`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.offlineService(tz, false)
			if err != nil {
				return err
			}
			in, err := svc.ResolveInstant(strings.Join(args, " "))
			if err != nil {
				return err
			}

			p := a.printer()
			p.Printf("%s\n", in)
			if in.DateOnly {
				p.Printf("  %s (all day)\n", in.Time.Format("Monday, January 2, 2006"))
			} else {
				p.Printf("  %s\n", in.Time.Format("Monday, January 2, 2006 3:04 PM MST"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tz, "tz", "", "IANA time zone (default: configured zone, else local)")
	return cmd
}

func (a *app) parseRecurCmd() *cobra.Command {
	var (
		tz   string
		from string
		next int
	)

	cmd := &cobra.Command{
		Use:   "recur TEXT...",
		Short: "Resolve a recurrence phrase to an RRULE",
		Example: `  justcal parse recur "every monday and friday for 10 times"
  justcal parse recur "monthly on the last friday" --next 5`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rule, err := recurrence.Resolve(strings.Join(args, " "))
			if err != nil {
				return err
			}
			p := a.printer()
			p.Printf("%s\n", rule)
			p.Printf("  %s\n", rule.Describe())
			if next <= 0 {
				return nil
			}

			svc, err := a.offlineService(tz, false)
			if err != nil {
				return err
			}
			start, err := svc.ResolveInstant(from)
			if err != nil {
				return err
			}
			dates, err := occurrences(rule, start.Time, next)
			if err != nil {
				return err
			}
			p.Println()
			for _, d := range dates {
				if start.DateOnly {
					p.Printf("  %s\n", d.Format("Mon, 2006-01-02"))
				} else {
					p.Printf("  %s\n", d.Format("Mon, 2006-01-02 3:04 PM"))
				}
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&tz, "tz", "", "IANA time zone for --from (default: configured zone, else local)")
	f.StringVar(&from, "from", "now", "first occurrence candidate for --next")
	f.IntVarP(&next, "next", "n", 0, "also list the next N occurrences")
	return cmd
}

// occurrences expands rule from start and returns at most n instances.
func occurrences(rule *recurrence.Rule, start time.Time, n int) ([]time.Time, error) {
	opt, err := rule.ROption()
	if err != nil {
		return nil, fmt.Errorf("expand recurrence: %w", err)
	}
	opt.Dtstart = start
	rr, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("expand recurrence: %w", err)
	}

	out := make([]time.Time, 0, n)
	iter := rr.Iterator()
	for len(out) < n {
		t, ok := iter()
		if !ok {
			break
		}
		out = append(out, t.In(start.Location()))
	}
	return out, nil
}
