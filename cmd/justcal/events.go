package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/tazhate/justcal/config"
	"github.com/tazhate/justcal/internal/output"
	"github.com/tazhate/justcal/internal/service"
)

func (a *app) addCmd() *cobra.Command {
	var req service.AddRequest

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a new event",
		Example: `  justcal add -t "Dentist" -s "next friday at 2pm"
  justcal add -t "Standup" -s "tomorrow 9:30am" -e "tomorrow 9:45am" -r "every weekday"
  justcal add -t "Conference" -s 2026-03-02 -e 2026-03-04 --all-day`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			event, err := svc.AddEvent(cmd.Context(), req)
			if err != nil {
				return err
			}
			p := a.printer()
			p.Success("Event created successfully: %s", event.Title)
			p.Details(event)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&req.Title, "title", "t", "", "event title")
	f.StringVarP(&req.Start, "start", "s", "", "start date/time (natural language or ISO 8601)")
	f.StringVarP(&req.End, "end", "e", "", "end date/time (default: start + default duration)")
	f.StringVarP(&req.Description, "description", "d", "", "event description")
	f.StringVarP(&req.Location, "location", "l", "", "event location")
	f.BoolVar(&req.AllDay, "all-day", false, "create an all-day event")
	f.StringVarP(&req.Recurrence, "recur", "r", "", `recurrence ("daily", "weekly on Monday", "FREQ=DAILY;COUNT=10")`)
	cmd.MarkFlagRequired("title")
	cmd.MarkFlagRequired("start")
	return cmd
}

func (a *app) listCmd() *cobra.Command {
	var (
		req    service.ListRequest
		format string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := output.ParseFormat(format)
			if err != nil {
				return err
			}
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			events, err := svc.ListEvents(cmd.Context(), req)
			if err != nil {
				return err
			}
			return a.printer().Events(events, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&req.From, "from", "", "start of range (default: today)")
	fl.StringVar(&req.To, "to", "", "end of range (default: 7 days after --from)")
	fl.StringVar(&format, "format", "table", "output format: table or json")
	fl.IntVarP(&req.Limit, "limit", "n", 0, "limit number of results")
	return cmd
}

func (a *app) searchCmd() *cobra.Command {
	var (
		req    service.SearchRequest
		format string
	)

	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Search events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := output.ParseFormat(format)
			if err != nil {
				return err
			}
			req.Query = args[0]
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			events, err := svc.SearchEvents(cmd.Context(), req)
			if err != nil {
				return err
			}
			return a.printer().SearchResults(events, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&req.Field, "field", "all", "field to search: title, description, location or all")
	fl.StringVar(&req.From, "from", "", "start of date range (default: a year ago)")
	fl.StringVar(&req.To, "to", "", "end of date range (default: a year ahead)")
	fl.StringVar(&format, "format", "table", "output format: table or json")
	return cmd
}

func (a *app) editCmd() *cobra.Command {
	var (
		title, start, end, description, location, recur string
		noRecur                                          bool
	)

	cmd := &cobra.Command{
		Use:               "edit UID",
		Short:             "Edit an existing event",
		Long:              "Edit an existing event. UID may be a unique prefix of the full UID.",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: a.completeUID,
		RunE: func(cmd *cobra.Command, args []string) error {
			changed := func(name string, v *string) *string {
				if cmd.Flags().Changed(name) {
					return v
				}
				return nil
			}
			req := service.EditRequest{
				UID:         args[0],
				Title:       changed("title", &title),
				Start:       changed("start", &start),
				End:         changed("end", &end),
				Description: changed("description", &description),
				Location:    changed("location", &location),
				Recurrence:  changed("recur", &recur),
				NoRecur:     noRecur,
			}

			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			event, changes, err := svc.EditEvent(cmd.Context(), req)
			p := a.printer()
			if errors.Is(err, service.ErrNoChanges) {
				p.Warning("No changes specified. Use -t, -s, -e, -d, -l, -r or --no-recur to update fields.")
				return nil
			}
			if err != nil {
				return err
			}
			p.Success("Event updated successfully: %s", event.Title)
			p.Printf("  UID: %s\n", event.UID)
			p.Changes(changes)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&title, "title", "t", "", "new title")
	f.StringVarP(&start, "start", "s", "", "new start date/time (keeps the duration unless --end is given)")
	f.StringVarP(&end, "end", "e", "", "new end date/time")
	f.StringVarP(&description, "description", "d", "", "new description")
	f.StringVarP(&location, "location", "l", "", "new location")
	f.StringVarP(&recur, "recur", "r", "", "new recurrence pattern")
	f.BoolVar(&noRecur, "no-recur", false, "remove recurrence")
	cmd.MarkFlagsMutuallyExclusive("recur", "no-recur")
	return cmd
}

func (a *app) deleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:               "delete UID",
		Short:             "Delete an event",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: a.completeUID,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			event, err := svc.GetEvent(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			p := a.printer()
			if !yes {
				p.Printf("Delete event: %s\n", event.Title)
				p.Details(event)
				p.Println()
				ok, err := config.NewPrompter(a.in, a.out).Confirm("Are you sure you want to delete this event?")
				if err != nil {
					return err
				}
				if !ok {
					p.Warning("Deletion cancelled.")
					return nil
				}
			}

			deleted, err := svc.DeleteEvent(cmd.Context(), event.UID)
			if err != nil {
				return err
			}
			p.Success("Event deleted successfully: %s", deleted.Title)
			p.Printf("  UID: %s\n", deleted.UID)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}
