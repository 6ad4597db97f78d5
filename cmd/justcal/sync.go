package main

import (
	"github.com/spf13/cobra"

	"github.com/tazhate/justcal/internal/service"
)

func (a *app) syncCmd() *cobra.Command {
	var req service.SyncRequest

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Refresh the local event cache from the server",
		Long:  "Refresh the local event cache used for UID completion and fast lookups. Defaults to today through three months ahead.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			res, err := svc.SyncRange(cmd.Context(), req)
			if err != nil {
				return err
			}
			p := a.printer()
			p.Success("Cache synced: %d added, %d updated, %d deleted", res.Added, res.Updated, res.Deleted)
			for _, e := range res.Errors {
				p.Warning("  %s", e)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&req.From, "from", "", "start of range (default: today)")
	cmd.Flags().StringVar(&req.To, "to", "", "end of range (default: 3 months after --from)")
	return cmd
}
