package commands

import (
	"mtreport-backend/internal/records"
	"mtreport-backend/internal/reconcile"

	"github.com/spf13/cobra"
)

var syncFlags struct {
	pull   bool
	push   bool
	table  string
	dryRun bool
}

func init() {
	syncCmd.Flags().BoolVar(&syncFlags.pull, "pull", false, "Copy records only the remote store has into the local store.")
	syncCmd.Flags().BoolVar(&syncFlags.push, "push", false, "Copy records only the local store has into the remote store.")
	syncCmd.Flags().StringVar(&syncFlags.table, "table", "all", "equity, summary, dish or all.")
	syncCmd.Flags().BoolVar(&syncFlags.dryRun, "dry-run", false, "Only count the missing records.")
	rootCmd.AddCommand(syncCmd)
}

// direction is both unless exactly one of --pull and --push is given.
func direction() reconcile.Direction {
	switch {
	case syncFlags.pull && !syncFlags.push:
		return reconcile.Pull
	case syncFlags.push && !syncFlags.pull:
		return reconcile.Push
	}
	return reconcile.Both
}

func syncTables() ([]records.EntityType, error) {
	if syncFlags.table == "all" {
		return records.EntityTypes, nil
	}
	kind, err := records.ParseEntityType(syncFlags.table)
	if err != nil {
		return nil, err
	}
	return []records.EntityType{kind}, nil
}

var syncCmd = &cobra.Command{
	Use:   "sync [--pull] [--push] [--table equity|summary|dish|all] [--dry-run]",
	Short: "Copies records missing on either side between the local and remote stores.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tables, err := syncTables()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		e, err := openEnv(ctx, true)
		if err != nil {
			return err
		}
		defer e.Close()

		r := reconcile.NewReconciler(e.local, e.remote, e.tel)
		all, err := r.ReconcileAll(ctx, direction(), tables, reconcile.Options{DryRun: syncFlags.dryRun})
		renderSync(all, syncFlags.dryRun)
		renderMisses(e.remote.Identities().Misses())
		return err
	},
}
