package main

import (
	"fmt"

	"callos/internal/audit"
	"callos/internal/calls"
	"callos/internal/config"
	"callos/internal/milestones"
	"callos/internal/objections"
	"callos/internal/playbook"
	"callos/internal/prospects"
	"callos/internal/store"

	"github.com/spf13/cobra"
)

func newSeedCmd() *cobra.Command {
	var (
		path string
		org  string
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load a milestone and objection playbook into an organization",
		Long:  "Reads a playbook YAML file and upserts its milestones (by number) and objections (by type).",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config load failed: %w", err)
			}
			if path == "" {
				path = cfg.Playbook.Path
			}
			if path == "" {
				return fmt.Errorf("playbook path is required (--file or PLAYBOOK_PATH)")
			}
			pb, err := playbook.Load(path)
			if err != nil {
				return err
			}

			db, closeDB, err := store.Open(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = closeDB() }()
			if err := store.Migrate(db); err != nil {
				return err
			}

			cs := calls.NewService(db, prospects.NewService(db))
			mss := milestones.NewService(db, cs, audit.NewService(audit.NewGormRepo(db)), milestones.Policy{
				SkippedSatisfiesSequence: cfg.Engine.SkippedSatisfiesSequence,
			})
			res, err := playbook.Seed(cmd.Context(), pb, org, mss, objections.NewService(db, cs, mss))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d milestones and %d objections for %s\n", res.Milestones, res.Objections, res.OrganizationID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "file", "f", "", "playbook YAML file (default PLAYBOOK_PATH)")
	cmd.Flags().StringVar(&org, "org", "", "organization id (default: the playbook's organization)")
	return cmd
}
