package main

import (
	"github.com/alvmarrod/site-mirror/internal/job"
	"github.com/alvmarrod/site-mirror/internal/scheduler"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewScheduleCmd creates the schedule command
func NewScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Mirror once now, then on a cron schedule until interrupted",
		Long: `Schedule performs a mirror run immediately and then triggers one on every
tick of the cron expression (default from the config, "0 */6 * * *").
A tick that arrives while a run is still in progress is skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := setup(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			spec := env.cfg.Schedule
			if override, _ := cmd.Flags().GetString("schedule"); override != "" {
				spec = override
			}

			j := job.FromConfig(env.cfg, env.store)
			s, err := scheduler.New(spec, scheduler.NewRunner(j.Run))
			if err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			if err := s.Run(ctx); err != nil {
				return err
			}
			logrus.Info("Graceful shutdown complete. Goodbye!")
			return nil
		},
	}

	cmd.Flags().StringP("schedule", "s", "", "Cron expression overriding the configured schedule")
	return cmd
}
