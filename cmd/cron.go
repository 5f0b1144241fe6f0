package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/robun/internal/config"
	"github.com/nextlevelbuilder/robun/internal/cron"
)

func cronCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "cron",
		Short: "Manage scheduled jobs",
	}
	root.AddCommand(cronListCmd())
	root.AddCommand(cronAddCmd())
	root.AddCommand(cronRemoveCmd())
	root.AddCommand(cronRunCmd())
	return root
}

func openCronService() (*cron.Service, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, err
	}
	svc := cron.NewService(cfg.Cron.StorePath, func(message, sessionKey, channel, chatID string) (string, error) {
		return "", fmt.Errorf("cron CLI invocation has no running agent loop to deliver to")
	})
	if err := svc.Start(); err != nil {
		return nil, err
	}
	return svc, nil
}

func cronListCmd() *cobra.Command {
	var includeDisabled bool
	c := &cobra.Command{
		Use:   "list",
		Short: "List scheduled jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openCronService()
			if err != nil {
				return err
			}
			defer svc.Stop()
			data, err := json.MarshalIndent(svc.ListJobs(includeDisabled), "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	}
	c.Flags().BoolVar(&includeDisabled, "all", false, "include disabled jobs")
	return c
}

func cronAddCmd() *cobra.Command {
	var name, kind, expr, message, channel, chatID string
	var atMs, everyMs int64
	var deliver, deleteAfterRun bool
	c := &cobra.Command{
		Use:   "add",
		Short: "Add a scheduled job",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openCronService()
			if err != nil {
				return err
			}
			defer svc.Stop()
			job := cron.Job{
				Name:           name,
				Enabled:        true,
				DeleteAfterRun: deleteAfterRun,
				Payload: cron.Payload{
					Message: message,
					Deliver: deliver,
					Channel: channel,
					ChatID:  chatID,
					Kind:    "agent_turn",
				},
			}
			switch kind {
			case "at":
				job.Schedule = cron.Schedule{Kind: "at", AtMs: atMs}
			case "every":
				job.Schedule = cron.Schedule{Kind: "every", EveryMs: everyMs}
			case "cron":
				job.Schedule = cron.Schedule{Kind: "cron", Expr: expr}
			default:
				return fmt.Errorf("--kind must be one of at, every, cron")
			}
			created, err := svc.AddJob(job)
			if err != nil {
				return err
			}
			fmt.Printf("added job %s\n", created.ID)
			return nil
		},
	}
	c.Flags().StringVar(&name, "name", "", "job name")
	c.Flags().StringVar(&kind, "kind", "every", "schedule kind: at, every, cron")
	c.Flags().StringVar(&expr, "expr", "", "cron expression (kind=cron)")
	c.Flags().Int64Var(&atMs, "at-ms", 0, "unix ms to fire once (kind=at)")
	c.Flags().Int64Var(&everyMs, "every-ms", 0, "interval in ms (kind=every)")
	c.Flags().StringVar(&message, "message", "", "payload message text")
	c.Flags().BoolVar(&deliver, "deliver", false, "deliver the reply to channel/chat-id")
	c.Flags().StringVar(&channel, "channel", "", "target channel")
	c.Flags().StringVar(&chatID, "chat-id", "", "target chat id")
	c.Flags().BoolVar(&deleteAfterRun, "delete-after-run", false, "delete this job after it fires once (kind=at)")
	return c
}

func cronRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a scheduled job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openCronService()
			if err != nil {
				return err
			}
			defer svc.Stop()
			return svc.RemoveJob(args[0])
		},
	}
}

func cronRunCmd() *cobra.Command {
	var force bool
	c := &cobra.Command{
		Use:   "run <id>",
		Short: "Run a job immediately",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openCronService()
			if err != nil {
				return err
			}
			defer svc.Stop()
			return svc.RunJob(args[0], force)
		},
	}
	c.Flags().BoolVar(&force, "force", false, "run even if disabled")
	return c
}
