package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/viant/deepresearch/model"
)

var tickFlags struct {
	run bool
}

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run one scheduling pass",
	Long: `Recovers stale locks, triages the inbox and promotes the oldest todo task
when nothing is in progress. The promoted task is researched in the
foreground unless --run=false, which is useful when a separate serve process
consumes a durable dispatch queue.`,
	Args: cobra.NoArgs,
	RunE: runTick,
}

var listFlags struct {
	stages []string
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var requeueCmd = &cobra.Command{
	Use:   "requeue <task-id>",
	Short: "Move a failed task back to todo",
	Args:  cobra.ExactArgs(1),
	RunE:  runRequeue,
}

var abortFlags struct {
	reason string
}

var abortCmd = &cobra.Command{
	Use:   "abort <task-id>",
	Short: "Fail a todo or in_progress task without requeueing it",
	Args:  cobra.ExactArgs(1),
	RunE:  runAbort,
}

func init() {
	tickCmd.Flags().BoolVar(&tickFlags.run, "run", true, "Research the promoted task before returning")
	listCmd.Flags().StringSliceVar(&listFlags.stages, "stage", nil, "Restrict to stages (inbox, todo, in_progress, done, failed, rejected)")
	abortCmd.Flags().StringVar(&abortFlags.reason, "reason", "aborted by operator", "Reason recorded on the task")
}

func runTick(cmd *cobra.Command, _ []string) error {
	srv, closer, err := open(cmd)
	if err != nil {
		return err
	}
	defer closer()
	rt := srv.Runtime()
	out := cmd.OutOrStdout()
	promoted, err := rt.Tick(cmd.Context())
	if err != nil {
		return err
	}
	if promoted == nil {
		fmt.Fprintln(out, "Nothing promoted.")
		return nil
	}
	if tickFlags.run {
		if err := rt.Run(cmd.Context(), promoted.ID); err != nil {
			return err
		}
		if promoted, err = rt.Task(cmd.Context(), promoted.ID); err != nil {
			return err
		}
	}
	printTask(out, promoted)
	if promoted.DocumentID != "" {
		fmt.Fprintf(out, "Report:   %s\n", rt.ReportLocation(promoted.DocumentID))
	}
	return nil
}

func runList(cmd *cobra.Command, _ []string) error {
	var stages []model.Stage
	for _, stage := range listFlags.stages {
		stages = append(stages, model.Stage(stage))
	}
	srv, closer, err := open(cmd)
	if err != nil {
		return err
	}
	defer closer()
	tasks, err := srv.Runtime().Tasks(cmd.Context(), stages...)
	if err != nil {
		return err
	}
	printTasks(cmd.OutOrStdout(), tasks)
	return nil
}

func runRequeue(cmd *cobra.Command, args []string) error {
	srv, closer, err := open(cmd)
	if err != nil {
		return err
	}
	defer closer()
	task, err := srv.Runtime().Requeue(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	printTask(cmd.OutOrStdout(), task)
	return nil
}

func runAbort(cmd *cobra.Command, args []string) error {
	srv, closer, err := open(cmd)
	if err != nil {
		return err
	}
	defer closer()
	task, err := srv.Runtime().Abort(cmd.Context(), args[0], abortFlags.reason)
	if err != nil {
		return err
	}
	printTask(cmd.OutOrStdout(), task)
	return nil
}
