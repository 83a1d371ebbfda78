package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/viant/deepresearch/model"
)

var submitFlags struct {
	goal     string
	focus    []string
	prefer   []string
	exclude  []string
	blocked  []string
	audience string
	since    string
}

var submitCmd = &cobra.Command{
	Use:   "submit <topic>",
	Short: "Queue a research brief without the clarification dialog",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSubmit,
}

func init() {
	f := submitCmd.Flags()
	f.StringVar(&submitFlags.goal, "goal", string(model.GoalOverview), "overview, comparison, implementation_guide, literature_review or decision_support")
	f.StringSliceVar(&submitFlags.focus, "focus", nil, "Focus points")
	f.StringSliceVar(&submitFlags.prefer, "prefer", nil, "Preferred source types (web, academic, code)")
	f.StringSliceVar(&submitFlags.exclude, "exclude", nil, "Excluded source types")
	f.StringSliceVar(&submitFlags.blocked, "block", nil, "Terms whose findings are dropped")
	f.StringVar(&submitFlags.audience, "audience", "", "Intended readers")
	f.StringVar(&submitFlags.since, "since", string(model.DateAny), "Web recency: any, week, month or year")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	brief, err := submittedBrief(strings.Join(args, " "))
	if err != nil {
		return err
	}
	srv, closer, err := open(cmd)
	if err != nil {
		return err
	}
	defer closer()
	task, err := srv.Runtime().Submit(cmd.Context(), brief)
	if err != nil {
		return err
	}
	printTask(cmd.OutOrStdout(), task)
	return nil
}

func submittedBrief(topic string) (model.Brief, error) {
	brief := model.Brief{
		Topic:        strings.TrimSpace(topic),
		FocusPoints:  submitFlags.focus,
		BlockedTerms: submitFlags.blocked,
		Audience:     submitFlags.audience,
		SenderID:     "cli",
	}
	goal, ok := model.ParseGoal(submitFlags.goal)
	if !ok {
		return brief, fmt.Errorf("unknown goal %q", submitFlags.goal)
	}
	brief.Goal = goal
	switch filter := model.DateFilter(strings.ToLower(submitFlags.since)); filter {
	case model.DateAny, model.DateWeek, model.DateMonth, model.DateYear:
		brief.DateFilter = filter
	default:
		return brief, fmt.Errorf("unknown recency %q", submitFlags.since)
	}
	var err error
	if brief.Priorities, err = parseSourceTypes(submitFlags.prefer); err != nil {
		return brief, err
	}
	if brief.Exclusions, err = parseSourceTypes(submitFlags.exclude); err != nil {
		return brief, err
	}
	return brief, brief.Validate()
}
