package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/viant/deepresearch"
	"github.com/viant/deepresearch/internal/logging"
	"github.com/viant/deepresearch/model"
	"go.uber.org/zap"
)

// open loads the configuration, installs the logger and builds the service.
// The returned func flushes the logger and releases the stores.
func open(cmd *cobra.Command) (*deepresearch.Service, func(), error) {
	ctx := cmd.Context()
	cfg, err := deepresearch.LoadConfig(ctx, rootFlags.config)
	if err != nil {
		return nil, nil, err
	}
	restore, err := logging.Init(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	srv, err := deepresearch.New(deepresearch.WithConfig(cfg))
	if err != nil {
		restore()
		return nil, nil, err
	}
	return srv, func() {
		if err := srv.Runtime().Shutdown(ctx); err != nil {
			logging.Named("cli").Warn("shutdown failed", zap.Error(err))
		}
		restore()
	}, nil
}

func printTasks(w io.Writer, tasks []*model.Task) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTAGE\tRETRIES\tUPDATED\tTOPIC")
	for _, t := range tasks {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", t.ID, t.Stage, t.RetryCount, t.UpdatedAt.Format(time.RFC3339), t.Brief.Topic)
	}
	_ = tw.Flush()
}

func printTask(w io.Writer, t *model.Task) {
	fmt.Fprintf(w, "Task:     %s\n", t.ID)
	fmt.Fprintf(w, "Topic:    %s\n", t.Brief.Topic)
	fmt.Fprintf(w, "Goal:     %s\n", t.Brief.Goal)
	if len(t.Brief.FocusPoints) > 0 {
		fmt.Fprintf(w, "Focus:    %s\n", strings.Join(t.Brief.FocusPoints, ", "))
	}
	fmt.Fprintf(w, "Stage:    %s\n", t.Stage)
	if t.Failure != "" {
		fmt.Fprintf(w, "Failure:  %s %s\n", t.Failure, t.Error)
	}
	if t.DocumentID != "" {
		fmt.Fprintf(w, "Document: %s\n", t.DocumentID)
	}
}

func parseSourceTypes(values []string) ([]model.SourceType, error) {
	var ret []model.SourceType
	for _, value := range values {
		t, ok := model.ParseSourceType(value)
		if !ok {
			return nil, fmt.Errorf("unknown source type %q", value)
		}
		ret = append(ret, t)
	}
	return ret, nil
}
