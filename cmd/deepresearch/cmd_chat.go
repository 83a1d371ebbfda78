package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/viant/deepresearch"
	"github.com/viant/deepresearch/model"
	"github.com/viant/deepresearch/service/intake"
)

var chatFlags struct {
	sender string
	wait   bool
}

var chatCmd = &cobra.Command{
	Use:   "chat [request]",
	Short: "Open a clarification dialog on the terminal",
	Long: `Reads a research request (from the arguments or the first input line),
asks the clarifying questions and queues the finalized brief. Answer with
"field: value" lines, free text for the next open question, "proceed" to use
defaults or "cancel" to abandon. With --wait the research runs in the
foreground and the report is printed.`,
	RunE: runChat,
}

func init() {
	f := chatCmd.Flags()
	f.StringVar(&chatFlags.sender, "sender", os.Getenv("USER"), "Requester id")
	f.BoolVar(&chatFlags.wait, "wait", false, "Run the research and print the report")
}

func runChat(cmd *cobra.Command, args []string) error {
	srv, closer, err := open(cmd)
	if err != nil {
		return err
	}
	defer closer()
	rt := srv.Runtime()
	out := cmd.OutOrStdout()
	in := bufio.NewScanner(cmd.InOrStdin())

	request := strings.Join(args, " ")
	if request == "" {
		fmt.Fprint(out, "What should I research? ")
		if !in.Scan() {
			return io.ErrUnexpectedEOF
		}
		request = in.Text()
	}
	session, err := rt.Receive(cmd.Context(), intake.Message{SenderID: chatFlags.sender, ChannelContext: "cli", Text: request})
	if err != nil {
		return err
	}
	for !session.State.IsTerminal() {
		for i, question := range session.Open() {
			fmt.Fprintf(out, "%d. %s\n", i+1, question.Text)
		}
		fmt.Fprint(out, "> ")
		if !in.Scan() {
			return io.ErrUnexpectedEOF
		}
		session, err = rt.Reply(cmd.Context(), session.ID, in.Text())
		if err != nil {
			return err
		}
	}
	task, err := rt.Task(cmd.Context(), session.TaskID)
	if err != nil {
		return err
	}
	printTask(out, task)
	if !chatFlags.wait {
		return nil
	}
	return waitForReport(cmd, srv, task.ID)
}

// waitForReport runs the background loops until the task is terminal.
func waitForReport(cmd *cobra.Command, srv *deepresearch.Service, taskID string) error {
	ctx := cmd.Context()
	rt := srv.Runtime()
	if err := rt.Start(ctx); err != nil {
		return err
	}
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		if _, err := rt.Tick(ctx); err != nil {
			return err
		}
		task, err := rt.Task(ctx, taskID)
		if err != nil {
			return err
		}
		switch task.Stage {
		case model.StageDone:
			_, markdown, err := rt.Report(ctx, task.DocumentID)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), markdown)
		case model.StageRejected:
			return errors.New("research rejected: " + task.Error)
		case model.StageFailed:
			if task.Failure == model.FailureAborted {
				return errors.New("research aborted: " + task.Error)
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
