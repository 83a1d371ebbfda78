package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

var showFlags struct {
	raw   bool
	width int
}

var showCmd = &cobra.Command{
	Use:   "show [document-id]",
	Short: "Render a stored report, or list reports when no id is given",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runShow,
}

func init() {
	f := showCmd.Flags()
	f.BoolVar(&showFlags.raw, "raw", false, "Print the markdown source")
	f.IntVar(&showFlags.width, "width", 100, "Word wrap width")
}

func runShow(cmd *cobra.Command, args []string) error {
	srv, closer, err := open(cmd)
	if err != nil {
		return err
	}
	defer closer()
	rt := srv.Runtime()
	out := cmd.OutOrStdout()
	if len(args) == 0 {
		ids, err := rt.Reports(cmd.Context())
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintln(out, id)
		}
		return nil
	}
	_, markdown, err := rt.Report(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if showFlags.raw {
		_, err = io.WriteString(out, markdown)
		return err
	}
	return render(out, markdown)
}

func render(w io.Writer, markdown string) error {
	width := showFlags.width
	if width <= 0 {
		width = 100
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return err
	}
	text, err := renderer.Render(markdown)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, text)
	return err
}
