// Package deepresearch turns chat research requests into cited markdown
// reports.
//
// A request is clarified into a brief, queued on a kanban board and picked up
// by a periodic scheduler that keeps at most one investigation running. Web,
// academic and code investigators run concurrently under a shared source
// budget; their findings are deduplicated, clustered into themes and
// synthesized into a report that is stored once and announced to the
// requester.
//
// Embedding hosts use the Service facade:
//
//	cfg, _ := deepresearch.LoadConfig(ctx, "deepresearch.yaml")
//	srv, _ := deepresearch.New(deepresearch.WithConfig(cfg))
//	rt := srv.Runtime()
//	_ = rt.Start(ctx)
//	session, _ := rt.Receive(ctx, intake.Message{SenderID: "u1", Text: "/research solid state batteries"})
//	_, _ = rt.Reply(ctx, session.ID, "proceed")
package deepresearch

// Version is reported in traces and by the CLI.
const Version = "0.1.0"
