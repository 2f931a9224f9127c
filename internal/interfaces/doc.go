// Package interfaces holds compile-time checks that the concrete types
// satisfy the interfaces their consumers declare.
//
// # Interface Map
//
// Sync pipeline:
//
//   - engine.Source: highlight source (internal/readwise/source.go)
//   - delivery.Client: destination (internal/twos, internal/capacities)
//   - engine.Ledger: delivered-item ledger (internal/database/ledger)
//   - cursor.Store / cursor.Resetter: cursor persistence (internal/cursor)
//
// Scheduling and background work:
//
//   - scheduler.Runner: one sync cycle (internal/engine)
//   - scheduler.SyncSettings: runtime schedule (internal/settingsstore)
//   - scheduler.CycleRecorder, scheduler.ReportWriter: cycle audit (internal/audit)
//   - tasks.SyncTrigger: queued manual triggers (internal/scheduler)
//
// HTTP controllers declare their own narrow interfaces in internal/http/stores.go.
//
// # Adding a New Destination
//
//  1. Create a package under internal/ with a client that implements
//     delivery.Client and maps HTTP failures with delivery.ClassifyStatus
//     and delivery.ClassifyTransport:
//
//     func (c *Client) Name() string
//     func (c *Client) Post(ctx context.Context, text string) error
//
//  2. Add a DESTINATION value in internal/config and a case in
//     entrypoint.NewDestination.
//
//  3. Add a compile-time check to checks.go:
//
//     var _ delivery.Client = (*mydest.Client)(nil)
package interfaces
