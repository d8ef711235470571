// Package orchestrator coordinates the VPN login workflow.
//
// Every collaborator (tray, dialogs, portal client, helper supervisors)
// posts events into a Mailbox. A single Dispatcher goroutine consumes the
// mailbox one item at a time, feeds each event through Reduce and executes
// the resulting commands against the collaborators. Blocking network calls
// run on a Runner and come back through the same mailbox as TaskResults,
// so the workflow state is only ever touched by the dispatch goroutine.
package orchestrator
