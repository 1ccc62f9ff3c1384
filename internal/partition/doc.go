// Package partition runs the per-host lease pipeline.
//
// The Bootstrapper makes sure every range of the change feed has a lease, the
// Controller acquires leases and spawns one Supervisor per owned lease, and the
// LoadBalancer periodically asks a strategy which further leases to take.
//
// A Supervisor runs a Processor (fetch, deliver, checkpoint) and a Renewer
// side by side and tears both down when either fails, when the lease is lost,
// or when the processor stops making progress for a whole verification window.
// A processor that finds its range split reports a *types.FeedRangeGoneError;
// the Controller then creates child leases through the Synchronizer, acquires
// them and only deletes the parent once every child is covered.
package partition
