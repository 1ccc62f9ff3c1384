// Package feed provides ChangeFeedSource implementations.
//
// A feed is a set of ranges, each an ordered log of changes, described by a
// Topology. Ranges split into children or are retired over time; fetching a
// split range first drains what was appended to it before the split and then
// reports types.ErrPartitionSplit, so no change is skipped across a hand-off.
//
// Two feeds are provided:
//   - Memory keeps the logs in process, for tests and single-process use
//   - JetStream keeps one subject per range in a JetStream stream; the
//     continuation is the next stream sequence to read
package feed
