// Package testutil provides shared helpers for the integration tests.
//
// It holds assertions over the lease distribution of a group of processors
// and helpers that wait for processors to reach a state.
//
// Note: For NATS server setup, use the github.com/arloliu/leasefeed/testing package.
package testutil
