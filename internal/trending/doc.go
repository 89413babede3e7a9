// Package trending extracts trending repositories from listing and detail
// pages, normalizes their counters, and aggregates them into a Summary.
//
// The parsers are pure functions over document bytes. Network access is
// confined to the Fetcher interface so the Engine can be driven by any
// transport, including in-memory fakes in tests.
package trending
