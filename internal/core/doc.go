// Package core provides the business logic for slicing packed bit words out
// of tabular files.
//
// This package sits between the pure decoding primitives in package bits and
// the transports (HTTP in package web, the bitslice CLI). It can be used by
// either without modification.
//
// # Planning
//
// A [PlanRequest] names a column and one of three ways to split it:
//
//   - uniform: fixed-size chunks, the last one narrower if needed
//   - explicit: a comma-separated width list such as "12,12,8"
//   - layout: a named layout from the YAML registry, see [Layouts]
//
// [Service.Plan] resolves the column from its first present cell (see
// [ResolveColumn]), builds the widths, checks that they add up to the
// column's bit length, and picks field names.
//
// # Slicing
//
// [Service.Slice] decodes every cell of the planned column and appends one
// output column per field. Rows are fanned out over a bounded errgroup and
// written back in input order. Absent cells give empty fields; unparsable
// cells give zero-filled fields and are counted in [Stats].
//
// # Jobs
//
// Uploads are sliced asynchronously:
//
//  1. [Service.StartJob] takes a slot from the [JobLimiter] and returns a job ID
//  2. Progress is broadcast to subscribers via [Service.SubscribeProgress]
//  3. [Service.JobResult] and [Service.JobOutput] return the outcome
//  4. Finished jobs are recorded in the [HistoryStore] and evicted after a TTL
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a code for support reference:
//
//   - ASN001-ASN005: bit assignment and naming errors
//   - COL001, LAY001: unknown column or layout
//   - FILE001-FILE004: file errors (size, format, parsing)
//   - JOB001-JOB005: job errors (cancelled, busy, not found, timeout)
//   - RATE001: rate limiting
package core
