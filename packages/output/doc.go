// Package output renders run results for people and for machines.
//
// Four formats are built in:
//   - Console: colored per-step lines with a closing summary block
//   - JSON: one machine-readable document for the whole run
//   - JUnit: JUnit XML testsuites, one suite per walk, for CI ingestion
//   - TAP: Test Anything Protocol version 13 for prove-style harnesses
//
// The JSON, JUnit, and TAP formatters accumulate results and write
// everything on Flush; the console formatter writes as results arrive.
package output
