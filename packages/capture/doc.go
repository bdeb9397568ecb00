// Package capture extracts values from a completed exchange into named
// variables for later steps.
//
// Each capture names exactly one source: a gjson path into a JSON body, a
// response header, a parsed cookie, a scraped form token, or a regular
// expression over the body text (first group, or the whole match when the
// pattern has no groups).
package capture
