// Package sweep runs one reminder sweep end to end: read the owner's items
// and the account directory, classify, compose, fan out through the email
// gateway and report.
//
// Each trigger mode (reminder, test) is a Policy injected per run; the
// pipeline itself is shared.
package sweep
