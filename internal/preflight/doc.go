// Package preflight provides readiness checks for the files, programs, and
// services cavacolor depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and refuses to start when a check
//     marked Fatal fails, since a missing cava config or slot would only
//     produce a stream of failing cycles.
//   - The CLI "cavacolor check" command prints every result, including
//     advisory ones such as whether cava is currently running.
package preflight
