// Package preflight provides readiness checks for the filesystem paths,
// external tools and services burstline depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll and CheckSystemDeps at startup and logs every
//     failure; a missing required tool stops the daemon before any job is
//     claimed.
//   - The CLI "burstline deps check" command prints the same results.
//
// Optional tools (face detector, analyzer) are reported but never block.
package preflight
