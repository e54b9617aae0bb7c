// Package preflight provides readiness checks for the filesystem paths,
// external binaries and network reachability keepsake depends on.
//
// These checks run in two contexts:
//   - "keepsake start" calls CheckLiveness before polling. An unreachable
//     network skips the run instead of failing every subscription.
//   - "keepsake check" runs RunAll and CheckSystemDeps to display health.
package preflight
