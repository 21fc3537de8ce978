// Package preflight provides readiness checks for the external tools and
// filesystem paths that grabit depends on.
//
// There are two callers:
//   - The daemon calls RunAll once at startup. A failed check aborts the
//     daemon before it accepts downloads it cannot finish.
//   - The CLI "grabit status" command uses the individual check functions
//     (CheckSystemDeps, CheckDirectoryAccess) to display tool and path health.
package preflight
