// Package preflight provides readiness checks for the filesystem paths,
// external binaries, and publishing server the pipeline depends on.
//
// These checks run in two contexts:
//   - The watch daemon runs RunAll at startup and logs any failures so a
//     misconfigured drop folder surfaces before the first submission.
//   - The CLI "recipecast config validate" command renders the results so
//     operators can confirm a host is ready to publish.
package preflight
