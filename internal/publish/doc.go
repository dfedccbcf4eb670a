// Package publish drives a submission through the capture-to-publish state
// machine: size check, transcode, post-transcode size check, video upload,
// recipe metadata submission. Each orchestrator instance runs exactly one
// submission and reports progress through phase-scoped events.
package publish
