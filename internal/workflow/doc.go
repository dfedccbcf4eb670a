// Package workflow polls the submission queue and drives pending submissions
// through the publish pipeline, one at a time. A fresh orchestrator instance
// is constructed per submission; the manager also maintains heartbeats for
// in-flight work and reclaims submissions whose heartbeats went stale.
package workflow
