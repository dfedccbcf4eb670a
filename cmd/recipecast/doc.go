// Package main hosts the recipecast CLI entrypoint and command graph.
//
// The Cobra-based command tree covers one-shot publishing, the drop-folder
// watch daemon, queue maintenance, notification testing, and configuration
// scaffolding. It centralizes configuration resolution, process locking, and
// structured logging setup so subcommands can focus on user experience.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
