// Package cli wires together the Cobra command tree for the mrscan binary.
//
// It defines the root command and all subcommands (serve, review, analyze,
// config, hook, version), binds flags, reads configuration, builds the
// source-control clients and orchestrator, and returns deterministic exit
// codes for CI gating.
package cli
