// Package main hosts the mixtape CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration once, wires the internal
// packages together (track resolution, lyric synchronization, the transcode
// pipeline, and the batch controller), and renders results as tables.
// Heavy lifting belongs in internal packages; commands here stay thin.
package main
