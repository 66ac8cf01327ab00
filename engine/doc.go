// Package engine implements chunkvault's persistence engine: the project
// lifecycle (attach/detach with a cross-process lock), a debounced
// write-ahead staging buffer, an atomic per-chunk commit protocol with
// backup rotation and self-healing reads, and a checkpoint/restore
// mechanism. One Engine owns exactly one project directory.
package engine
