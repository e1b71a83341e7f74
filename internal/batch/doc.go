// Package batch drives a sequence of video jobs over one set of tracks.
//
// A Controller owns everything for one run: the ordering generator, the
// job list with its state machine (pending, running, then done, failed, or
// cancelled), the job and batch timers, and the leased work directory. Jobs
// run strictly one after another; progress flows out through a
// non-blocking progress.Queue so observers never stall the worker.
package batch
