// Package reactor runs sessions on lanes.
//
// A lane is a serial execution context: functions posted to the same lane
// never run concurrently and run in the order they were posted. Blocking
// work is started with [Lane.Go] and its completion is posted back to the
// lane. The reactor also keeps the arena of in-flight tasks, so that
// [Reactor.Shutdown] can wait for all of them.
package reactor
