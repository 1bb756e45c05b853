// Package supervisor runs one migration end to end.
//
// A main run names its batch after the cut-off date, populates it from a
// catalog search and drives the transcode/insert pipeline over it. A
// helper run resumes the newest batch. Every pass ends with a report, a
// notification and quarantine reconciliation; a main run that did not
// finish and was not soft-stopped gets one helper pass.
//
// Runs hold an exclusive lock over the state directory, since the in-work
// claim is only safe with a single producer per store.
package supervisor
