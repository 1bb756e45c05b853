// Package migration runs the two stages of a batch.
//
// The Transcoder claims items in id order, resolves their source, encodes
// them into the staging area and forwards transcoded ids. The Inserter
// consumes those ids and performs, strictly in order, the copy to the
// destination, the catalog delete, the removal of the original and the
// re-index. Every step checks its persisted flag first, so rerunning a
// batch repeats no external call for work already done.
//
// StopFlag is the cooperative soft stop checked at item boundaries.
package migration
