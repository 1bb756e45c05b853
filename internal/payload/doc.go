// Package payload models catalog records as a typed envelope.
//
// Fields the pipeline reads (clip id, locations, sizes, timecodes, capture
// time, custom asset fields) are named; every other key is kept in an Extra
// map at its level and written back verbatim, so a stored record can be
// re-emitted to the scan service without loss.
package payload
