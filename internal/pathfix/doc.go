// Package pathfix repairs stale catalog locations and sanitizes path names.
//
// Resolve first prunes locations whose files are missing or truncated. When
// none survive it walks up from each location to the nearest existing
// directory, searches that subtree for the file name and records a
// workstore.PathAlias so later runs skip the search. Sanitize and
// SanitizePath restrict names to digits, Latin and Cyrillic letters and a
// small punctuation set.
package pathfix
