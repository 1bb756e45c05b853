// Package staging inspects and cleans the directory the encoder writes to
// before transcoded files are copied into the media root.
package staging
