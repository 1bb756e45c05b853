// Package catalog wraps the asset catalog REST API: cached search over the
// media space, paged retrieval of search results and clip deletion with a
// confirming re-query.
package catalog
