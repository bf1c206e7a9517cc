// Command summaries reads the events.db summary store of a training directory.
//
//	summaries list
//	summaries serve
//
// serve answers GET /api/runs, /api/tags, /api/scalars?tag= and /api/texts?tag= with JSON
// on CONVTRAIN_HOST.
package main
