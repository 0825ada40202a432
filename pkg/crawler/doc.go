// Package crawler implements the content pipeline: paginated listing
// sources stream illustrations through a multi-criteria filter into a
// bounded top-K working set, every upstream call governed by a fixed retry
// schedule, with resolution-selectable best-effort downloads at the end.
package crawler
