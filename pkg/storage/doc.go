// Package storage manages the on-disk layout: per-item JSON metadata under
// json/{illust,user,ranking} and binary assets under
// img/{square,medium,large,origin,avatar}, with atomic writes and
// duplicate detection.
package storage
