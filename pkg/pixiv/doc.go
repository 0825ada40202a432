// Package pixiv implements the upstream API collaborators: the app-API
// client with OAuth refresh-token authentication, the public web ranking
// endpoint, typed response models, and binary asset download. The crawl
// pipeline consumes it through the interfaces declared in pkg/crawler.
package pixiv
