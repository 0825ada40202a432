// Package retry provides the schedule-driven retry governor wrapping every
// upstream API call. Attempts follow a fixed escalating delay schedule; a
// result inspector distinguishes embedded error payloads from raised
// failures, so rate limiting and expired credentials are retried while
// benign upstream errors degrade into normal end-of-data.
package retry
