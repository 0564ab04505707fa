// Package advisory talks to the external text-guidance service used to
// identify the columns of a row-oriented rejection sheet.
//
// The service is untrusted and may be absent. Callers bound every request
// with a context deadline; there are no retries.
package advisory
