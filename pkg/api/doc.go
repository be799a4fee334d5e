// Package api serves the catalog over JSON HTTP.
//
// Reads are open; the two writing endpoints authenticate managers by api
// key presented as a bearer token. Every error response is the same
// {code, status, message} triple, with taxonomy kinds mapped to statuses:
// bad input is 400, failed credentials 401, a missing row 404, and
// anything else 500. Listing endpoints share the start/end/count/offset
// range parameters and always return an array, never null.
package api
