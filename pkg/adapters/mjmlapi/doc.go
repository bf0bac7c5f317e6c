// Package mjmlapi renders documents through the MJML HTTP API.
// Requests are retried with backoff on transport failures and 5xx responses.
package mjmlapi
