// Package ratelimit bounds how many requests each API key may make per fixed
// time window, returning 429 once the budget is spent.
package ratelimit
