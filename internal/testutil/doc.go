// Package testutil contains helper builders and utilities used across tests
// to reduce boilerplate when constructing threads and conversations and when
// asserting on event sequences. Not intended for production usage.
package testutil
