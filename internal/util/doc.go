// Package util provides small helpers shared by the provider packages.
//
// Key utilities:
//   - SafeTruncate: Truncates tokens and response bodies for logs and error messages
package util
