// Package shared holds code used across the Ferroci packages that belongs to no
// single domain layer.
//
// # Test Utilities
//
// The testutil subpackage provides:
//
//   - BufferedSlogHandler and NewTestLogger to assert on structured log output
//   - CVFileContent and WriteCVFile to create instrument exports with a realistic
//     metadata preamble for parser, processor and HTTP tests
//
// testutil must only be imported from _test.go files.
package shared
