// Package shared holds helpers used across packages that belong to no single
// layer.
//
// The testutil subpackage provides the slog capture handler and the in-memory
// license server used by the license, middleware, transport and app tests. It
// must only be imported from _test.go files.
package shared
