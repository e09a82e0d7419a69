//go:build tools

// Package tools pins the development tools used on this repository so
// their versions are tracked in go.mod.
// Install them with: go install -tags tools ./...
package tools

import (
	// Linting and formatting
	_ "github.com/golangci/golangci-lint/cmd/golangci-lint"
	_ "golang.org/x/tools/cmd/goimports"

	// Mock generation for interfaces that outgrow the hand-written fakes in pkg/mocks
	_ "github.com/golang/mock/mockgen"

	// Test runners
	_ "github.com/onsi/ginkgo/v2/ginkgo"
	_ "gotest.tools/gotestsum"

	// Security scanning
	_ "github.com/securego/gosec/v2/cmd/gosec"

	// Profiling long classifier runs
	_ "github.com/google/pprof"

	// Reference docs
	_ "github.com/swaggo/swag/cmd/swag"
)
