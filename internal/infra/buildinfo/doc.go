// Package buildinfo exposes version information injected at link time:
//
//	go build -ldflags "-X github.com/yndnr/tally-go/internal/infra/buildinfo.Version=v1.2.0 \
//	    -X github.com/yndnr/tally-go/internal/infra/buildinfo.Commit=$(git rev-parse --short HEAD)"
//
// Values not injected fall back to what the Go toolchain embedded in the
// binary.
package buildinfo
