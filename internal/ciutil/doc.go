// Package ciutil provides utilities for CI and environment-specific functionality.
//
// This package contains standardized functions for detecting the execution environment
// (CI, local dev, parallel test channels), accessing environment variables in a
// consistent way, and locating the project root used for the default dump cache.
//
// By isolating environment detection and standardizing environment variable usage,
// the rest of the module can treat these concerns as plain values.
package ciutil
