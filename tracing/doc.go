// Package tracing wraps OpenTelemetry so that task runs, investigations and
// synthesis can be traced without every package importing the SDK. When no
// provider is installed spans are no-ops.
package tracing
