// Package logx is pawpal's structured logger: a small value type over zerolog
// with a Service that can swap sinks and levels while the process runs.
//
// Console output is human readable (short timestamp, file:line caller); the
// optional file sink writes one JSON object per line.
package logx
