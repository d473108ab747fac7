// Package version carries build metadata shared by alertd and alertctl.
//
// Version, Commit and BuildTime are set with -ldflags at release time. The
// daemon reports Short in its status, health check and calendar exports;
// control clients send UserAgent with every call.
package version
