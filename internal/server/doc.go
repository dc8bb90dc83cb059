// Package server implements a Model Context Protocol (MCP) server that exposes
// GroundingDINO detection as tools for AI assistants.
//
// # Protocol
//
// The server speaks JSON-RPC 2.0 over stdio, one message per line:
//   - initialize: Protocol handshake and capability negotiation
//   - tools/list: Returns available tool definitions
//   - tools/call: Executes a tool and returns results
//   - ping: Health check
//
// # Tools
//
//   - detect_objects: Run one detection and write the output files
//   - read_results: Read the results.json of an earlier run
//
// A detect_objects call runs the same pipeline as the command line. The
// progress report that the CLI prints is captured and returned in the tool
// result, since stdout carries the protocol.
//
// # Error Handling
//
// Tool failures are returned as JSON-RPC error responses with:
//   - code: -32602 for invalid arguments, -32000 for a failed detection
//   - message: Human-readable error description
//   - data: The error, its pipeline kind, whether an input was missing, and
//     the captured report
//
// # Usage
//
//	srv := server.New(&server.PipelineDetector{Runner: runner}, defaults, version, log)
//	if err := srv.Run(ctx, os.Stdin, os.Stdout); err != nil {
//	    log.Fatal(err)
//	}
package server
