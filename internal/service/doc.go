// Package service wires the components of a single run together.
//
// Data flow:
//
//	Job --> runner.Runner --> ExecutionResult --> echo to own stdout/stderr
//	                                  |
//	                        policy.ShouldSend
//	                                  | send
//	                      compose.Composer --> OutgoingMessage
//	                                  |
//	                         Dispatcher, once per recipient
//
// Invariants:
//   - The command runs exactly once per Do call.
//   - Captured output is always echoed, the mail is conditional.
//   - Buffers are released on every path, including a decode error.
//   - The returned exit code is the one of the command, never the one of
//     the mail delivery.
package service
