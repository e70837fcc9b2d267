// Package janwidget implements the backend of a website chat widget.
//
// The module provides:
//   - Single-flight conversational turns over a streaming chat completions API
//   - Incremental decoding of event-stream replies into the trailing message
//   - Optional spoken replies through a text-to-speech API
//   - Signed connection URLs for real-time voice sessions
//   - An HTTP API with a per-conversation event feed (cmd/server)
//   - A terminal client sharing the same domain packages (cmd/widget-cli)
package janwidget
