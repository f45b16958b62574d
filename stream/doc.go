// Package stream is the real-time inference streaming client.
//
// A Machine owns one session at a time. Start opens a WebSocket connection
// to the inference service, then a Scheduler captures frames at a fixed
// cadence and sends them as binary JPEG messages, never more than one in
// flight. Inbound envelopes update the session snapshot. Stop sends the
// "eos" sentinel and waits a bounded time for the session summary before
// closing.
//
// State machine:
//
//	idle -> connecting -> streaming -> stopping -> stopped
//	            |             |            |
//	            +-----------> error <------+
//
// idle, stopped and error are resting states; Start from any of them
// begins a fresh session.
package stream
