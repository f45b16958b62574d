package types

// Version is the canonical project version.
// The CLI, the recorded dataset layout and the session-completed event all
// report this version.
const Version = "0.3.0"

// ContractVersion is the version stamped on recorded records and published
// session events. It moves in lockstep with Version.
const ContractVersion = Version

// StreamPath is the fixed path of the inference stream endpoint.
const StreamPath = "/v1/infer/stream"

// EOSSentinel is the text message that tells the server no further frames
// will follow.
const EOSSentinel = "eos"
