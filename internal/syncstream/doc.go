// Package syncstream implements the line framing of sync progress streams.
//
// Each event travels as one line "data: <json>" followed by a blank line.
// Lines without the "data: " prefix carry no meaning. The Decoder tolerates
// arbitrary chunking of the byte stream, skips frames whose JSON cannot be
// decoded, and skips frames whose type is outside the closed event set.
package syncstream
