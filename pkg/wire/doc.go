/*
Package wire implements nornsd's framing and body codec (spec.md §4.1,
§6): an 8-byte big-endian length header followed by a body that is a
tagged union of every request and response variant named in spec.md
§4.3 and §4.7.

The schema is hand-rolled rather than generated (no IDL compiler, no
gRPC) because the session pipeline spec.md §4.1 and §5 require —
suspend on header, suspend on body, capture credentials, dispatch, write
response, close write half — has no seam in a multiplexed RPC transport.
Encode never produces a partial message; Decode of a malformed body
yields errs.BadRequest rather than panicking.
*/
package wire
