// Package endpoint owns the listener sockets nornsd exposes: the
// local Unix socket client requests arrive on, the restricted control
// socket used for administrative commands, and the TCP listener that
// accepts cross-node remote-transfer connections. Each accepted
// connection is handed to a pkg/session.Session running the same
// request pipeline regardless of which listener produced it.
package endpoint
