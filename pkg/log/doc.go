/*
Package log provides structured logging for nornsd using zerolog.

A single global Logger is initialized once via Init and then narrowed
into per-component, per-session, or per-task child loggers so that every
log line carries the context needed to correlate it with a request.

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
	sessionLog := log.WithSession(sessionID)
	sessionLog.Info().Str("request", "iotask_submit").Msg("dispatched")
*/
package log
