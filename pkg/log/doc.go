/*
Package log provides structured logging for demobit using zerolog.

A single global Logger is configured once via Init and shared across
packages. Component loggers (WithComponent, WithReplica, WithStorage,
WithCommit, WithObject) attach the field that callers care about without
repeating it at every call site:

	repl := log.WithReplica(repo.UID())
	repl.Info().Str("storage_id", "notes").Msg("pull started")

JSONOutput controls whether logs are emitted as one JSON object per line
(production) or a human-readable console format (development).
*/
package log
