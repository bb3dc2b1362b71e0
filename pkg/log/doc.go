/*
Package log provides structured logging for Cove using zerolog.

Every daemon (apiserver, scheduler, controller-manager, nodeagent,
serviceproxy) calls log.Init once at startup from its --log-level/--log-json
flags, then derives component-scoped child loggers with log.WithComponent
so that every line carries a "component" field for filtering.
*/
package log
