// Package config loads nornsd's structured configuration file: the
// global_settings section (sockets, worker count, staging directory) and
// the namespaces section (backends to register at startup).
package config
