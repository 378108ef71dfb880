// Package registry holds the daemon's job and process registries: the
// in-memory record of which jobs are known and which OS processes act
// on their behalf. Registry state is rebuilt from scratch on restart;
// nothing here is persisted.
package registry
