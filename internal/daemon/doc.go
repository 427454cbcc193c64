// Package daemon wires notiqd together. It connects the push transport to the
// queue manager, the manager to the presenter and history store, and keeps
// configuration and preferences hot-reloaded.
package daemon
