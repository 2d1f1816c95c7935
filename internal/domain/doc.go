/*
Package domain contains the core entities shared across the configuration
generator and the orchestration glue.

The central abstraction is Service: a named pool of replica endpoints owned
by an external orchestration layer. The generator consumes endpoint snapshots
through this interface and never mutates them, so generation stays a pure
transform from routing spec to configuration text.

RoutingSpec is an explicit two-variant union (single target vs. host-routed
multi target). Callers pick the variant up front; nothing in the generator
infers intent from the runtime shape of its arguments.
*/
package domain
