// Package mpris observes local media players through the MPRIS D-Bus
// interface on the session bus, and forwards their PropertiesChanged signals
// so the sync loop can react before its next poll.
package mpris
