// Package playerctl observes local players by running the playerctl helper.
// It is the fallback for sessions where the observer cannot talk to the
// session bus directly.
package playerctl
