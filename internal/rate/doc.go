// Package rate throttles failed logins on the stage server with fixed-window
// Redis counters (INCR, then EXPIRE on the first hit of a window).
//
// Keys, under the configured prefix:
//   - login:<email>   failed logins per account
//   - login-ip:<ip>   failed logins per client address
package rate
