package internaldefs

import (
	goStage "github.com/MrEthical07/goStage"
)

// CounterDef names one exported counter.
type CounterDef struct {
	ID   goStage.MetricID
	Name string
	Help string
}

// HistogramDef names one exported histogram.
type HistogramDef struct {
	ID   goStage.MetricID
	Name string
	Help string
}

// CounterDefs lists every client counter in MetricID order.
var CounterDefs = []CounterDef{
	{ID: goStage.MetricLoginSuccess, Name: "gostage_login_success_total", Help: "Successful logins."},
	{ID: goStage.MetricLoginFailure, Name: "gostage_login_failure_total", Help: "Failed logins."},
	{ID: goStage.MetricLoginInvalidResponse, Name: "gostage_login_invalid_response_total", Help: "Logins rejected for a missing or undecodable credential."},
	{ID: goStage.MetricRegisterSuccess, Name: "gostage_register_success_total", Help: "Successful registrations."},
	{ID: goStage.MetricRegisterFailure, Name: "gostage_register_failure_total", Help: "Failed registrations."},
	{ID: goStage.MetricRestoreAuthenticated, Name: "gostage_restore_authenticated_total", Help: "Restores that resumed a valid session."},
	{ID: goStage.MetricRestoreEmpty, Name: "gostage_restore_empty_total", Help: "Restores that found no stored session."},
	{ID: goStage.MetricRestorePurged, Name: "gostage_restore_purged_total", Help: "Restores that purged a partial, malformed or expired session."},
	{ID: goStage.MetricLogout, Name: "gostage_logout_total", Help: "Explicit logouts."},
	{ID: goStage.MetricSessionExpired, Name: "gostage_session_expired_total", Help: "Sessions ended by a server 401."},
	{ID: goStage.MetricProfileSync, Name: "gostage_profile_sync_total", Help: "Profile refreshes from the server."},
	{ID: goStage.MetricTransitionApplied, Name: "gostage_transition_applied_total", Help: "Stage transitions accepted by the server."},
	{ID: goStage.MetricTransitionRejected, Name: "gostage_transition_rejected_total", Help: "Stage transitions rejected locally or by the server."},
	{ID: goStage.MetricGuardAllow, Name: "gostage_guard_allow_total", Help: "Access guard decisions that allowed."},
	{ID: goStage.MetricGuardRedirect, Name: "gostage_guard_redirect_total", Help: "Access guard decisions that redirected to login."},
}

// HistogramDefs lists the client histograms.
var HistogramDefs = []HistogramDef{
	{ID: goStage.MetricLoginLatency, Name: "gostage_login_latency_seconds", Help: "Login round-trip latency."},
}

// HistogramBounds are the upper bounds of the login latency buckets, in
// seconds.
var HistogramBounds = []string{
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"2.5",
	"5",
	"+Inf",
}

// NormalizeBuckets copies raw into a fixed array, zero-filling missing
// buckets and dropping extra ones.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
