package audit

// Variance derives the counted-vs-system delta. ok is false while the
// counted quantity has not been entered yet; the result is never cached, so
// it can't go stale when either operand changes.
func Variance(counted *float64, system float64) (float64, bool) {
	if counted == nil {
		return 0, false
	}
	return *counted - system, true
}
