package trainer

// Schedule decides which steps log and which checkpoint and evaluate
type Schedule struct {
	LogEvery        int
	CheckpointEvery int
	MaxSteps        int
}

// ShouldLog reports whether step writes the status line and summaries
func (s Schedule) ShouldLog(step int) bool {
	return step%s.LogEvery == 0
}

// ShouldCheckpoint reports whether step saves a checkpoint and evaluates; the final step always does
func (s Schedule) ShouldCheckpoint(step int) bool {
	return (step+1)%s.CheckpointEvery == 0 || step+1 == s.MaxSteps
}
