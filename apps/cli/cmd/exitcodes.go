package cmd

// Exit codes for the webwalk CLI
const (
	// ExitSuccess indicates all steps passed
	ExitSuccess = 0

	// ExitStepFailure indicates one or more steps failed
	ExitStepFailure = 1

	// ExitUsageError indicates invalid usage or a file that failed to load
	ExitUsageError = 2

	// ExitThresholdViolation indicates a stress threshold was violated
	ExitThresholdViolation = 3

	// ExitInterrupted indicates the run was cut short by SIGINT
	ExitInterrupted = 130
)
