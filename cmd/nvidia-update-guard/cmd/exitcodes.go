package cmd

// Process exit codes. Boot scripts and systemd units key off these.
const (
	// ExitOK means the run completed, including any module reload or restart request.
	ExitOK = 0
	// ExitFailure means a step failed and the packages were held again.
	ExitFailure = 1
	// ExitUsage means the command line could not be parsed.
	ExitUsage = 2
	// ExitHoldLost means the driver packages could not be held again and may float.
	ExitHoldLost = 3
)
