package cli

// NewRootCmdForTest returns the root command backed by connect.
var NewRootCmdForTest = newRootCmd
