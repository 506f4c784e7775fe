package ciutil

import "os"

// Parallel test runners split a suite into channels that share one database.
// The runner sets these variables on the worker processes.
const (
	// EnvTestIsFirstOnChannel is set on the first process of a channel. Its
	// presence forces the database to be (re)initialized.
	EnvTestIsFirstOnChannel = "ENV_TEST_IS_FIRST_ON_CHANNEL"

	// EnvTestChannelReadable is set when other processes may still read the
	// channel database, so it must not be considered ready for reuse.
	EnvTestChannelReadable = "ENV_TEST_CHANNEL_READABLE"
)

// Channel describes the parallel test channel the current process runs on.
// Only the presence of the variables matters, not their value.
type Channel struct {
	FirstOnChannel bool
	Readable       bool
}

// ChannelFromEnv reads the channel flags from the process environment.
func ChannelFromEnv() Channel {
	_, first := os.LookupEnv(EnvTestIsFirstOnChannel)
	_, readable := os.LookupEnv(EnvTestChannelReadable)

	return Channel{
		FirstOnChannel: first,
		Readable:       readable,
	}
}
