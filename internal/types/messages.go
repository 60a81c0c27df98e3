package types

type CrashMessage struct {
	CrashFile string // path to the crash file on local filesystem
	Instance  string // afl instance that found it ("master", "slave2", ...)
	Session   *Session
}
