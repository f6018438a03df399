package runtime

// CommandHandler runs an intercepted or defined command.
type CommandHandler func(inv Invocation) error

// Host is what the loader needs from the host application.
type Host interface {
	// SourceFile executes one script file.
	SourceFile(path string) error

	// AddRuntimePath registers an extension's runtime root with the host's
	// module search.
	AddRuntimePath(dir string) error

	// Execute runs a hook code string.
	Execute(code string) error

	// DefineCommand registers handler under name, replacing any previous
	// definition.
	DefineCommand(name string, handler CommandHandler) error

	// ExecCommand dispatches a command line as if the user typed it.
	ExecCommand(line string) error

	// Notify shows an error message to the user.
	Notify(msg string)
}
