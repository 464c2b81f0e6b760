package console

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// ConsoleInstance is the process-wide console used by the package-level helpers.
var ConsoleInstance = &Console{
	Color: IsTTY(os.Stderr),
	Level: InfoLevel,
}

func SetLevel(level Level) {
	ConsoleInstance.Level = level
}

// SetOutput redirects stdout and stderr, mostly for tests.
func SetOutput(stdout, stderr io.Writer) {
	ConsoleInstance.Stdout = stdout
	ConsoleInstance.Stderr = stderr
}

func Debug(msg string) {
	ConsoleInstance.Debug(msg)
}

func Warn(msg string) {
	ConsoleInstance.Warn(msg)
}

func Error(msg string) {
	ConsoleInstance.Error(msg)
}

func Debugf(msg string, v ...interface{}) {
	ConsoleInstance.Debugf(msg, v...)
}

func Infof(msg string, v ...interface{}) {
	ConsoleInstance.Infof(msg, v...)
}

func Warnf(msg string, v ...interface{}) {
	ConsoleInstance.Warnf(msg, v...)
}

// Fatalf prints an error and exits with status 1.
func Fatalf(msg string, v ...interface{}) {
	ConsoleInstance.Fatalf(msg, v...)
}

// Output prints a line of primary command output to stdout.
func Output(s string) {
	ConsoleInstance.Output(s)
}

// ErrWriter is where subprocess and build output should be streamed.
func ErrWriter() io.Writer {
	return ConsoleInstance.ErrWriter()
}

// IsTTY reports whether f is a terminal, including Cygwin and MSYS ptys.
func IsTTY(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
