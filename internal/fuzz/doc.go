// Package fuzztests houses fuzz harnesses for the parts of the compiler that
// take untrusted input: transformer frames read from a child process, the
// native stylesheet checker and filename normalization. They guard against
// panics and hangs on arbitrary bytes.
package fuzztests
