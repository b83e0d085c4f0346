// Package logging provides the leveled loggers shared by the commands.
package logging

import (
	"io"
	"log"
)

// Logger is a set of prefixed loggers writing to one destination.
type Logger struct {
	Debug *log.Logger
	Info  *log.Logger
	Req   *log.Logger
	Warn  *log.Logger
	Error *log.Logger
}

// New returns loggers writing to w. Debug output is dropped unless debug is set.
func New(w io.Writer, debug bool) *Logger {
	dw := io.Discard
	if debug {
		dw = w
	}
	return &Logger{
		Debug: log.New(dw, "[debug] ", log.Lshortfile|log.Ldate|log.Ltime),
		Info:  log.New(w, "[info] ", log.Ldate|log.Ltime),
		Req:   log.New(w, "[req] ", log.Ldate|log.Ltime),
		Warn:  log.New(w, "[warn] ", log.Ldate|log.Ltime),
		Error: log.New(w, "[error] ", log.Lshortfile|log.Ldate|log.Ltime),
	}
}

// Discard returns loggers that write nothing.
func Discard() *Logger {
	return New(io.Discard, false)
}
