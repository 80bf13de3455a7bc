// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package alog provides leveled logging for the pipeline runtime. It is
// deliberately thin: time/date are left to the surrounding process
// supervisor by default, matching systemd's sd-daemon log-level prefix
// convention.
package alog

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/alumet-go/alumet/naming"
)

var logDateTime bool

var (
	DebugWriter io.Writer = os.Stderr
	InfoWriter  io.Writer = os.Stderr
	WarnWriter  io.Writer = os.Stderr
	ErrWriter   io.Writer = os.Stderr
)

var (
	DebugPrefix string = "<7>[DEBUG]    "
	InfoPrefix  string = "<6>[INFO]     "
	WarnPrefix  string = "<4>[WARNING]  "
	ErrPrefix   string = "<3>[ERROR]    "
)

var (
	debugLog *log.Logger = log.New(DebugWriter, DebugPrefix, 0)
	infoLog  *log.Logger = log.New(InfoWriter, InfoPrefix, 0)
	warnLog  *log.Logger = log.New(WarnWriter, WarnPrefix, log.Lshortfile)
	errLog   *log.Logger = log.New(ErrWriter, ErrPrefix, log.Llongfile)

	debugTimeLog *log.Logger = log.New(DebugWriter, DebugPrefix, log.LstdFlags)
	infoTimeLog  *log.Logger = log.New(InfoWriter, InfoPrefix, log.LstdFlags)
	warnTimeLog  *log.Logger = log.New(WarnWriter, WarnPrefix, log.LstdFlags|log.Lshortfile)
	errTimeLog   *log.Logger = log.New(ErrWriter, ErrPrefix, log.LstdFlags|log.Llongfile)
)

// SetLevel discards writers below lvl ("debug", "info", "warn", "err").
// Unknown values fall back to "debug".
func SetLevel(lvl string) {
	switch lvl {
	case "err", "fatal":
		WarnWriter = io.Discard
		fallthrough
	case "warn":
		InfoWriter = io.Discard
		fallthrough
	case "info":
		DebugWriter = io.Discard
	case "debug":
	default:
		fmt.Fprintf(os.Stderr, "alog: invalid log level %q, using \"debug\"\n", lvl)
		SetLevel("debug")
	}
}

// SetLogDateTime toggles the timestamp prefix on every log line.
func SetLogDateTime(v bool) { logDateTime = v }

func printStr(v ...any) string { return fmt.Sprint(v...) }

func Debug(v ...any) {
	if DebugWriter == io.Discard {
		return
	}
	out := printStr(v...)
	if logDateTime {
		debugTimeLog.Output(2, out)
	} else {
		debugLog.Output(2, out)
	}
}

func Debugf(format string, v ...any) { Debug(fmt.Sprintf(format, v...)) }

func Info(v ...any) {
	if InfoWriter == io.Discard {
		return
	}
	out := printStr(v...)
	if logDateTime {
		infoTimeLog.Output(2, out)
	} else {
		infoLog.Output(2, out)
	}
}

func Infof(format string, v ...any) { Info(fmt.Sprintf(format, v...)) }

func Warn(v ...any) {
	if WarnWriter == io.Discard {
		return
	}
	out := printStr(v...)
	if logDateTime {
		warnTimeLog.Output(2, out)
	} else {
		warnLog.Output(2, out)
	}
}

func Warnf(format string, v ...any) { Warn(fmt.Sprintf(format, v...)) }

func Error(v ...any) {
	out := printStr(v...)
	if logDateTime {
		errTimeLog.Output(2, out)
	} else {
		errLog.Output(2, out)
	}
}

func Errorf(format string, v ...any) { Error(fmt.Sprintf(format, v...)) }

// Element is a logger bound to a single pipeline element, prefixing every
// message with its fully qualified name so that interleaved source,
// transform and output logs stay attributable.
type Element struct {
	name naming.ElementName
}

// WithElement returns a logger that tags every message with name.
func WithElement(name naming.ElementName) Element {
	return Element{name: name}
}

func (e Element) Debugf(format string, v ...any) { Debugf("[%s] "+format, prepend(e.name, v)...) }
func (e Element) Infof(format string, v ...any)  { Infof("[%s] "+format, prepend(e.name, v)...) }
func (e Element) Warnf(format string, v ...any)  { Warnf("[%s] "+format, prepend(e.name, v)...) }
func (e Element) Errorf(format string, v ...any) { Errorf("[%s] "+format, prepend(e.name, v)...) }

func prepend(name naming.ElementName, v []any) []any {
	out := make([]any, 0, len(v)+1)
	out = append(out, name.String())
	out = append(out, v...)
	return out
}
