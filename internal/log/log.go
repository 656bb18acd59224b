// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package log

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/apex/log"
)

// EnvLevel names the environment variable holding the log level.
const EnvLevel = "TENNISBET_LOG"

// InitLogger sets up Apex with a custom handler and a log level from the
// TENNISBET_LOG env variable.
func InitLogger() {
	level := strings.ToUpper(os.Getenv(EnvLevel))
	if level == "" {
		level = "ERROR"
	}
	log.SetHandler(&CustomHandler{Writer: os.Stderr})
	if err := SetLevel(level); err != nil {
		log.SetLevel(log.ErrorLevel)
		log.WithError(err).Error("ignoring " + EnvLevel)
	}
}

// SetLevel changes the level at runtime, e.g. for --debug.
func SetLevel(level string) error {
	l, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		return err
	}
	log.SetLevel(l)
	return nil
}

// CustomHandler formats log messages on one line with their fields sorted
// after the message. Stdout would mix with query output, so it defaults to
// stderr.
type CustomHandler struct {
	Writer io.Writer
	now    func() time.Time
}

// HandleLog implements the log.Handler interface
func (h *CustomHandler) HandleLog(e *log.Entry) error {
	w := h.Writer
	if w == nil {
		w = os.Stderr
	}
	now := time.Now
	if h.now != nil {
		now = h.now
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %.1s %s", now().Format("2006-01-02 15:04:05"), strings.ToUpper(e.Level.String()), e.Message)

	names := e.Fields.Names()
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, " %s=%v", name, e.Fields.Get(name))
	}
	b.WriteByte('\n')

	_, err := io.WriteString(w, b.String())
	return err
}
