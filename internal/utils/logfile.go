// Package utils contains small helpers shared across the server.
package utils

import (
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"
)

const (
	MessageLogFile = "messages.log"
	ErrorLogFile   = "error.log"
)

var logFileMu sync.Mutex

// AppendLog appends a timestamped JSON line to the given log file.
// Failures are reported on stderr but never propagated; audit logging
// must not take the request down with it.
func AppendLog(file string, entry map[string]interface{}) {
	if entry == nil {
		entry = map[string]interface{}{}
	}
	entry["timestamp"] = time.Now().Format(time.RFC3339)

	line, err := json.Marshal(entry)
	if err != nil {
		log.Printf("❌ Error serializing log entry: %v", err)
		return
	}

	logFileMu.Lock()
	defer logFileMu.Unlock()

	f, err := os.OpenFile(file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("❌ Error opening %s: %v", file, err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		log.Printf("❌ Error writing %s: %v", file, err)
	}
}

// LogSentMessage records an outbound API message in the audit log.
func LogSentMessage(phone, message, status string) {
	AppendLog(MessageLogFile, map[string]interface{}{
		"number":  phone,
		"message": message,
		"status":  status,
	})
}

// LogError records a server error in the error log.
func LogError(context string, err error) {
	entry := map[string]interface{}{"context": context}
	if err != nil {
		entry["error"] = err.Error()
	}
	AppendLog(ErrorLogFile, entry)
}
