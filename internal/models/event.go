package models

import "time"

// TimestampLayout is the on-disk format of LogEvent timestamps.
const TimestampLayout = "2006-01-02 15:04:05"

// EventType is the fixed enumeration of recorded event kinds.
type EventType string

const (
	EventAppOpened      EventType = "App Opened"
	EventFolderOpened   EventType = "Folder Opened"
	EventFileModified   EventType = "File Modified"
	EventFileCreated    EventType = "File Created"
	EventFileDeleted    EventType = "File Deleted"
	EventFolderModified EventType = "Folder Modified"
	EventFolderCreated  EventType = "Folder Created"
	EventFolderDeleted  EventType = "Folder Deleted"

	// EventProcessStarted is never written by the sensors. Older stores used it
	// for process launches and the burst rule still counts it.
	EventProcessStarted EventType = "Process Started"
)

// LogEvent is one row of the append-only event log.
type LogEvent struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	EventType EventType `json:"eventType"`
	Details   string    `json:"details"`
}
