package store

import "time"

// Project groups sessions under a working directory / workspace.
type Project struct {
	ID        string `gorm:"primaryKey"`
	Name      string
	Path      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SessionRecord is the persisted shadow of a session.Session: enough to
// reattach a session across a process restart without re-deriving state
// from the live ShellHost.
type SessionRecord struct {
	ID         string `gorm:"primaryKey"`
	Type       string
	ProjectID  string
	Status     string
	Descriptor string // JSON-serialized session.LocalDescriptor or session.RemoteDescriptor
	ExitCode   *int
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ClosedAt   *time.Time
}

// BufferRecord is one session's persisted scrollback snapshot.
type BufferRecord struct {
	SessionID  string `gorm:"primaryKey"`
	Content    string
	TotalLines int
	LastFlush  time.Time
}

// Note is a free-form annotation attached to a project, carried over from
// the ambient project/notes surface the spec keeps in scope for the shared
// local store (the CRUD handlers over it are out of scope, the table is
// not).
type Note struct {
	ID        string `gorm:"primaryKey"`
	ProjectID string
	Body      string
	CreatedAt time.Time
	UpdatedAt time.Time
}
