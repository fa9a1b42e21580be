package store

import (
	"github.com/wireterm/termstation/internal/session"
)

// This file adapts Store's gorm-shaped SessionRecord rows to
// session.PersistedSession, so Store satisfies session.PersistedSessionReader
// structurally without internal/session importing internal/store.

func toPersisted(rec SessionRecord) session.PersistedSession {
	p := session.PersistedSession{
		ID:        rec.ID,
		Type:      session.Type(rec.Type),
		ProjectID: rec.ProjectID,
		Status:    session.Status(rec.Status),
		ExitCode:  rec.ExitCode,
	}
	switch p.Type {
	case session.TypeRemoteShell:
		var d session.RemoteDescriptor
		if err := DecodeDescriptor(rec.Descriptor, &d); err == nil {
			p.RemoteDesc = &d
		}
	default:
		var d session.LocalDescriptor
		if err := DecodeDescriptor(rec.Descriptor, &d); err == nil {
			p.LocalDesc = &d
		}
	}
	return p
}

func fromPersisted(p session.PersistedSession) (SessionRecord, error) {
	var blob string
	var err error
	if p.RemoteDesc != nil {
		blob, err = EncodeDescriptor(p.RemoteDesc)
	} else if p.LocalDesc != nil {
		blob, err = EncodeDescriptor(p.LocalDesc)
	}
	if err != nil {
		return SessionRecord{}, err
	}
	return SessionRecord{
		ID:         p.ID,
		Type:       string(p.Type),
		ProjectID:  p.ProjectID,
		Status:     string(p.Status),
		Descriptor: blob,
		ExitCode:   p.ExitCode,
	}, nil
}

// ListSessionsByProject implements session.PersistedSessionReader.
func (s *Store) ListSessionsByProject(projectID string) ([]session.PersistedSession, error) {
	recs, err := s.ListSessionRecordsByProject(projectID)
	if err != nil {
		return nil, err
	}
	out := make([]session.PersistedSession, 0, len(recs))
	for _, r := range recs {
		out = append(out, toPersisted(r))
	}
	return out, nil
}

// ListAllSessions implements session.PersistedSessionReader.
func (s *Store) ListAllSessions() ([]session.PersistedSession, error) {
	recs, err := s.ListAllSessionRecords()
	if err != nil {
		return nil, err
	}
	out := make([]session.PersistedSession, 0, len(recs))
	for _, r := range recs {
		out = append(out, toPersisted(r))
	}
	return out, nil
}

// SaveSession implements session.PersistedSessionReader.
func (s *Store) SaveSession(p session.PersistedSession) error {
	rec, err := fromPersisted(p)
	if err != nil {
		return err
	}
	return s.UpsertSession(rec)
}
