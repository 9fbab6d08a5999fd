package mirror

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"
)

// MemoryStore is a non-durable Store kept entirely in process memory.
// It is used by tests and by dry runs.
type MemoryStore struct {
	lock       sync.Mutex
	messages   map[SourceID]*MessageRecord
	edits      map[SourceID][]EditEvent
	holds      map[SourceID]struct{}
	checkpoint SourceID
	now        func() time.Time
}

var (
	_ Store        = (*MemoryStore)(nil)
	_ HistoryStore = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		messages: make(map[SourceID]*MessageRecord),
		edits:    make(map[SourceID][]EditEvent),
		holds:    make(map[SourceID]struct{}),
		now:      time.Now,
	}
}

func (s *MemoryStore) Put(_ context.Context, rec *MessageRecord) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if _, ok := s.messages[rec.SourceID]; ok {
		return ErrConflict
	}
	cp := *rec
	s.messages[rec.SourceID] = &cp
	delete(s.holds, rec.SourceID)
	return nil
}

func (s *MemoryStore) ResolveDestID(_ context.Context, id SourceID) (DestID, bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	rec, ok := s.messages[id]
	if !ok || rec.DestID == 0 {
		return 0, false, nil
	}
	return rec.DestID, true, nil
}

func (s *MemoryStore) MarkEdited(_ context.Context, id SourceID, newContent string, notificationDestID DestID, editedAt time.Time) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	rec, ok := s.messages[id]
	if !ok {
		return ErrNotFound
	}
	if editedAt.IsZero() {
		editedAt = s.now()
	}
	newContent = TruncateContent(newContent)
	s.edits[id] = append(s.edits[id], EditEvent{
		SourceID:           id,
		EditedAt:           editedAt,
		OldContent:         rec.Content,
		NewContent:         newContent,
		NotificationDestID: notificationDestID,
	})
	rec.Content = newContent
	rec.IsEdited = true
	return nil
}

func (s *MemoryStore) MarkDeleted(_ context.Context, id SourceID) (bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	rec, ok := s.messages[id]
	if !ok {
		return false, nil
	}
	rec.IsDeleted = true
	return true, nil
}

func (s *MemoryStore) Exists(_ context.Context, id SourceID) (bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	_, ok := s.messages[id]
	return ok, nil
}

func (s *MemoryStore) GetMessage(_ context.Context, id SourceID) (*MessageRecord, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	rec, ok := s.messages[id]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) Checkpoint(_ context.Context) (SourceID, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.checkpoint, nil
}

func (s *MemoryStore) AdvanceCheckpoint(_ context.Context, id SourceID) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	for held := range s.holds {
		if held <= id {
			id = held - 1
		}
	}
	if id > s.checkpoint {
		s.checkpoint = id
	}
	return nil
}

func (s *MemoryStore) HoldCheckpoint(_ context.Context, id SourceID) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if id > s.checkpoint {
		s.holds[id] = struct{}{}
	}
	return nil
}

func (s *MemoryStore) CheckpointHolds(_ context.Context) ([]SourceID, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	ids := slices.Collect(maps.Keys(s.holds))
	slices.Sort(ids)
	return ids, nil
}

func (s *MemoryStore) ReleaseCheckpointHold(_ context.Context, id SourceID) (bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	_, ok := s.holds[id]
	delete(s.holds, id)
	return ok, nil
}

func (s *MemoryStore) SetCheckpoint(_ context.Context, id SourceID) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.checkpoint = id
	return nil
}

func (s *MemoryStore) UnresolvedReplies(_ context.Context, target SourceID) ([]SourceID, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	var ids []SourceID
	for id, rec := range s.messages {
		if rec.ReplyToSource == target && rec.ReplyToDest == 0 {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *MemoryStore) AllUnresolvedReplies(_ context.Context) ([]ReplyLink, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	var links []ReplyLink
	for id, rec := range s.messages {
		if rec.ReplyToSource != 0 && rec.ReplyToDest == 0 {
			links = append(links, ReplyLink{SourceID: id, ReplyToSource: rec.ReplyToSource})
		}
	}
	slices.SortFunc(links, func(a, b ReplyLink) int { return cmp.Compare(a.SourceID, b.SourceID) })
	return links, nil
}

func (s *MemoryStore) SetReplyDest(_ context.Context, id SourceID, replyToDest DestID) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	rec, ok := s.messages[id]
	if !ok {
		return ErrNotFound
	}
	if rec.ReplyToDest == 0 {
		rec.ReplyToDest = replyToDest
	}
	return nil
}

func (s *MemoryStore) EditHistory(_ context.Context, id SourceID) ([]EditEvent, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return slices.Clone(s.edits[id]), nil
}

func (s *MemoryStore) ReplyChain(_ context.Context, id SourceID, maxDepth int) ([]*MessageRecord, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	var chain []*MessageRecord
	seen := make(map[SourceID]bool)
	for cur := id; cur != 0 && len(chain) < maxDepth && !seen[cur]; {
		rec, ok := s.messages[cur]
		if !ok {
			break
		}
		seen[cur] = true
		cp := *rec
		chain = append(chain, &cp)
		cur = rec.ReplyToSource
	}
	slices.Reverse(chain)
	return chain, nil
}

func (s *MemoryStore) Stats(_ context.Context) (*Stats, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	st := &Stats{LastProcessed: s.checkpoint}
	for _, rec := range s.messages {
		st.TotalMessages++
		switch rec.Sender {
		case OriginSelf:
			st.SelfMessages++
		case OriginPeer:
			st.PeerMessages++
		}
		if rec.IsEdited {
			st.EditedMessages++
		}
		if rec.IsDeleted {
			st.DeletedMessages++
		}
		if rec.HasMedia {
			st.MediaMessages++
		}
		if rec.WasSelfDestructing {
			st.SelfDestructing++
		}
		if rec.ReplyToSource != 0 && rec.ReplyToDest == 0 {
			st.UnresolvedReplies++
		}
	}
	for _, events := range s.edits {
		st.EditEvents += len(events)
	}
	return st, nil
}
