package service

import (
	"context"
	"sync"

	"sharedpad/broadcast"
	"sharedpad/internal/document/model"
	"sharedpad/store"
)

// DocumentService ties the write path to the broadcast path. The store and
// the bus keep separate locks and neither is held while calling the other.
type DocumentService struct {
	Store *store.DocumentStore
	Bus   *broadcast.UpdateBus

	// writeMu orders Update+Publish pairs so subscribers see writes in
	// commit order and a caught-up subscriber ends on the stored text.
	// Neither call blocks, so holding it across both is cheap.
	writeMu sync.Mutex
}

func NewDocumentService(st *store.DocumentStore, bus *broadcast.UpdateBus) *DocumentService {
	return &DocumentService{Store: st, Bus: bus}
}

func (s *DocumentService) Content() string {
	return s.Store.Get()
}

func (s *DocumentService) Snapshot() store.Snapshot {
	return s.Store.Snapshot()
}

// Save overwrites the document and notifies subscribers. Broadcast problems
// never fail the write.
func (s *DocumentService) Save(text string) store.Snapshot {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	snap := s.Store.Update(text)
	s.Bus.Publish(text)
	return snap
}

func (s *DocumentService) Subscribe(ctx context.Context) (*broadcast.Subscription, error) {
	return s.Bus.Subscribe(ctx)
}

func (s *DocumentService) Status() model.Status {
	snap := s.Store.Snapshot()
	return model.Status{
		Revision:    snap.Revision,
		Length:      len(snap.Text),
		Subscribers: s.Bus.Len(),
		UpdatedAt:   snap.UpdatedAt,
	}
}
