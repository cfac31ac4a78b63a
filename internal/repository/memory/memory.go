// Package memory holds in-process repositories for development runs without a
// database and for tests. They follow the same contracts as the PostgreSQL ones.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"thesiscert/internal/errs"
	"thesiscert/internal/model"
	"thesiscert/internal/repository"
)

// ThesisStore is an in-memory repository.ThesisRepository.
type ThesisStore struct {
	mu     sync.RWMutex
	rows   map[string]*model.Thesis
	events map[string][]model.ThesisEvent
}

var _ repository.ThesisRepository = (*ThesisStore)(nil)

func NewThesisStore() *ThesisStore {
	return &ThesisStore{
		rows:   make(map[string]*model.Thesis),
		events: make(map[string][]model.ThesisEvent),
	}
}

func (s *ThesisStore) Create(ctx context.Context, t *model.Thesis) (*model.Thesis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if _, ok := s.rows[t.ID]; ok {
		return nil, errs.ErrDuplicate
	}
	for _, r := range s.rows {
		if r.DeletedAt == nil && r.Digest == t.Digest {
			return nil, errs.ErrDuplicate
		}
	}
	row := t.Clone()
	if row.Version == 0 {
		row.Version = 1
	}
	s.rows[row.ID] = row
	return row.Clone(), nil
}

func (s *ThesisStore) FindByID(ctx context.Context, id string) (*model.Thesis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rows[id]
	if !ok || r.DeletedAt != nil {
		return nil, errs.ErrNotFound
	}
	return r.Clone(), nil
}

func (s *ThesisStore) FindByDigest(ctx context.Context, digest string) (*model.Thesis, error) {
	return s.findOne(func(t *model.Thesis) bool { return t.Digest == digest })
}

func (s *ThesisStore) FindByTxHash(ctx context.Context, txHash string) (*model.Thesis, error) {
	return s.findOne(func(t *model.Thesis) bool { return t.TxHash != "" && t.TxHash == txHash })
}

func (s *ThesisStore) findOne(match func(*model.Thesis) bool) (*model.Thesis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *model.Thesis
	for _, r := range s.rows {
		if r.DeletedAt != nil || !match(r) {
			continue
		}
		if found != nil {
			return nil, errs.ErrDuplicate
		}
		found = r
	}
	if found == nil {
		return nil, errs.ErrNotFound
	}
	return found.Clone(), nil
}

func (s *ThesisStore) List(ctx context.Context, f repository.ThesisFilter) (*repository.PageResult[model.Thesis], error) {
	s.mu.RLock()
	items := make([]model.Thesis, 0, len(s.rows))
	for _, r := range s.rows {
		if r.DeletedAt != nil {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.InstitutionID != "" && r.InstitutionID != f.InstitutionID {
			continue
		}
		if f.UploadedBy != "" && r.UploadedBy != f.UploadedBy {
			continue
		}
		items = append(items, *r.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID > items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	total := len(items)
	start := min(f.Page.Offset, total)
	end := total
	if f.Page.Limit > 0 {
		end = min(start+f.Page.Limit, total)
	}
	return &repository.PageResult[model.Thesis]{Items: items[start:end], Total: total}, nil
}

func (s *ThesisStore) Update(ctx context.Context, t *model.Thesis, ev *model.ThesisEvent) (*model.Thesis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.rows[t.ID]
	if !ok || cur.DeletedAt != nil {
		return nil, errs.ErrNotFound
	}
	if cur.Version != t.Version {
		return nil, errs.ErrVersionConflict
	}
	if t.TxHash != "" {
		for id, r := range s.rows {
			if id != t.ID && r.TxHash == t.TxHash {
				return nil, errs.ErrDuplicate
			}
		}
	}

	row := t.Clone()
	row.Version++
	s.rows[row.ID] = row
	if ev != nil {
		e := *ev
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		s.events[row.ID] = append(s.events[row.ID], e)
	}
	return row.Clone(), nil
}

func (s *ThesisStore) Events(ctx context.Context, thesisID string) ([]model.ThesisEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.ThesisEvent(nil), s.events[thesisID]...), nil
}

func (s *ThesisStore) SoftDelete(ctx context.Context, id string, version int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.rows[id]
	if !ok || cur.DeletedAt != nil {
		return errs.ErrNotFound
	}
	if cur.Version != version {
		return errs.ErrVersionConflict
	}
	cur.DeletedAt = &at
	cur.Version++
	return nil
}

// InstitutionStore is an in-memory repository.InstitutionRepository.
type InstitutionStore struct {
	mu   sync.RWMutex
	rows map[string]model.Institution
}

var _ repository.InstitutionRepository = (*InstitutionStore)(nil)

// NewInstitutionStore returns a store seeded with insts.
func NewInstitutionStore(insts ...model.Institution) *InstitutionStore {
	s := &InstitutionStore{rows: make(map[string]model.Institution)}
	for _, i := range insts {
		s.rows[i.ID] = i
	}
	return s
}

func (s *InstitutionStore) FindByID(ctx context.Context, id string) (*model.Institution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.rows[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &i, nil
}

func (s *InstitutionStore) Upsert(ctx context.Context, inst *model.Institution) (*model.Institution, error) {
	if inst.ID == "" {
		return nil, errs.Validation("institution id is required")
	}
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	row := *inst
	if prev, ok := s.rows[row.ID]; ok {
		row.CreatedAt = prev.CreatedAt
	} else {
		row.CreatedAt = now
	}
	row.UpdatedAt = now
	s.rows[row.ID] = row
	return &row, nil
}
