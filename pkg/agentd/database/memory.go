package database

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/nais/agentdeploy/pkg/agentd/deployment"
)

type document struct {
	handle     string
	seq        int
	created    deployment.Record
	amendments []deployment.Record
}

func (d *document) latest() deployment.Record {
	if len(d.amendments) == 0 {
		return d.created.Copy()
	}
	return d.amendments[len(d.amendments)-1].Copy()
}

// Memory is a Store that lives in process memory.
type Memory struct {
	lock      sync.Mutex
	documents map[string]*document
	ids       map[string]string
	seq       int
}

var _ Store = &Memory{}

func NewMemory() *Memory {
	return &Memory{
		documents: make(map[string]*document),
		ids:       make(map[string]string),
	}
}

func (m *Memory) Fetch(_ context.Context, filter Filter) ([]deployment.Record, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	docs := make([]*document, 0, len(m.documents))
	for _, doc := range m.documents {
		if filter.Match(doc.created) {
			docs = append(docs, doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].seq < docs[j].seq
	})

	records := make([]deployment.Record, 0, len(docs))
	for _, doc := range docs {
		record := doc.latest()
		record.Handle = doc.handle
		records = append(records, record)
	}
	return records, nil
}

func (m *Memory) Create(_ context.Context, record deployment.Record) (string, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if _, ok := m.ids[record.ID]; ok {
		return "", fmt.Errorf("%w: %s", ErrDuplicate, record.ID)
	}

	m.seq++
	doc := &document{
		handle:  uuid.New().String(),
		seq:     m.seq,
		created: record.Copy(),
	}
	doc.created.Handle = ""
	m.documents[doc.handle] = doc
	m.ids[record.ID] = doc.handle

	return doc.handle, nil
}

func (m *Memory) Amend(_ context.Context, handle string, record deployment.Record) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	doc, ok := m.documents[handle]
	if !ok {
		return fmt.Errorf("%w: handle %s", ErrNotFound, handle)
	}

	amendment := record.Copy()
	amendment.Handle = ""
	doc.amendments = append(doc.amendments, amendment)
	return nil
}

// Amendments returns the amendment history of a document, oldest first.
func (m *Memory) Amendments(handle string) []deployment.Record {
	m.lock.Lock()
	defer m.lock.Unlock()

	doc, ok := m.documents[handle]
	if !ok {
		return nil
	}

	amendments := make([]deployment.Record, len(doc.amendments))
	for i := range doc.amendments {
		amendments[i] = doc.amendments[i].Copy()
	}
	return amendments
}
