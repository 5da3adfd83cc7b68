package testutil

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"jch-go/internal/history"
)

// MockHost is an in-memory history.Host. Safe for concurrent use.
type MockHost struct {
	mu      sync.Mutex
	objects map[string][]byte
	idgen   *StubIDGenerator

	// Recorder, when set, receives a Created record for every object
	// created through CreateObject.
	Recorder *history.Recorder

	// FailCreate makes CreateObject return an error.
	FailCreate bool

	// BeforeCreate, when set, runs at the start of every CreateObject
	// call, before the name is checked.
	BeforeCreate func(name string)

	// Created lists the names passed to CreateObject, in call order.
	Created []string
}

var _ history.Host = (*MockHost)(nil)

// NewMockHost creates a MockHost holding the given live object names.
func NewMockHost(names ...string) *MockHost {
	h := &MockHost{objects: make(map[string][]byte), idgen: NewStubIDGenerator()}
	for _, n := range names {
		h.objects[n] = []byte("<project/>")
	}
	return h
}

func (h *MockHost) HasObject(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.objects[name]
	return ok
}

func (h *MockHost) CreateObject(name string, content []byte) (*history.ObjectHandle, error) {
	if h.BeforeCreate != nil {
		h.BeforeCreate(name)
	}
	h.mu.Lock()
	h.Created = append(h.Created, name)
	if h.FailCreate {
		h.mu.Unlock()
		return nil, errors.New("mock host: create failed")
	}
	if _, ok := h.objects[name]; ok {
		h.mu.Unlock()
		return nil, fmt.Errorf("mock host: object exists: %s", name)
	}
	h.objects[name] = append([]byte(nil), content...)
	h.mu.Unlock()

	if h.Recorder != nil {
		if _, err := h.Recorder.Record(history.RootJobs, name, history.OpCreated, history.Actor{}, content); err != nil {
			return nil, err
		}
	}
	return &history.ObjectHandle{ID: h.idgen.New(), Name: name, URL: "/job/" + name + "/"}, nil
}

// Content returns the live configuration of name, or nil.
func (h *MockHost) Content(name string) []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.objects[name]
}

// Names returns the live object names in sorted order.
func (h *MockHost) Names() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, 0, len(h.objects))
	for n := range h.objects {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
