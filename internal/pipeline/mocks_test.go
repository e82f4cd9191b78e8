package pipeline

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/nhle/uni-helper/internal/llm"
	"github.com/nhle/uni-helper/internal/model"
	"github.com/nhle/uni-helper/internal/store"
)

// MockStore is a testify mock of Store.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetOrCreateClass(ctx context.Context, name string) (*model.Class, error) {
	args := m.Called(ctx, name)
	c, _ := args.Get(0).(*model.Class)
	return c, args.Error(1)
}

func (m *MockStore) GetClasses(ctx context.Context) ([]model.Class, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.Class), args.Error(1)
}

func (m *MockStore) CreateAssignment(ctx context.Context, a model.Assignment) (int64, error) {
	args := m.Called(ctx, a)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) UpcomingAssignments(
	ctx context.Context, filter store.AssignmentFilter,
) ([]model.Assignment, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]model.Assignment), args.Error(1)
}

func (m *MockStore) CreateNote(ctx context.Context, n model.Note) (int64, error) {
	args := m.Called(ctx, n)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) SearchNotes(ctx context.Context, filter store.NoteFilter) ([]model.Note, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]model.Note), args.Error(1)
}

func (m *MockStore) SetNoteFile(ctx context.Context, id int64, path string) error {
	args := m.Called(ctx, id, path)
	return args.Error(0)
}

func (m *MockStore) CreateAttachment(ctx context.Context, a model.AttachmentRecord) (int64, error) {
	args := m.Called(ctx, a)
	return args.Get(0).(int64), args.Error(1)
}

// fakeGenerator answers JSON prompts by matching the user prompt's
// first line.
type fakeGenerator struct {
	mu      sync.Mutex
	json    map[string]llm.Result
	text    string
	textErr error
	prompts []string
}

func ok(data string) llm.Result {
	return llm.Result{Status: llm.StatusOK, Data: []byte(data), Attempts: 1}
}

func (f *fakeGenerator) GenerateJSON(_ context.Context, system, user string, _ int) llm.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, user)
	for prefix, res := range f.json {
		if strings.HasPrefix(user, prefix) {
			return res
		}
	}
	return llm.Result{
		Status: llm.StatusParseFailed,
		Data:   mustJSON(llm.Fallback(system, user)),
	}
}

func (f *fakeGenerator) Generate(_ context.Context, _, user string, _ int, _ float64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, user)
	return f.text, f.textErr
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
