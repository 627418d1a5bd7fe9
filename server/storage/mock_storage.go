package storage

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockStorage implements the Storage interface for testing
type MockStorage struct {
	mock.Mock
}

var _ Storage = (*MockStorage)(nil)

func (m *MockStorage) GetUser(ctx context.Context, userID int64) (*User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockStorage) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockStorage) FindUserByUsername(ctx context.Context, username string) (*User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockStorage) CreateUser(ctx context.Context, user *User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockStorage) GetCalendar(ctx context.Context, calendarID int64) (*Calendar, error) {
	args := m.Called(ctx, calendarID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Calendar), args.Error(1)
}

func (m *MockStorage) DefaultCalendar(ctx context.Context, userID int64) (*Calendar, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Calendar), args.Error(1)
}

func (m *MockStorage) ListCalendars(ctx context.Context, userID int64) ([]*Calendar, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]*Calendar), args.Error(1)
}

func (m *MockStorage) CreateCalendar(ctx context.Context, calendar *Calendar) error {
	return m.Called(ctx, calendar).Error(0)
}

func (m *MockStorage) GetEvent(ctx context.Context, eventID int64) (*Event, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Event), args.Error(1)
}

func (m *MockStorage) ListEvents(ctx context.Context, opts ListOptions) ([]*Event, error) {
	args := m.Called(ctx, opts)
	return args.Get(0).([]*Event), args.Error(1)
}

func (m *MockStorage) CreateEvent(ctx context.Context, event *Event) error {
	return m.Called(ctx, event).Error(0)
}

func (m *MockStorage) UpdateEvent(ctx context.Context, event *Event) error {
	return m.Called(ctx, event).Error(0)
}

func (m *MockStorage) DeleteEvent(ctx context.Context, eventID int64) error {
	return m.Called(ctx, eventID).Error(0)
}

// --- Helper methods for creating test data ---

// NewMockUser creates a test User with a default calendar
func NewMockUser(id int64, username string) (*User, *Calendar) {
	user := &User{
		ID:          id,
		Username:    username,
		Email:       username + "@example.com",
		DisplayName: username,
	}
	cal := &Calendar{
		ID:      id * 100,
		UserID:  id,
		Name:    username,
		Default: true,
	}
	return user, cal
}

// NewMockEvent creates a plain test event in a calendar
func NewMockEvent(id, calendarID int64, title string, start, end time.Time) *Event {
	return &Event{
		ID:         id,
		UID:        "event-uid-" + title,
		CalendarID: calendarID,
		Title:      title,
		Start:      start,
		End:        end,
		Created:    start,
		Modified:   start,
	}
}

// --- Convenience methods for setting up common test scenarios ---

// SetupUser registers lookups for a user and its default calendar.
func (m *MockStorage) SetupUser(user *User, cal *Calendar) {
	m.On("GetUser", mock.Anything, user.ID).Return(user, nil)
	m.On("FindUserByEmail", mock.Anything, user.Email).Return(user, nil)
	m.On("FindUserByUsername", mock.Anything, user.Username).Return(user, nil)
	m.On("GetCalendar", mock.Anything, cal.ID).Return(cal, nil)
	m.On("DefaultCalendar", mock.Anything, user.ID).Return(cal, nil)
	m.On("ListCalendars", mock.Anything, user.ID).Return([]*Calendar{cal}, nil)
}

// AddEvent registers a lookup for an event.
func (m *MockStorage) AddEvent(event *Event) {
	m.ExpectedCalls = removeMatchingCalls(m.ExpectedCalls, "GetEvent", event.ID)
	m.On("GetEvent", mock.Anything, event.ID).Return(event, nil)
}

// Helper to remove existing mock calls that match a method and the argument
// after the context
func removeMatchingCalls(calls []*mock.Call, method string, arg interface{}) []*mock.Call {
	result := make([]*mock.Call, 0, len(calls))
	for _, call := range calls {
		if call.Method == method && len(call.Arguments) > 1 && call.Arguments[1] == arg {
			continue
		}
		result = append(result, call)
	}
	return result
}
