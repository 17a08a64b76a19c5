// Package inmemdb implements the core repositories in memory. It backs
// unit tests and local hacking; semantics (unique constraints, atomic
// conditional updates) mirror the PostgreSQL implementation.
package inmemdb

import (
	"sync"

	"github.com/google/uuid"

	"github.com/studentbuddy/backend/core/activation"
	"github.com/studentbuddy/backend/core/mentor"
	"github.com/studentbuddy/backend/core/notification"
	"github.com/studentbuddy/backend/core/student"
	"github.com/studentbuddy/backend/core/test"
	"github.com/studentbuddy/backend/core/todo"
	"github.com/studentbuddy/backend/core/user"
)

type DB struct {
	mu sync.RWMutex

	users       map[string]user.User
	profiles    map[string]student.Profile // by user ID
	tests       map[string]test.Test
	attempts    map[string]test.Attempt
	mentors     map[string]mentor.Mentor
	activations map[string]mentor.Activation
	chat        []mentor.ChatMessage
	codes       map[string]activation.Code
	notifs      map[string]notification.Notification
	todos       map[string]todo.Todo
}

func NewDB() *DB {
	return &DB{
		users:       make(map[string]user.User),
		profiles:    make(map[string]student.Profile),
		tests:       make(map[string]test.Test),
		attempts:    make(map[string]test.Attempt),
		mentors:     make(map[string]mentor.Mentor),
		activations: make(map[string]mentor.Activation),
		codes:       make(map[string]activation.Code),
		notifs:      make(map[string]notification.Notification),
		todos:       make(map[string]todo.Todo),
	}
}

func newID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}
