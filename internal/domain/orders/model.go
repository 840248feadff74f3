package orders

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound = errors.New("order not found")
	// ErrStateChanged means a guarded transition matched no row: the order
	// exists but is no longer in a state the transition accepts.
	ErrStateChanged = errors.New("order state changed")
)

type Status string

const (
	StatusOpen             Status = "open"
	StatusInProgress       Status = "in_progress"
	StatusAwaitingApproval Status = "awaiting_approval"
	StatusCompleted        Status = "completed"
	StatusCancelled        Status = "cancelled"
)

var statuses = []Status{StatusOpen, StatusInProgress, StatusAwaitingApproval, StatusCompleted, StatusCancelled}

func Statuses() []Status { return append([]Status(nil), statuses...) }

func (s Status) Valid() bool {
	for _, v := range statuses {
		if s == v {
			return true
		}
	}
	return false
}

// ParseStatus accepts a status name in any letter case.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("invalid status %q", raw)
	}
	return s, nil
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Budget is the persisted cost breakdown. Total always equals Materials + Labor.
type Budget struct {
	Materials decimal.Decimal
	Labor     decimal.Decimal
	Total     decimal.Decimal
}

type Order struct {
	ID           int64
	ServiceType  string
	Address      string
	Description  string
	Priority     Priority
	Status       Status
	DueDate      *time.Time
	Budget       Budget
	CreatedAt    time.Time
	UpdatedAt    time.Time
	BudgetSentAt *time.Time
	ApprovedAt   *time.Time
}

type NewOrder struct {
	ServiceType string
	Address     string
	Description string
	Priority    Priority
	DueDate     *time.Time
}

// Transition is a guarded status change: it applies only while the order is
// in one of From (and, with RequireBudget, has a positive total).
type Transition struct {
	From          []Status
	To            Status
	RequireBudget bool
	StampSent     bool
	StampApproved bool
}
