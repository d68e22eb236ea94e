package amqp

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Message types, carried in the AMQP Type property.
const (
	TypeExpensesLogged = "expenses.logged"
	TypeGoalApplied    = "goal.applied"
)

// Message is anything the client can publish.
type Message interface {
	MessageType() string
}

// ExpensesLoggedMessage announces that a user stored new expenses. The worker
// reloads the user's data instead of trusting a payload copy.
type ExpensesLoggedMessage struct {
	UserID    string    `json:"user_id"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

// GoalAppliedMessage announces that a suggested savings goal was persisted.
type GoalAppliedMessage struct {
	UserID      string          `json:"user_id"`
	SavingsGoal decimal.Decimal `json:"savings_goal"`
	Timestamp   time.Time       `json:"timestamp"`
}

func NewExpensesLoggedMessage(userID string, count int) *ExpensesLoggedMessage {
	return &ExpensesLoggedMessage{UserID: userID, Count: count, Timestamp: time.Now().UTC()}
}

func NewGoalAppliedMessage(userID string, goal decimal.Decimal) *GoalAppliedMessage {
	return &GoalAppliedMessage{UserID: userID, SavingsGoal: goal, Timestamp: time.Now().UTC()}
}

func (m *ExpensesLoggedMessage) MessageType() string { return TypeExpensesLogged }

func (m *GoalAppliedMessage) MessageType() string { return TypeGoalApplied }

// ToJSON converts the message to JSON bytes
func (m *ExpensesLoggedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func (m *GoalAppliedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ExpensesLoggedMessageFromJSON(data []byte) (*ExpensesLoggedMessage, error) {
	var msg ExpensesLoggedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func GoalAppliedMessageFromJSON(data []byte) (*GoalAppliedMessage, error) {
	var msg GoalAppliedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
