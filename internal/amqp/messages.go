package amqp

import (
	"encoding/json"
	"time"
)

// BudgetAlertMessage is published when a user's spend total first crosses
// their current budget. The notify worker turns it into a stored
// notification.
type BudgetAlertMessage struct {
	UserID      int64     `json:"user_id"`
	BudgetID    int64     `json:"budget_id"`
	SpentCents  int64     `json:"spent_cents"`
	AmountCents int64     `json:"amount_cents"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewBudgetAlertMessage(userID, budgetID, spentCents, amountCents int64) *BudgetAlertMessage {
	return &BudgetAlertMessage{
		UserID:      userID,
		BudgetID:    budgetID,
		SpentCents:  spentCents,
		AmountCents: amountCents,
		Timestamp:   time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *BudgetAlertMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// BudgetAlertMessageFromJSON parses a message from JSON bytes.
func BudgetAlertMessageFromJSON(data []byte) (*BudgetAlertMessage, error) {
	var msg BudgetAlertMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
