package amqp

import (
	"testing"
	"time"
)

func TestBudgetAlertMessage_RoundTrip(t *testing.T) {
	msg := NewBudgetAlertMessage(7, 42, 210000, 200000)

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON returned error: %v", err)
	}

	got, err := BudgetAlertMessageFromJSON(body)
	if err != nil {
		t.Fatalf("BudgetAlertMessageFromJSON returned error: %v", err)
	}

	if got.UserID != 7 || got.BudgetID != 42 {
		t.Errorf("ids = (%d, %d), want (7, 42)", got.UserID, got.BudgetID)
	}
	if got.SpentCents != 210000 || got.AmountCents != 200000 {
		t.Errorf("amounts = (%d, %d), want (210000, 200000)", got.SpentCents, got.AmountCents)
	}
	if time.Since(got.Timestamp) > time.Minute {
		t.Errorf("timestamp not recent: %v", got.Timestamp)
	}
}

func TestBudgetAlertMessageFromJSON_Malformed(t *testing.T) {
	if _, err := BudgetAlertMessageFromJSON([]byte("{not json")); err == nil {
		t.Error("expected error for malformed payload")
	}
}
