package schema

import (
	"encoding/json"
	"testing"
)

// TestIntent_UnmarshalJSON は Resolver のレスポンス形式が Intent に正しく読めることをテストする。
func TestIntent_UnmarshalJSON(t *testing.T) {
	raw := `{
		"intent": "PORT_SCAN",
		"target": "192.168.1.10",
		"params": {"ports": "1-1000"},
		"reason": "user asked for a port scan"
	}`

	var in Intent
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if in.Type != IntentPortScan {
		t.Errorf("Type = %v, want %v", in.Type, IntentPortScan)
	}
	if in.Target != "192.168.1.10" {
		t.Errorf("Target = %v, want 192.168.1.10", in.Target)
	}
	if in.Params["ports"] != "1-1000" {
		t.Errorf("Params[ports] = %v, want 1-1000", in.Params["ports"])
	}
}

// TestIntent_MarshalOmitsEmpty は未設定フィールドが JSON に現れないことをテストする。
func TestIntent_MarshalOmitsEmpty(t *testing.T) {
	in := Intent{Type: IntentInfoQuery}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal to map failed: %v", err)
	}

	if got["intent"] != string(IntentInfoQuery) {
		t.Errorf("intent = %v, want %v", got["intent"], IntentInfoQuery)
	}
	for _, field := range []string{"target", "params", "reason"} {
		if _, ok := got[field]; ok {
			t.Errorf("%s field should not be present for an empty intent", field)
		}
	}
}
