package resolver

import (
	"context"
	"testing"

	"github.com/0x6d61/sentinel/pkg/schema"
)

func TestRuleResolver_Classify(t *testing.T) {
	tests := []struct {
		text   string
		intent schema.IntentType
		target string
	}{
		{"scan ports 1-1000 on 10.0.0.5", schema.IntentPortScan, "10.0.0.5"},
		{"find live hosts in 192.168.1.0/24", schema.IntentHostDiscovery, "192.168.1.0/24"},
		{"check 10.0.0.5 for vulnerabilities", schema.IntentVulnScan, "10.0.0.5"},
		{"what service versions run on 10.0.0.5", schema.IntentServiceDetection, "10.0.0.5"},
		{"run nikto against http://10.0.0.5/", schema.IntentWebVulnScan, "http://10.0.0.5/"},
		{"enumerate directories on http://example.com/", schema.IntentWebDirEnum, "http://example.com/"},
		{"resolve example.com", schema.IntentDNSLookup, "example.com"},
		{"whois example.com", schema.IntentWhoisLookup, "example.com"},
		{"test http://10.0.0.5/login?id=1 for sql injection", schema.IntentSQLInjection, "http://10.0.0.5/login?id=1"},
		{"eighteen.htb の脆弱性を調べて", schema.IntentVulnScan, "eighteen.htb"},
		{"192.168.1.5 のポートをスキャンして", schema.IntentPortScan, "192.168.1.5"},
	}

	r := NewRuleResolver()
	for _, tt := range tests {
		intent, err := r.Resolve(context.Background(), tt.text)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", tt.text, err)
		}
		if intent.Type != tt.intent {
			t.Errorf("Resolve(%q).Type = %s, want %s", tt.text, intent.Type, tt.intent)
		}
		if intent.Target != tt.target {
			t.Errorf("Resolve(%q).Target = %q, want %q", tt.text, intent.Target, tt.target)
		}
	}
}

func TestRuleResolver_UnmatchedIsUnknownNotError(t *testing.T) {
	r := NewRuleResolver()
	intent, err := r.Resolve(context.Background(), "tell me a joke")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if intent.Type != schema.IntentUnknown {
		t.Errorf("Type = %s, want %s", intent.Type, schema.IntentUnknown)
	}
}

func TestRuleResolver_ExtractsPortsParam(t *testing.T) {
	r := NewRuleResolver()
	intent, err := r.Resolve(context.Background(), "scan ports 1-1000 on 10.0.0.5")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if intent.Params["ports"] != "1-1000" {
		t.Errorf("params[ports] = %q, want 1-1000", intent.Params["ports"])
	}
}

func TestExtractTarget_Priority(t *testing.T) {
	// URL が IP より優先される
	got := extractTarget("scan http://10.0.0.5/app and also 10.0.0.6")
	if got != "http://10.0.0.5/app" {
		t.Errorf("extractTarget = %q, want the URL", got)
	}

	// バージョン番号らしき数値列はドメインとして扱わない
	got = extractTarget("using tool version 7.94 today")
	if got != "" {
		t.Errorf("extractTarget = %q, want empty", got)
	}
}
