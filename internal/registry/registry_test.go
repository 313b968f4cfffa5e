package registry

import (
	"errors"
	"slices"
	"testing"

	"github.com/0x6d61/sentinel/pkg/schema"
)

// TestBuildToolSpec_PortScan はポートスキャン仕様の組み立てをテストする。
func TestBuildToolSpec_PortScan(t *testing.T) {
	r := New()
	spec, err := r.BuildToolSpec(schema.Intent{
		Type:   schema.IntentPortScan,
		Target: "192.168.1.10",
		Params: map[string]string{"ports": "1-1000"},
	})
	if err != nil {
		t.Fatalf("BuildToolSpec failed: %v", err)
	}

	if spec.ToolName != "nmap" {
		t.Errorf("ToolName = %q, want nmap", spec.ToolName)
	}
	if !spec.RequiresRoot {
		t.Error("PORT_SCAN should require root")
	}
	if spec.Risk != schema.RiskMedium {
		t.Errorf("Risk = %v, want medium", spec.Risk)
	}

	i := slices.Index(spec.Args, "-p")
	if i < 0 || i+1 >= len(spec.Args) || spec.Args[i+1] != "1-1000" {
		t.Errorf("Args = %v, want -p 1-1000 expansion", spec.Args)
	}
}

// TestBuildToolSpec_UnknownParamIgnored はテンプレートのないパラメータが無視されることをテストする。
func TestBuildToolSpec_UnknownParamIgnored(t *testing.T) {
	r := New()
	spec, err := r.BuildToolSpec(schema.Intent{
		Type:   schema.IntentHostDiscovery,
		Target: "10.0.0.0/24",
		Params: map[string]string{"nonsense": "value"},
	})
	if err != nil {
		t.Fatalf("BuildToolSpec failed: %v", err)
	}
	want := []string{"-sn"}
	if !slices.Equal(spec.Args, want) {
		t.Errorf("Args = %v, want %v", spec.Args, want)
	}
}

// TestBuildToolSpec_NoTool は INFO_QUERY / UNKNOWN が ErrNoTool を返すことをテストする。
func TestBuildToolSpec_NoTool(t *testing.T) {
	r := New()
	for _, typ := range []schema.IntentType{schema.IntentInfoQuery, schema.IntentUnknown} {
		_, err := r.BuildToolSpec(schema.Intent{Type: typ})
		if !errors.Is(err, ErrNoTool) {
			t.Errorf("BuildToolSpec(%s) error = %v, want ErrNoTool", typ, err)
		}
	}
}

// TestBuildToolSpec_Deterministic は同じ Intent から常に同じ argv が得られることをテストする。
func TestBuildToolSpec_Deterministic(t *testing.T) {
	r := New()
	intent := schema.Intent{
		Type:   schema.IntentBruteForceSSH,
		Target: "10.0.0.5",
		Params: map[string]string{
			"userlist": "/usr/share/wordlists/users.txt",
			"passlist": "/usr/share/wordlists/rockyou.txt",
		},
	}

	first, err := r.BuildToolSpec(intent)
	if err != nil {
		t.Fatalf("BuildToolSpec failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		next, err := r.BuildToolSpec(intent)
		if err != nil {
			t.Fatalf("BuildToolSpec failed: %v", err)
		}
		if !slices.Equal(first.Args, next.Args) {
			t.Fatalf("argv not deterministic: %v vs %v", first.Args, next.Args)
		}
	}
}

// TestToolNames はツール名一覧が重複なしで返ることをテストする。
func TestToolNames(t *testing.T) {
	names := New().ToolNames()
	for _, want := range []string{"nmap", "gobuster", "nikto", "nslookup", "whois", "hydra", "sqlmap"} {
		if !slices.Contains(names, want) {
			t.Errorf("ToolNames missing %q: %v", want, names)
		}
	}
	if !slices.IsSorted(names) {
		t.Errorf("ToolNames not sorted: %v", names)
	}
}
