package schema

// RiskLevel はツール実行のリスク区分。
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// ToolSpec はレジストリが Intent から組み立てた実行仕様。
// ポリシーゲートとコマンドビルダーへの入力となる。
type ToolSpec struct {
	ToolName     string    `json:"tool_name"`
	Args         []string  `json:"args"`
	RequiresRoot bool      `json:"requires_root"`
	Risk         RiskLevel `json:"risk"`
	TimeoutSec   int       `json:"timeout_sec"`
	Target       string    `json:"target"`

	// Intent は仕様の元になった意図種別。履歴記録に使う。
	Intent IntentType `json:"intent"`
}

// Decision はポリシーゲートの判定結果。
type Decision struct {
	Allowed              bool   `json:"allowed"`
	RequiresConfirmation bool   `json:"requires_confirmation"`
	Warning              string `json:"warning,omitempty"`
	Reason               string `json:"reason"`
}

// FinalCommand はビルダーが検証を通した最終コマンド。
// Args は argv ベクタで、シェルを経由せずに実行される。
type FinalCommand struct {
	Tool    string   `json:"tool"`
	Args    []string `json:"args"`
	Display string   `json:"display"`
}
