// Package policy implements the execution policy gate.
//
// ポリシーは固定（locked）で、構築後に変更する手段を持たない。
// 判定は意図から導いたタクティクスとツールのリスク区分のみで決まる。
package policy

import (
	"fmt"

	"github.com/0x6d61/sentinel/pkg/schema"
)

// Tactic は意図を攻撃フェーズに抽象化した区分。
type Tactic string

const (
	TacticRecon          Tactic = "recon"
	TacticWeaknessIdent  Tactic = "weakness_identification"
	TacticExploitWeak    Tactic = "exploit_weakness"
	TacticCredentialBF   Tactic = "credential_brute_force"
	TacticPasswordSpray  Tactic = "password_spray"
	TacticPersistence    Tactic = "persistence"
	TacticNone           Tactic = ""
)

// tacticOf は意図種別からタクティクスを導く。
func tacticOf(intent schema.IntentType) Tactic {
	switch intent {
	case schema.IntentHostDiscovery, schema.IntentPortScan,
		schema.IntentServiceDetection, schema.IntentOSDetection,
		schema.IntentWebDirEnum, schema.IntentDNSLookup,
		schema.IntentWhoisLookup:
		return TacticRecon
	case schema.IntentVulnScan, schema.IntentWebVulnScan:
		return TacticWeaknessIdent
	case schema.IntentSQLInjection:
		return TacticExploitWeak
	case schema.IntentBruteForceSSH, schema.IntentBruteForceHTTP:
		return TacticCredentialBF
	default:
		return TacticNone
	}
}

// Settings はゲートの判定基準。NewLocked 以外からは構築できない。
type Settings struct {
	AllowPersistentChanges bool
	ConfirmTactics         map[Tactic]bool
	BlockedTactics         map[Tactic]bool
}

// Validate は設定が固定ポリシーより弱くなっていないか検査する。
// 弱体化された設定はエラーになり、ゲートを構築できない。
func Validate(s Settings) error {
	if s.AllowPersistentChanges {
		return fmt.Errorf("policy: persistent changes must not be allowed")
	}
	for _, tac := range []Tactic{TacticExploitWeak, TacticCredentialBF} {
		if !s.ConfirmTactics[tac] {
			return fmt.Errorf("policy: tactic %s must require confirmation", tac)
		}
	}
	for _, tac := range []Tactic{TacticPersistence, TacticPasswordSpray} {
		if !s.BlockedTactics[tac] {
			return fmt.Errorf("policy: tactic %s must be blocked", tac)
		}
	}
	return nil
}

// Gate は固定ポリシーの判定器。フィールドは非公開で、セッターは存在しない。
type Gate struct {
	settings Settings
}

// NewLocked は固定ポリシーのゲートを構築する。
// 構築時に Validate を通し、弱体化の余地がないことを保証する。
func NewLocked() (*Gate, error) {
	s := Settings{
		AllowPersistentChanges: false,
		ConfirmTactics: map[Tactic]bool{
			TacticExploitWeak:  true,
			TacticCredentialBF: true,
		},
		BlockedTactics: map[Tactic]bool{
			TacticPersistence:   true,
			TacticPasswordSpray: true,
		},
	}
	if err := Validate(s); err != nil {
		return nil, err
	}
	return &Gate{settings: s}, nil
}

// Evaluate はツール実行仕様を判定する。
//
// 判定順序:
//  1. タクティクスがブロック対象 → 拒否（覆せない）
//  2. タクティクスが確認対象 → 拒否 + 要確認
//     ゲート自身は決して許可しない。実行するには呼び出し元が明示的な
//     オペレーター承認を別経路で与える必要がある。
//  3. リスク HIGH → 許可 + 警告
//  4. それ以外 → 許可
func (g *Gate) Evaluate(spec *schema.ToolSpec) schema.Decision {
	tac := tacticOf(spec.Intent)

	if g.settings.BlockedTactics[tac] {
		return schema.Decision{
			Allowed: false,
			Reason:  fmt.Sprintf("tactic %s is blocked by policy", tac),
		}
	}

	if g.settings.ConfirmTactics[tac] {
		return schema.Decision{
			Allowed:              false,
			RequiresConfirmation: true,
			Reason:               fmt.Sprintf("tactic %s is rejected without explicit operator approval", tac),
		}
	}

	d := schema.Decision{
		Allowed: true,
		Reason:  fmt.Sprintf("tactic %s permitted", tac),
	}
	if spec.Risk == schema.RiskHigh {
		d.Warning = fmt.Sprintf("%s is a high-risk tool; review the target scope before running", spec.ToolName)
	}
	return d
}
