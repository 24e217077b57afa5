// Package features derives boolean feature flags from item text.
//
// The flag set is closed: every snapshot row carries every flag, and a flag
// that matches nothing is false. Rules match case-insensitively against the
// item name and caption, so Japanese listings with mixed-case Latin tokens
// ("Usb", "tsa") still hit.
package features

import (
	"regexp"
	"strings"
)

// Rule is one derived flag: a stable column name plus the keyword
// alternation that sets it.
type Rule struct {
	Name    string
	pattern *regexp.Regexp
}

// Matches reports whether the rule's keywords appear in text.
func (r Rule) Matches(text string) bool {
	return r.pattern.MatchString(text)
}

func rule(name, expr string) Rule {
	return Rule{Name: name, pattern: regexp.MustCompile(`(?i)` + expr)}
}

// rules is the closed flag set. Order is the snapshot CSV column order, so
// appending is safe but reordering changes the file schema.
var rules = []Rule{
	rule("usb_port", `USB|ポート`),
	rule("expandable", `拡張|エキスパンド`),
	rule("front_open", `フロント|前開き`),
	rule("tsa_lock", `TSA`),
	rule("carry_on", `機内持ち込み|機内持込|キャリーオン`),
	rule("lightweight", `軽量|ライト`),
	rule("large_capacity", `大容量|大型`),
	rule("silent_wheels", `静音|静か`),
	rule("double_caster", `ダブルキャスター|8輪|８輪`),
	rule("caster_stopper", `ストッパー`),
	rule("aluminum", `アルミ`),
	rule("polycarbonate", `ポリカーボネート|ポリカ`),
	rule("hard_shell", `ハード`),
	rule("soft_shell", `ソフト`),
	rule("fastener_type", `ファスナー|ジッパー`),
	rule("frame_type", `フレーム`),
	rule("cup_holder", `カップホルダー|ドリンクホルダー`),
	rule("phone_stand", `スマホスタンド|スマホホルダー`),
	rule("waterproof", `防水|撥水`),
	rule("compression", `圧縮`),
	rule("divider", `仕切り|ディバイダー`),
	rule("name_tag", `ネームタグ`),
	rule("warranty", `保証`),
	rule("travel_set", `セット|親子`),
	rule("scratch_resistant", `傷つきにくい|傷に強い|エンボス`),
	rule("coin_locker", `コインロッカー`),
	rule("suspension", `サスペンション`),
	rule("wide_handle", `ワイドハンドル|マルチハンドル`),
	rule("hinomoto", `HINOMOTO|ヒノモト`),
	rule("business", `ビジネス|出張`),
}

// Names returns the flag names in column order.
func Names() []string {
	names := make([]string, len(rules))
	for i, r := range rules {
		names[i] = r.Name
	}
	return names
}

// Count returns the number of flags in the closed set.
func Count() int {
	return len(rules)
}

// Derive evaluates every rule against the joined texts and returns the full
// flag map. Unmatched flags are present and false.
func Derive(texts ...string) map[string]bool {
	joined := strings.Join(texts, "\n")
	flags := make(map[string]bool, len(rules))
	for _, r := range rules {
		flags[r.Name] = r.Matches(joined)
	}
	return flags
}
