package orchestrator

import (
	"regexp"
	"strconv"

	"gigecap/internal/camera"
)

// 先頭の空白と符号を読み飛ばし、数字の並びだけを取り出す
var serialPrefix = regexp.MustCompile(`^\s*\+?(\d+)`)

// ParseSerials は引数をシリアル番号の一覧に変換する
// 数値でない引数・負の数・範囲外の値は捨て、重複は最初の出現だけを残す
func ParseSerials(args []string) []camera.Serial {
	seen := make(map[camera.Serial]bool)
	serials := make([]camera.Serial, 0, len(args))

	for _, arg := range args {
		m := serialPrefix.FindStringSubmatch(arg)
		if m == nil {
			continue
		}
		v, err := strconv.ParseUint(m[1], 10, 32)
		if err != nil {
			continue
		}
		s := camera.Serial(v)
		if seen[s] {
			continue
		}
		seen[s] = true
		serials = append(serials, s)
	}

	return serials
}
