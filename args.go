package main

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"gigecap/internal/orchestrator"
)

// options はコマンドラインオプション
type options struct {
	configPath string
	mode       string
	fps        int
	outDir     string
	backend    string
	lock       string
	statusAddr string
	help       bool
}

// newFlagSet はoptionsに結び付いたFlagSetを作成する
func newFlagSet(opts *options) *flag.FlagSet {
	fs := flag.NewFlagSet("gigecap", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "", "設定ファイルのパス (YAML)")
	fs.StringVar(&opts.mode, "mode", "", "キャプチャモード: threaded / sequential")
	fs.IntVar(&opts.fps, "fps", -1, "目標フレームレート (0でペーシングなし)")
	fs.StringVar(&opts.outDir, "out", "", "画像の出力先ディレクトリ")
	fs.StringVar(&opts.backend, "backend", "", "デバイスバックエンド: sim / ffmpeg / v4l2")
	fs.StringVar(&opts.lock, "lock", "", "デバイス呼び出しのロック粒度: none / per_handle / global")
	fs.StringVar(&opts.statusAddr, "status", "", "ステータスサーバーのアドレス (例: :8080)")
	fs.BoolVar(&opts.help, "help", false, "ヘルプを表示")
	return fs
}

// printHelp はヘルプを書き出す
func printHelp(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintln(w, "gigecap")
	fmt.Fprintln(w)
	orchestrator.PrintUsage(w)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "オプション:")
	fs.SetOutput(w)
	fs.PrintDefaults()
}

// parseArgs はオプションを解析し、残りの引数（シリアル番号の候補）を返す
// オプションはシリアル番号の前後どちらにあってもよい
// 定義されていない "-x" のような引数は残りの引数に回し、シリアル番号の解釈で捨てられる
// "--" 以降はすべて残りの引数として扱う
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var flags, rest []string

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			rest = append(rest, args[i+1:]...)
			break
		}

		name, hasValue := flagName(arg)
		var f *flag.Flag
		if name != "" {
			f = fs.Lookup(name)
		}
		if f == nil {
			rest = append(rest, arg)
			continue
		}

		flags = append(flags, arg)
		if !hasValue && !isBoolFlag(f) && i+1 < len(args) {
			i++
			flags = append(flags, args[i])
		}
	}

	if err := fs.Parse(flags); err != nil {
		return nil, err
	}
	return rest, nil
}

// flagName は "-name", "--name", "-name=value" からオプション名を取り出す
func flagName(arg string) (string, bool) {
	if len(arg) < 2 || arg[0] != '-' {
		return "", false
	}
	name := strings.TrimPrefix(arg[1:], "-")
	if name == "" || name[0] == '-' || name[0] == '=' {
		return "", false
	}
	if i := strings.IndexByte(name, '='); i >= 0 {
		return name[:i], true
	}
	return name, false
}

func isBoolFlag(f *flag.Flag) bool {
	b, ok := f.Value.(interface{ IsBoolFlag() bool })
	return ok && b.IsBoolFlag()
}
