package builder

import (
	"github.com/shouni/go-theorem-kit/internal/ai"
	"github.com/shouni/go-theorem-kit/internal/config"

	"github.com/shouni/go-remote-io/remoteio"
)

// AppContext は、アプリケーション実行に必要な共通コンテキストを保持する
// これを各Build関数に渡すことで、依存関係の注入を簡素化します。
type AppContext struct {
	Config    *config.Config         // Configは、環境変数から読み込まれたグローバルな設定です（APIキー、モデル名など）。
	Options   config.GenerateOptions // Optionsは、コマンドラインから渡された実行時の設定です（定理名、品質、試行回数など）。
	Generator ai.Generator           // Generatorは、テキスト生成モデルとの通信に使う共通クライアントです。
	Reader    remoteio.InputReader   // Readerは、外部データやスクリプトの読み込みに使用する入力元です。
	Writer    remoteio.OutputWriter  // Writerは、生成された内容を保存するための出力先です。
}

// NewAppContext は AppContext の新しいインスタンスを生成する
func NewAppContext(
	cfg *config.Config,
	gen ai.Generator,
	reader remoteio.InputReader,
	writer remoteio.OutputWriter,
) AppContext {
	return AppContext{
		Config:    cfg,
		Options:   cfg.Options,
		Generator: gen,
		Reader:    reader,
		Writer:    writer,
	}
}
