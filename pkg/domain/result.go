package domain

// SceneResult は1シーン分の生成・修復の最終結果なのだ。
// Err が nil なら Code と ClassName が有効で、失敗していても他のシーンの処理は続くのだ。
type SceneResult struct {
	Descriptor SceneDescriptor
	ClassName  string
	Code       string // 検証を通過したシーンクラスのソース（ヘッダなし）
	VideoPath  string // 検証レンダリングで得られた動画パス（診断用）
	Err        error  // 最後に観測したエラー。成功時は nil
}

// Succeeded は、このシーンが検証まで通過したかどうかを返すのだ。
func (r SceneResult) Succeeded() bool {
	return r.Err == nil
}

// SuccessfulCodes は成功したシーンだけを位置順のまま取り出すのだ。
func SuccessfulCodes(results []SceneResult) []SceneResult {
	var ok []SceneResult
	for _, r := range results {
		if r.Succeeded() {
			ok = append(ok, r)
		}
	}
	return ok
}

// JobResult はジョブ全体の構造化された実行結果なのだ。
// どんな失敗でもこの構造体で返し、エントリーポイントの外へ panic を漏らさないのだ。
type JobResult struct {
	Success    bool     `json:"success"`
	PlanFile   string   `json:"plan_file,omitempty"`
	CodeFile   string   `json:"code_file,omitempty"`
	VideoFiles []string `json:"video_files,omitempty"`
	AudioFiles []string `json:"audio_files,omitempty"`
	FinalVideo string   `json:"final_video,omitempty"`
	Err        string   `json:"error,omitempty"` // 最後に捕捉した診断テキストをそのまま保持する
}
