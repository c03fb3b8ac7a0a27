package app

import (
	"errors"
	"time"
)

// Validation failures. None of these issue a network call.
var (
	ErrNoSportSelected    = errors.New("no sport selected")
	ErrNoActivitySelected = errors.New("no activity selected")
	ErrUnknownSport       = errors.New("unknown sport")
	ErrUnknownActivity    = errors.New("unknown activity")
	ErrBusy               = errors.New("analysis already in progress")
)

// Connectivity status strings.
const (
	StatusChecking  = "Checking..."
	StatusConnected = "Connected to API"
	StatusError     = "API Connection Error"
)

// User-facing texts.
const (
	LabelAnalyze   = "開始分析"
	LabelAnalyzing = "分析中..."

	MsgSelectSportFirst    = "請先選擇運動類型"
	MsgAnalysisFailed      = "分析過程中發生錯誤"
	MsgSelectActivityFirst = "請先選擇一個活動！"
	MsgInsightFailed       = "分析請求失敗，請稍後再試"
	MsgRefreshFailed       = "無法載入活動列表"
	MsgDetailFailed        = "無法載入活動詳情"
	MsgPreferencesSaved    = "偏好設定已儲存！"
)

type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice is a user-facing message. Seq increases with every new notice so a
// view can tell a repeated text apart from a new one.
type Notice struct {
	Seq   uint64
	Level NoticeLevel
	Text  string
	At    time.Time
}

// noticeBox records the latest notice.
type noticeBox struct {
	seq    uint64
	latest Notice
}

func (b *noticeBox) post(level NoticeLevel, text string) Notice {
	b.seq++
	b.latest = Notice{Seq: b.seq, Level: level, Text: text, At: time.Now()}
	return b.latest
}
