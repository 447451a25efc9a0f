package ui

// TUI Message Types sent by the detection session
type ProgressMsg struct {
	Percent float64 // 0 to 100
	Message string
}

type FileCompletedMsg struct {
	Name       string
	Success    bool
	Detections int
	Message    string
}

type SessionDoneMsg struct {
	Summary string
	Err     error
}
