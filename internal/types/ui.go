package types

// StageEvent is pushed to live preview clients whenever the pipeline
// produces an image worth looking at.
type StageEvent struct {
	Type   string `json:"type"`
	RunID  string `json:"run_id"`
	Stage  string `json:"stage"`
	Title  string `json:"title"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	PNG    string `json:"png,omitempty"`
}
