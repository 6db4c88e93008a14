package types

// Wire types shared by the HTTP API and the WebSocket surface.

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Detail string `json:"detail"`
}

type IngestResponse struct {
	Filename    string `json:"filename"`
	ChunksAdded int    `json:"chunks_added"`
	Status      string `json:"status"`
	SessionID   string `json:"session_id"`
}

// AnalyzeRequest carries either a pasted job description or a link to a
// job posting that is fetched server side.
type AnalyzeRequest struct {
	JobDescription string `json:"job_description" validate:"required_without=JobURL"`
	JobURL         string `json:"job_url,omitempty" validate:"omitempty,url"`
	SessionID      string `json:"session_id" validate:"required,max=64"`
}

type AnalyzeResponse struct {
	MatchAnalysis string `json:"match_analysis"`
	ContextUsed   string `json:"context_used"`
	MatchScore    int    `json:"match_score"`
	Status        string `json:"status"`
	ErrorKind     string `json:"error_kind,omitempty"`
}

// Message is the envelope exchanged over /ws.
type Message struct {
	Type    string      `json:"type"`
	Content string      `json:"content"`
	Data    interface{} `json:"data,omitempty"`
}

// UploadPayload is the Data of an inbound "upload" message. Data is base64.
type UploadPayload struct {
	Filename string `json:"filename"`
	Data     string `json:"data"`
}

type AnalysisPayload struct {
	Score       int    `json:"score"`
	ContextUsed string `json:"context_used"`
	Degraded    bool   `json:"degraded"`
}

// Message types.
const (
	MsgUpload   = "upload"
	MsgAnalyze  = "analyze"
	MsgSession  = "session"
	MsgStatus   = "status"
	MsgWarning  = "warning"
	MsgError    = "error"
	MsgIngested = "ingested"
	MsgAnalysis = "analysis"
)
