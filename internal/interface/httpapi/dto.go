package httpapi

// ChatRequest は POST /api/chat のリクエスト
// message が空の場合もチャットサービスがフォールバック応答を返す
type ChatRequest struct {
	Message        string `json:"message" validate:"max=4000"`
	SessionID      string `json:"sessionId" validate:"omitempty,max=128,printascii"`
	IncludeGPSData bool   `json:"includeGpsData"`
}

// ErrorResponse はエラー応答
type ErrorResponse struct {
	Error    string `json:"error"`
	Filename string `json:"filename,omitempty"`
}

// HealthResponse は GET /health の応答
type HealthResponse struct {
	Status string `json:"status"`
}
