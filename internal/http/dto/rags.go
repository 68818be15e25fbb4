// Package dto contiene los cuerpos JSON de la API. Los campos []byte viajan
// en base64 estándar.
package dto

type SignRequest struct {
	ServiceName string            `json:"service_name"`
	Message     []byte            `json:"message"`
	Algorithm   string            `json:"algorithm"`
	Nonce       string            `json:"nonce,omitempty"`
	Address     string            `json:"address,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type SignResponse struct {
	Signature []byte `json:"signature"`
	Nonce     string `json:"nonce"`
	Timestamp int64  `json:"timestamp"`
	Algorithm string `json:"algorithm"`
	Address   string `json:"address"`
}

// ValidateRequest: si AccountID viene, se valida contra las claves de esa
// cuenta; si no, la cuenta se resuelve por ServiceName.
type ValidateRequest struct {
	AccountID   string            `json:"account_id,omitempty"`
	ServiceName string            `json:"service_name"`
	Message     []byte            `json:"message"`
	Signature   []byte            `json:"signature"`
	Algorithm   string            `json:"algorithm"`
	Nonce       string            `json:"nonce"`
	Address     string            `json:"address"`
	Timestamp   int64             `json:"timestamp"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	RequestType string            `json:"request_type,omitempty"`
}

type ValidateResponse struct {
	Valid     bool   `json:"valid"`
	AccountID string `json:"account_id"`
	KeyID     string `json:"key_id"`
	Address   string `json:"address"`
	Algorithm string `json:"algorithm"`
}
