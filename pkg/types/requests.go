package types

type CheckProfileNameRequest struct {
	ProfileName string `json:"profile_name"`
}

type RegisterProfileRequest struct {
	UserID      string `json:"user_id"`
	ProfileName string `json:"profile_name"`
	PIN         string `json:"pin"`
}

type VerifyRecoveryRequest struct {
	ProfileName string `json:"profile_name"`
	PIN         string `json:"pin"`
}

type ChangeRecoveryPINRequest struct {
	UserID     string `json:"user_id"`
	CurrentPIN string `json:"current_pin"`
	NewPIN     string `json:"new_pin"`
}

// BoolResult is the body returned by the boolean RPCs.
type BoolResult struct {
	OK bool `json:"ok"`
}

type ErrorBody struct {
	Error string `json:"error"`
}
