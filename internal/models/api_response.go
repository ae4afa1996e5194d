package models

// DeploymentListResponse is the paginated list of deployments
type DeploymentListResponse struct {
	Deployments []*Deployment `json:"deployments"`
	Total       int           `json:"total"`
	Limit       int           `json:"limit"`
	Offset      int           `json:"offset"`
}

// DeploymentResponse is a deployment with the calls made to its contract
type DeploymentResponse struct {
	*Deployment
	BalanceTokens string          `json:"balance_tokens"`
	Calls         []*ContractCall `json:"calls"`
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}
