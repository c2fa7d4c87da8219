package application

type ModuleResponse struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	ViewIdentifier string `json:"view_identifier"`
}

type ApplicationResponse struct {
	ID          int64            `json:"id"`
	Name        string           `json:"name"`
	Namespace   string           `json:"namespace"`
	Description string           `json:"description,omitempty"`
	Modules     []ModuleResponse `json:"modules"`
}

type ApplicationsResponse struct {
	Applications []ApplicationResponse `json:"applications"`
}

type LandingResponse struct {
	Namespace string         `json:"namespace"`
	Module    ModuleResponse `json:"module"`
}
